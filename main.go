package main

import "github.com/parleylabs/parley/cmd"

func main() {
	cmd.Execute()
}
