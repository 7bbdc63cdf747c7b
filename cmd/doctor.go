package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("parley doctor")
	fmt.Printf("  Version:  1.0.0 (protocol %d)\n", protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, defaults apply)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Config invalid: %s\n", err)
	}

	// Provider
	fmt.Println()
	fmt.Println("  Provider:")
	fmt.Printf("    %-10s %s\n", "Name:", cfg.Provider.Name)
	fmt.Printf("    %-10s %s\n", "Model:", cfg.Provider.Model)
	checkAPIKey(cfg.Provider.APIKey, providerKeyHint(cfg.Provider.Name))
	if cfg.Provider.BaseURL != "" {
		fmt.Printf("    %-10s %s\n", "Base URL:", cfg.Provider.BaseURL)
	}

	// Gateway
	fmt.Println()
	host := cfg.Server.Host
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	fmt.Printf("  Gateway:  %s", addr)
	if isGatewayRunning(addr) {
		fmt.Println(" (RUNNING)")
	} else {
		fmt.Println(" (not running)")
	}

	// Environment
	fmt.Println()
	fmt.Println("  Environment:")
	checkTimezoneData()
	checkLogDir(cfg.Logging.File)

	// Docs
	if cfg.Docs.Manifest != "" {
		fmt.Printf("    %-10s %s", "Docs:", cfg.Docs.Manifest)
		if _, err := os.Stat(cfg.Docs.Manifest); err != nil {
			fmt.Println(" (NOT FOUND)")
		} else {
			fmt.Println(" (OK)")
		}
	}

	// MCP servers
	if len(cfg.MCP.Servers) > 0 {
		fmt.Println()
		fmt.Println("  MCP Servers:")
		for _, s := range cfg.MCP.Servers {
			checkMCPCommand(s.Name, s.Command)
		}
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func providerKeyHint(provider string) string {
	return "set " + providerEnvVar(provider) + " or run: parley init"
}

func checkAPIKey(apiKey, hint string) {
	switch {
	case apiKey == "":
		fmt.Printf("    %-10s (not configured, %s)\n", "API Key:", hint)
	case len(apiKey) > 8:
		masked := apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
		fmt.Printf("    %-10s %s\n", "API Key:", masked)
	default:
		fmt.Printf("    %-10s ****\n", "API Key:")
	}
}

// checkTimezoneData probes the tz database get_current_time depends on.
func checkTimezoneData() {
	if _, err := time.LoadLocation("Europe/Paris"); err != nil {
		fmt.Printf("    %-10s MISSING (install tzdata)\n", "Timezones:")
	} else {
		fmt.Printf("    %-10s OK\n", "Timezones:")
	}
}

func checkLogDir(logFile string) {
	if logFile == "" {
		fmt.Printf("    %-10s (console only)\n", "Logs:")
		return
	}
	dir := filepath.Dir(logFile)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fmt.Printf("    %-10s %s (NOT WRITABLE: %v)\n", "Logs:", dir, err)
		return
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		fmt.Printf("    %-10s %s (NOT WRITABLE: %v)\n", "Logs:", dir, err)
		return
	}
	os.Remove(probe)
	fmt.Printf("    %-10s %s\n", "Logs:", dir)
}

func checkMCPCommand(name, command string) {
	path, err := exec.LookPath(command)
	if err != nil {
		fmt.Printf("    %-10s %s NOT FOUND\n", name+":", command)
	} else {
		fmt.Printf("    %-10s %s\n", name+":", path)
	}
}
