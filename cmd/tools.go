package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	runewidth "github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/docs"
	"github.com/parleylabs/parley/internal/tools"
)

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List and invoke tools",
	}
	cmd.AddCommand(toolsListCmd())
	cmd.AddCommand(toolsInvokeCmd())
	return cmd
}

// buildLocalRegistry assembles the same registry the gateway runs with,
// minus MCP servers (those need the gateway's lifecycle).
func buildLocalRegistry(cfg *config.Config) (*tools.Registry, func(), error) {
	var index *docs.Index
	cleanup := func() {}

	if cfg.Docs.Manifest != "" {
		idx, err := docs.Open(cfg.Docs.Manifest)
		if err == nil {
			index = idx
			cleanup = func() { idx.Close() }
		}
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, index); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("register tools: %w", err)
	}
	return registry, cleanup, nil
}

func toolsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			registry, cleanup, err := buildLocalRegistry(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer cleanup()

			list := registry.List()

			if jsonOutput {
				type toolInfo struct {
					Name        string                 `json:"name"`
					Description string                 `json:"description"`
					Parameters  map[string]interface{} `json:"parameters"`
				}
				out := make([]toolInfo, 0, len(list))
				for _, t := range list {
					out = append(out, toolInfo{t.Name(), t.Description(), t.Parameters()})
				}
				data, _ := json.MarshalIndent(out, "", "  ")
				fmt.Println(string(data))
				return
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "NAME\tDESCRIPTION\n")
			for _, t := range list {
				fmt.Fprintf(tw, "%s\t%s\n", t.Name(), runewidth.Truncate(t.Description(), 72, "..."))
			}
			tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func toolsInvokeCmd() *cobra.Command {
	var (
		argsJSON  string
		dryRun    bool
		sessionID string
	)
	cmd := &cobra.Command{
		Use:   "invoke [name] [key=value ...]",
		Short: "Invoke a tool directly, outside a chat run",
		Example: `  parley tools invoke get_current_time timezone=Europe/Paris
  parley tools invoke calculate_math expression="2*(3+4)"
  parley tools invoke convert_currency --args '{"amount":100,"from":"USD","to":"EUR"}'
  parley tools invoke search_web --dry-run`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			registry, cleanup, err := buildLocalRegistry(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer cleanup()

			name := args[0]

			if dryRun {
				tool, err := registry.Get(name)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
				fmt.Printf("Name:        %s\n", tool.Name())
				fmt.Printf("Description: %s\n", tool.Description())
				schema, _ := json.MarshalIndent(tool.Parameters(), "", "  ")
				fmt.Printf("Parameters:\n%s\n", string(schema))
				return
			}

			toolArgs, err := parseInvokeArgs(argsJSON, args[1:])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			ctx := tools.WithSessionKey(context.Background(), config.NormalizeSessionID(sessionID))
			result, err := registry.Execute(ctx, name, toolArgs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if result.IsError {
				fmt.Fprintln(os.Stderr, result.ForLLM)
				os.Exit(1)
			}
			fmt.Println(result.ForLLM)
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "", "tool arguments as a JSON object")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the tool schema instead of running it")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id for rate limiting")
	return cmd
}

// parseInvokeArgs merges --args JSON with positional key=value pairs.
// Positional pairs win on conflict.
func parseInvokeArgs(argsJSON string, pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &out); err != nil {
			return nil, fmt.Errorf("--args is not a JSON object: %w", err)
		}
	}
	for _, kv := range pairs {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", kv)
		}
		out[key] = parseArgValue(val)
	}
	return out, nil
}
