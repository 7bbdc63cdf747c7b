package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/parleylabs/parley/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Run: func(cmd *cobra.Command, args []string) {
			runInit()
		},
	}
}

// modelHints maps a provider to its suggested default model.
var modelHints = map[string]string{
	"groq":   config.DefaultModel,
	"openai": "gpt-4o-mini",
}

func runInit() {
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║          Parley — Setup Wizard           ║")
	fmt.Println("╚══════════════════════════════════════════╝")
	fmt.Println()

	cfgPath := resolveConfigPath()

	cfg := config.Default()
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Found existing config at %s\n", cfgPath)
		useExisting, err := promptConfirm("Use existing config as base?", true)
		if err != nil {
			fmt.Println("Cancelled.")
			return
		}
		if useExisting {
			if loaded, err := config.Load(cfgPath); err != nil {
				fmt.Printf("Warning: could not load existing config: %v\n", err)
			} else {
				cfg = loaded
			}
		}
	}

	// ── Provider ──
	defaultIdx := 0
	if cfg.Provider.Name == "openai" {
		defaultIdx = 1
	}
	providerChoice, err := promptSelect("Model Provider", []SelectOption[string]{
		{"Groq (fast inference, free tier)", "groq"},
		{"OpenAI", "openai"},
	}, defaultIdx)
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	cfg.Provider.Name = providerChoice

	apiKey, err := promptPassword("API Key", fmt.Sprintf("Leave empty to keep the current key or use the %s env var", providerEnvVar(providerChoice)))
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}

	modelDefault := cfg.Provider.Model
	if modelDefault == "" || modelDefault == config.DefaultModel {
		modelDefault = modelHints[providerChoice]
	}
	model, err := promptString("Model", "", modelDefault)
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	cfg.Provider.Model = model

	tempStr, err := promptString("Temperature", "0.0 (deterministic) to 2.0 (creative)", strconv.FormatFloat(cfg.Provider.Temperature, 'f', -1, 64))
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	if temp, err := strconv.ParseFloat(tempStr, 64); err == nil && temp >= 0 && temp <= 2 {
		cfg.Provider.Temperature = temp
	} else {
		fmt.Printf("  Ignoring invalid temperature %q, keeping %.1f\n", tempStr, cfg.Provider.Temperature)
	}

	// ── Chat ──
	systemPrompt, err := promptString("System Prompt", "", cfg.Chat.SystemPrompt)
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	cfg.Chat.SystemPrompt = systemPrompt

	// ── Server ──
	portStr, err := promptString("Gateway Port", "", strconv.Itoa(cfg.Server.Port))
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	if port, err := strconv.Atoi(portStr); err == nil && port > 0 && port < 65536 {
		cfg.Server.Port = port
	} else {
		fmt.Printf("  Ignoring invalid port %q, keeping %d\n", portStr, cfg.Server.Port)
	}

	if cfg.Server.Token == "" {
		cfg.Server.Token = newAuthToken(16)
		fmt.Printf("  Generated gateway token: %s\n", cfg.Server.Token)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config invalid: %v\n", err)
		os.Exit(1)
	}

	// ── Save ──
	fmt.Println()

	// The API key goes to the OS keyring when possible; the config file
	// then never holds it.
	keyInFile := false
	if apiKey != "" {
		if err := config.StoreSecret(providerChoice, apiKey); err != nil {
			fmt.Printf("  Keyring unavailable (%v), storing key in config file\n", err)
			cfg.Provider.APIKey = apiKey
			keyInFile = true
		} else {
			fmt.Println("  API key stored in OS keyring")
			cfg.Provider.APIKey = ""
		}
	}

	savedKey := cfg.Provider.APIKey
	if !keyInFile {
		cfg.Provider.APIKey = ""
	}
	saveErr := config.Save(cfgPath, cfg)
	cfg.Provider.APIKey = savedKey

	if saveErr != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", saveErr)
		os.Exit(1)
	}
	fmt.Printf("Config saved to %s\n", cfgPath)

	// Summary
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║             Setup Complete!              ║")
	fmt.Println("╚══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Provider:  %s\n", cfg.Provider.Name)
	fmt.Printf("  Model:     %s\n", cfg.Provider.Model)
	fmt.Printf("  Gateway:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Token:     %s\n", cfg.Server.Token)
	fmt.Println()
	fmt.Println("  Start the gateway:   parley")
	fmt.Println("  Chat from terminal:  parley chat")
	fmt.Println()
}

func providerEnvVar(provider string) string {
	if provider == "openai" {
		return "OPENAI_API_KEY"
	}
	return "GROQ_API_KEY"
}

// newAuthToken returns a hex token with n random bytes.
func newAuthToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
