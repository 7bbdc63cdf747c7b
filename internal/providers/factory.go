package providers

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingAPIKey is returned by New when no API key is available for
// the selected provider.
var ErrMissingAPIKey = errors.New("missing API key: set GROQ_API_KEY, provider.apiKey in config, or store it in the OS keyring")

// Options configures a provider instance.
type Options struct {
	Name       string // "groq" (default) or "openai"
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// New builds the provider selected by opts.Name.
func New(opts Options) (Provider, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	switch opts.Name {
	case "", "groq":
		p := NewGroqProvider(opts.APIKey, opts.BaseURL, opts.Model)
		p.configure(opts)
		return p, nil
	case "openai":
		p := NewOpenAIProvider("openai", opts.APIKey, opts.BaseURL, opts.Model)
		p.configure(opts)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown provider %q: expected groq or openai", opts.Name)
	}
}

func (p *OpenAIProvider) configure(opts Options) {
	if opts.MaxRetries > 0 {
		p.maxRetries = opts.MaxRetries
	}
	if opts.Timeout > 0 {
		p.httpClient.Timeout = opts.Timeout
	}
}
