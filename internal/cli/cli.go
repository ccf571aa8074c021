// Package cli implements the termux-ai command line interface: flag parsing,
// configuration commands, single-prompt and interactive completion modes,
// and usage statistics.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/subhobhai943/termux-ai-tool/config"
	"github.com/subhobhai943/termux-ai-tool/core/cost"
	"github.com/subhobhai943/termux-ai-tool/core/manager"
	"github.com/subhobhai943/termux-ai-tool/providers/ai"
	"github.com/subhobhai943/termux-ai-tool/usage"
)

// Exit codes. Validation and usage mistakes are distinguished from runtime
// failures so scripts can branch on them.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// options holds the parsed command line.
type options struct {
	provider    string
	prompt      string
	model       string
	temperature float64
	maxTokens   int
	stream      bool

	configSet    string
	configGet    string
	configDelete string
	configList   bool
	configExport string
	configImport string

	listProviders bool
	listModels    bool

	interactive bool
	verbose     bool
	jsonOutput  bool

	usageStats bool
	usageClear bool
}

// App wires the CLI to its collaborators. Streams default to the process
// standard streams; tests substitute buffers.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewApp returns an App bound to the process standard streams.
func NewApp() *App {
	return &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run parses args (without the program name) and executes the selected
// command, returning the process exit code.
func (a *App) Run(args []string) int {
	opts, err := parseFlags(args, a.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	logger := newLogger(a.Stderr, opts.verbose)
	slog.SetDefault(logger)

	configPath, err := config.DefaultPath()
	if err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return exitError
	}
	cfg, err := config.NewManager(configPath)
	if err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return exitError
	}

	usageLog := usage.NewLogger(usage.DefaultPath())

	// Commands that need no provider call.
	switch {
	case opts.configSet != "":
		return a.runConfigSet(cfg, opts.configSet)
	case opts.configGet != "":
		return a.runConfigGet(cfg, opts.configGet)
	case opts.configDelete != "":
		return a.runConfigDelete(cfg, opts.configDelete)
	case opts.configList:
		return a.runConfigList(cfg)
	case opts.configExport != "":
		return a.runConfigFile(cfg.Export, opts.configExport, "exported to")
	case opts.configImport != "":
		return a.runConfigFile(cfg.Import, opts.configImport, "imported from")
	case opts.usageStats:
		return a.runUsageStats(usageLog)
	case opts.usageClear:
		return a.runUsageClear(usageLog)
	}

	applyConfigDefaults(opts, cfg)

	mgr := manager.New(
		manager.WithLogger(logger),
		manager.WithRecorder(func(record usage.Record) {
			if err := usageLog.Append(record); err != nil {
				logger.Debug("usage record not written", "error", err.Error())
			}
		}),
	)

	switch {
	case opts.listProviders:
		return a.runListProviders(mgr, cfg)
	case opts.listModels:
		return a.runListModels(mgr, opts.provider)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.interactive {
		return a.runInteractive(ctx, mgr, cfg, opts)
	}

	if opts.provider == "" {
		fmt.Fprintln(a.Stderr, "Error: --provider is required for AI requests")
		return exitUsage
	}
	if opts.prompt == "" {
		fmt.Fprintln(a.Stderr, "Error: --prompt is required for AI requests")
		return exitUsage
	}

	return a.runPrompt(ctx, mgr, cfg, opts)
}

func parseFlags(args []string, errOut io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("termux-ai", flag.ContinueOnError)
	fs.SetOutput(errOut)

	fs.StringVar(&opts.provider, "provider", "", "AI provider to use (openai, anthropic, gemini, cohere, huggingface)")
	fs.StringVar(&opts.provider, "p", "", "Shorthand for --provider")
	fs.StringVar(&opts.prompt, "prompt", "", "Prompt to send to the AI")
	fs.StringVar(&opts.prompt, "q", "", "Shorthand for --prompt")
	fs.StringVar(&opts.model, "model", "", "Model to use (e.g. gpt-4, claude-3-opus-20240229)")
	fs.StringVar(&opts.model, "m", "", "Shorthand for --model")
	fs.Float64Var(&opts.temperature, "temperature", 0, "Sampling temperature, 0.0 to 2.0")
	fs.Float64Var(&opts.temperature, "t", 0, "Shorthand for --temperature")
	fs.IntVar(&opts.maxTokens, "max-tokens", 0, "Maximum tokens in the response")
	fs.BoolVar(&opts.stream, "stream", false, "Stream the response in real time")

	fs.StringVar(&opts.configSet, "config-set", "", "Set a configuration value as KEY=VALUE")
	fs.StringVar(&opts.configGet, "config-get", "", "Print one configuration value")
	fs.StringVar(&opts.configDelete, "config-delete", "", "Delete a configuration key")
	fs.BoolVar(&opts.configList, "config-list", false, "List all configuration")
	fs.StringVar(&opts.configExport, "config-export", "", "Export configuration (keys masked) to a file")
	fs.StringVar(&opts.configImport, "config-import", "", "Import configuration from a file")

	fs.BoolVar(&opts.listProviders, "list-providers", false, "List available providers")
	fs.BoolVar(&opts.listModels, "list-models", false, "List known models for --provider")

	fs.BoolVar(&opts.interactive, "interactive", false, "Start interactive chat mode")
	fs.BoolVar(&opts.interactive, "i", false, "Shorthand for --interactive")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose output")
	fs.BoolVar(&opts.verbose, "v", false, "Shorthand for --verbose")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Emit the result as JSON")

	fs.BoolVar(&opts.usageStats, "usage-stats", false, "Show usage statistics")
	fs.BoolVar(&opts.usageClear, "usage-clear", false, "Clear usage statistics")

	fs.Usage = func() {
		fmt.Fprintf(errOut, "Usage: termux-ai [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(errOut, `
Examples:
  termux-ai --provider openai --prompt "Hello, world!"
  termux-ai --provider anthropic --prompt "Explain quantum computing" --stream
  termux-ai --config-set openai_api_key=YOUR_API_KEY
  termux-ai --list-providers
`)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// newLogger builds a text slog handler on stderr. Verbose mode lowers the
// level to debug so per-request timing and retry decisions become visible.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// applyConfigDefaults fills flags the user left unset from the stored
// defaults. Explicit flags always win.
func applyConfigDefaults(opts *options, cfg *config.Manager) {
	if opts.provider == "" {
		opts.provider = string(cfg.DefaultProvider())
	}
	if opts.model == "" {
		opts.model = cfg.DefaultModel(ai.ProviderID(opts.provider))
	}
	if opts.temperature == 0 {
		if v, ok := cfg.DefaultTemperature(); ok {
			opts.temperature = v
		}
	}
	if opts.maxTokens == 0 {
		if v, ok := cfg.DefaultMaxTokens(); ok {
			opts.maxTokens = v
		}
	}
	if !opts.stream {
		opts.stream = cfg.StreamByDefault()
	}
}

// buildRequest assembles a completion request from the parsed flags.
func buildRequest(opts *options, messages []ai.Message) ai.CompletionRequest {
	return ai.CompletionRequest{
		Provider:    ai.ProviderID(opts.provider),
		Model:       opts.model,
		Messages:    messages,
		Temperature: float32(opts.temperature),
		MaxTokens:   opts.maxTokens,
		Stream:      opts.stream,
	}
}

// credentialFor resolves the provider credential, producing a helpful error
// when none is configured.
func credentialFor(cfg *config.Manager, provider ai.ProviderID) (ai.Credential, error) {
	credential := cfg.Credential(provider)
	if credential == "" {
		return "", fmt.Errorf("no API key configured for %s; set it with --config-set %s=YOUR_KEY",
			provider, config.CredentialKey(provider))
	}
	return credential, nil
}

func (a *App) runConfigSet(cfg *config.Manager, pair string) int {
	key, value, ok := strings.Cut(pair, "=")
	if !ok || key == "" {
		fmt.Fprintln(a.Stderr, "Error: --config-set expects KEY=VALUE")
		return exitUsage
	}
	if err := cfg.Set(key, value); err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return exitError
	}
	if provider, ok := config.ProviderForKey(key); ok {
		if hint := config.CredentialHint(provider, value); hint != "" {
			fmt.Fprintf(a.Stderr, "Warning: %s\n", hint)
		}
	}
	fmt.Fprintf(a.Stdout, "Configuration set: %s\n", key)
	return exitOK
}

func (a *App) runConfigGet(cfg *config.Manager, key string) int {
	value := cfg.Get(key)
	if value == "" {
		fmt.Fprintf(a.Stdout, "Configuration key %q not found\n", key)
		return exitError
	}
	fmt.Fprintf(a.Stdout, "%s: %s\n", key, value)
	return exitOK
}

func (a *App) runConfigDelete(cfg *config.Manager, key string) int {
	existed, err := cfg.Delete(key)
	if err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return exitError
	}
	if !existed {
		fmt.Fprintf(a.Stdout, "Configuration key %q not found\n", key)
		return exitError
	}
	fmt.Fprintf(a.Stdout, "Configuration deleted: %s\n", key)
	return exitOK
}

func (a *App) runConfigList(cfg *config.Manager) int {
	entries := cfg.All()
	if len(entries) == 0 {
		fmt.Fprintln(a.Stdout, "No configuration set.")
		return exitOK
	}
	fmt.Fprintln(a.Stdout, "Configuration:")
	for _, entry := range entries {
		fmt.Fprintf(a.Stdout, "  %s\n", entry)
	}
	return exitOK
}

func (a *App) runConfigFile(op func(string) error, path, verb string) int {
	if err := op(path); err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return exitError
	}
	fmt.Fprintf(a.Stdout, "Configuration %s %s\n", verb, path)
	return exitOK
}

func (a *App) runListProviders(mgr *manager.Manager, cfg *config.Manager) int {
	configured := cfg.ConfiguredProviders()

	fmt.Fprintln(a.Stdout, "Available providers:")
	for _, info := range mgr.ListProviders() {
		status := "no API key"
		if configured[info.ID] {
			status = "configured"
		}
		streaming := "streaming"
		if !info.SupportsStreaming {
			streaming = "no streaming"
		}
		fmt.Fprintf(a.Stdout, "  %-12s default model %s (%s, %s)\n", info.ID, info.DefaultModel, streaming, status)
	}
	return exitOK
}

func (a *App) runListModels(mgr *manager.Manager, provider string) int {
	if provider == "" {
		fmt.Fprintln(a.Stderr, "Error: --list-models requires --provider")
		return exitUsage
	}

	models, err := mgr.KnownModels(ai.ProviderID(provider))
	if err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return exitError
	}

	fmt.Fprintf(a.Stdout, "Known models for %s:\n", provider)
	for _, model := range models {
		fmt.Fprintf(a.Stdout, "  %s\n", model)
	}
	return exitOK
}

func (a *App) runUsageStats(usageLog *usage.Logger) int {
	stats, err := usageLog.Stats()
	if err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return exitError
	}
	if stats.TotalCalls == 0 {
		fmt.Fprintln(a.Stdout, "No usage data found.")
		return exitOK
	}

	fmt.Fprintf(a.Stdout, "Total API calls: %d\n", stats.TotalCalls)

	providers := make([]string, 0, len(stats.ByProvider))
	for provider := range stats.ByProvider {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	fmt.Fprintln(a.Stdout, "\nProviders used:")
	for _, provider := range providers {
		fmt.Fprintf(a.Stdout, "  %s: %d calls\n", provider, stats.ByProvider[provider])
	}

	fmt.Fprintln(a.Stdout, "\nTop models:")
	for _, model := range stats.TopModels(5) {
		fmt.Fprintf(a.Stdout, "  %s: %d calls\n", model, stats.ByModel[model])
	}

	fmt.Fprintf(a.Stdout, "\nTotal tokens: %d\n", stats.TotalTokens)

	var spend float64
	priced := false
	for model, totals := range stats.TokensByModel {
		if estimate, ok := cost.Estimate(model, totals.Prompt, totals.Completion); ok {
			spend += estimate
			priced = true
		}
	}
	if priced {
		fmt.Fprintf(a.Stdout, "Estimated spend: $%.4f (models with known pricing only)\n", spend)
	}
	return exitOK
}

func (a *App) runUsageClear(usageLog *usage.Logger) int {
	if err := usageLog.Clear(); err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return exitError
	}
	fmt.Fprintln(a.Stdout, "Usage statistics cleared.")
	return exitOK
}
