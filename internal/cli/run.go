package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/subhobhai943/termux-ai-tool/config"
	"github.com/subhobhai943/termux-ai-tool/core/manager"
	"github.com/subhobhai943/termux-ai-tool/core/parse"
	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// jsonEnvelope is the machine-readable output shape for --json mode. Data
// carries the JSON document extracted from the model text when one exists.
type jsonEnvelope struct {
	Provider     ai.ProviderID   `json:"provider"`
	Model        string          `json:"model"`
	Text         string          `json:"text"`
	FinishReason ai.FinishReason `json:"finish_reason"`
	Usage        *ai.Usage       `json:"usage,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// runPrompt executes a single-prompt completion, streamed or buffered.
func (a *App) runPrompt(ctx context.Context, mgr *manager.Manager, cfg *config.Manager, opts *options) int {
	credential, err := credentialFor(cfg, ai.ProviderID(opts.provider))
	if err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	request := buildRequest(opts, []ai.Message{{Role: ai.RoleUser, Content: opts.prompt}})

	if opts.stream && !opts.jsonOutput {
		stream, err := mgr.CompleteStreaming(ctx, request, credential)
		if err != nil {
			return a.printError(err, opts.verbose)
		}

		for chunk, err := range stream.Iter() {
			if err != nil {
				fmt.Fprintln(a.Stdout)
				return a.printError(err, opts.verbose)
			}
			fmt.Fprint(a.Stdout, chunk.Text)
		}
		fmt.Fprintln(a.Stdout)
		return exitOK
	}

	// JSON mode always collects the full result, even with --stream.
	var result *ai.CompletionResult
	if opts.stream {
		stream, streamErr := mgr.CompleteStreaming(ctx, request, credential)
		if streamErr != nil {
			return a.printError(streamErr, opts.verbose)
		}
		result, err = stream.Collect()
		backfillStreamResult(result, request, mgr)
	} else {
		result, err = mgr.Complete(ctx, request, credential)
	}
	if err != nil {
		return a.printError(err, opts.verbose)
	}

	if opts.jsonOutput {
		return a.printJSON(result)
	}

	fmt.Fprintf(a.Stdout, "AI: %s\n", result.Text)
	return exitOK
}

// backfillStreamResult fills identity fields a collected stream cannot know,
// so the JSON envelope matches what the buffered path reports: the requested
// model, falling back to the adapter default when none was given.
func backfillStreamResult(result *ai.CompletionResult, request ai.CompletionRequest, mgr *manager.Manager) {
	if result == nil {
		return
	}
	if result.Provider == "" {
		result.Provider = request.Provider
	}
	if result.Model == "" {
		result.Model = request.Model
	}
	if result.Model == "" {
		for _, info := range mgr.ListProviders() {
			if info.ID == request.Provider {
				result.Model = info.DefaultModel
				break
			}
		}
	}
}

// runInteractive runs a multi-turn chat loop. Conversation history lives
// only for the session and is resent whole on every turn.
func (a *App) runInteractive(ctx context.Context, mgr *manager.Manager, cfg *config.Manager, opts *options) int {
	provider := ai.ProviderID(opts.provider)
	if provider == "" {
		fmt.Fprint(a.Stdout, "Choose provider (openai/anthropic/gemini/cohere/huggingface): ")
		line, ok := readLine(bufio.NewScanner(a.Stdin))
		if !ok {
			return exitUsage
		}
		provider = ai.ProviderID(strings.TrimSpace(line))
	}

	credential, err := credentialFor(cfg, provider)
	if err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	fmt.Fprintf(a.Stdout, "Starting interactive mode with %s\n", provider)
	fmt.Fprintln(a.Stdout, "Type 'quit' or 'exit' to stop")
	fmt.Fprintln(a.Stdout, strings.Repeat("-", 50))

	var history []ai.Message
	scanner := bufio.NewScanner(a.Stdin)

	for {
		if ctx.Err() != nil {
			fmt.Fprintln(a.Stdout, "\nGoodbye!")
			return exitOK
		}

		fmt.Fprint(a.Stdout, "You: ")
		line, ok := readLine(scanner)
		if !ok {
			fmt.Fprintln(a.Stdout, "\nGoodbye!")
			return exitOK
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			fmt.Fprintln(a.Stdout, "Goodbye!")
			return exitOK
		}

		history = append(history, ai.Message{Role: ai.RoleUser, Content: input})

		reply, err := a.converse(ctx, mgr, provider, opts, history, credential)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(a.Stdout, "\nGoodbye!")
				return exitOK
			}
			fmt.Fprintf(a.Stderr, "\nError: %v\n", err)
			// Drop the failed turn so a transient error does not poison
			// the session history.
			history = history[:len(history)-1]
			continue
		}

		history = append(history, ai.Message{Role: ai.RoleAssistant, Content: reply})
	}
}

// converse sends the running history and renders the reply, streaming when
// the provider supports it.
func (a *App) converse(ctx context.Context, mgr *manager.Manager, provider ai.ProviderID, opts *options, history []ai.Message, credential ai.Credential) (string, error) {
	request := ai.CompletionRequest{
		Provider:    provider,
		Model:       opts.model,
		Messages:    history,
		Temperature: float32(opts.temperature),
		MaxTokens:   opts.maxTokens,
	}

	supportsStreaming := true
	for _, info := range mgr.ListProviders() {
		if info.ID == provider {
			supportsStreaming = info.SupportsStreaming
		}
	}

	fmt.Fprint(a.Stdout, "AI: ")

	if !supportsStreaming {
		result, err := mgr.Complete(ctx, request, credential)
		if err != nil {
			return "", err
		}
		fmt.Fprintln(a.Stdout, result.Text)
		return result.Text, nil
	}

	stream, err := mgr.CompleteStreaming(ctx, request, credential)
	if err != nil {
		return "", err
	}

	var reply strings.Builder
	for chunk, err := range stream.Iter() {
		if err != nil {
			return reply.String(), err
		}
		fmt.Fprint(a.Stdout, chunk.Text)
		reply.WriteString(chunk.Text)
	}
	fmt.Fprintln(a.Stdout)

	return reply.String(), nil
}

// printJSON emits the result envelope, attaching any JSON document found in
// the model text.
func (a *App) printJSON(result *ai.CompletionResult) int {
	envelope := jsonEnvelope{
		Provider:     result.Provider,
		Model:        result.Model,
		Text:         result.Text,
		FinishReason: result.FinishReason,
		Usage:        result.Usage,
	}
	if data, err := parse.ExtractJSON(result.Text); err == nil {
		envelope.Data = data
	}

	encoder := json.NewEncoder(a.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(envelope); err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

// printError renders a failure for the terminal. Validation mistakes map to
// the usage exit code; verbose mode adds the raw vendor payload snippet.
func (a *App) printError(err error, verbose bool) int {
	fmt.Fprintf(a.Stderr, "Error: %v\n", err)

	var providerErr *ai.ProviderError
	if errors.As(err, &providerErr) {
		if verbose && providerErr.Snippet != "" {
			fmt.Fprintf(a.Stderr, "Raw response: %s\n", providerErr.Snippet)
		}
		if providerErr.Kind == ai.KindInvalidRequest || providerErr.Kind == ai.KindUnknownProvider {
			return exitUsage
		}
	}
	return exitError
}

// readLine reads one line, reporting false on EOF.
func readLine(scanner *bufio.Scanner) (string, bool) {
	if !scanner.Scan() {
		return "", false
	}
	return scanner.Text(), true
}
