// Package usage appends per-call usage records to a local JSONL log and
// aggregates them for display. Everything here is best-effort: the core
// never blocks on, or fails because of, usage tracking.
package usage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// Record is the read-only usage record handed to the tracker after each
// completed call, successful or not.
type Record struct {
	Timestamp        time.Time     `json:"timestamp"`
	Provider         ai.ProviderID `json:"provider"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	TotalTokens      int           `json:"total_tokens,omitempty"`
	Success          bool          `json:"success"`
}

// Logger appends records to a JSONL file under the tool's log directory.
type Logger struct {
	path string
}

// NewLogger creates a Logger writing to path. The parent directory is
// created on first append, not here.
func NewLogger(path string) *Logger {
	return &Logger{path: path}
}

// DefaultPath returns the conventional usage log location,
// ~/.config/termux-ai-tool/logs/usage.log.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "termux-ai-tool", "logs", "usage.log")
}

// Append writes one record as a JSON line. Failures are returned but callers
// are expected to ignore them; usage tracking never interrupts a completion.
func (l *Logger) Append(record Record) error {
	if l.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening usage log: %w", err)
	}
	defer file.Close()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding usage record: %w", err)
	}

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending usage record: %w", err)
	}
	return nil
}

// Stats is the aggregate view over the usage log.
type Stats struct {
	TotalCalls  int
	TotalTokens int
	ByProvider  map[string]int
	ByModel     map[string]int
	// TokensByModel carries per-model prompt and completion totals so spend
	// can be estimated from per-token pricing.
	TokensByModel map[string]TokenTotals
}

// TokenTotals accumulates prompt and completion tokens for one model.
type TokenTotals struct {
	Prompt     int
	Completion int
}

// Stats reads the whole log and aggregates it. Unparseable lines are skipped
// so one corrupt entry cannot make the history unreadable.
func (l *Logger) Stats() (*Stats, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyStats(), nil
		}
		return nil, fmt.Errorf("opening usage log: %w", err)
	}
	defer file.Close()

	stats := emptyStats()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}

		stats.TotalCalls++
		stats.TotalTokens += record.TotalTokens
		stats.ByProvider[string(record.Provider)]++
		if record.Model != "" {
			stats.ByModel[record.Model]++
			totals := stats.TokensByModel[record.Model]
			totals.Prompt += record.PromptTokens
			totals.Completion += record.CompletionTokens
			stats.TokensByModel[record.Model] = totals
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading usage log: %w", err)
	}

	return stats, nil
}

func emptyStats() *Stats {
	return &Stats{
		ByProvider:    map[string]int{},
		ByModel:       map[string]int{},
		TokensByModel: map[string]TokenTotals{},
	}
}

// Clear removes the usage log. A missing log is not an error.
func (l *Logger) Clear() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing usage log: %w", err)
	}
	return nil
}

// TopModels returns the n most used model names, most frequent first, ties
// broken alphabetically for stable output.
func (s *Stats) TopModels(n int) []string {
	models := make([]string, 0, len(s.ByModel))
	for model := range s.ByModel {
		models = append(models, model)
	}
	sort.Slice(models, func(i, j int) bool {
		if s.ByModel[models[i]] != s.ByModel[models[j]] {
			return s.ByModel[models[i]] > s.ByModel[models[j]]
		}
		return models[i] < models[j]
	})
	if len(models) > n {
		models = models[:n]
	}
	return models
}
