// Package config stores API keys and tool settings in a JSON file under the
// user's config directory. Keys may also come from the environment (with an
// optional .env file), which always takes precedence over the stored file so
// a shell-exported key wins without editing config.json.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

const (
	configDirName  = "termux-ai-tool"
	configFileName = "config.json"

	dirMode  = 0o700
	fileMode = 0o600

	maskedValue = "***masked***"
)

// credentialKeys maps each provider to its config-file key and environment
// variable.
var credentialKeys = map[ai.ProviderID]struct {
	configKey string
	envVar    string
}{
	ai.ProviderOpenAI:      {"openai_api_key", "OPENAI_API_KEY"},
	ai.ProviderAnthropic:   {"anthropic_api_key", "ANTHROPIC_API_KEY"},
	ai.ProviderGemini:      {"gemini_api_key", "GEMINI_API_KEY"},
	ai.ProviderCohere:      {"cohere_api_key", "COHERE_API_KEY"},
	ai.ProviderHuggingFace: {"huggingface_api_key", "HUGGINGFACE_API_KEY"},
}

// credentialShapes holds loose shape hints for well-known key formats.
// Hints produce warnings only; a mismatched key is still stored and sent.
var credentialShapes = map[ai.ProviderID]struct {
	prefix string
	minLen int
}{
	ai.ProviderOpenAI:      {"sk-", 20},
	ai.ProviderAnthropic:   {"sk-ant-", 20},
	ai.ProviderGemini:      {"", 20},
	ai.ProviderCohere:      {"", 20},
	ai.ProviderHuggingFace: {"hf_", 20},
}

// Manager owns one config file. It loads the file once at construction and
// rewrites it on every mutation. Not safe for concurrent mutation from
// multiple goroutines; the CLI is single-threaded.
type Manager struct {
	path   string
	values map[string]any
}

// DefaultPath returns ~/.config/termux-ai-tool/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", configDirName, configFileName), nil
}

// NewManager loads the config file at path, creating the directory with
// owner-only permissions if needed. A missing file yields an empty config;
// a corrupt file is reported, not silently discarded. It also loads a .env
// file from the working directory when one exists.
func NewManager(path string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	// Best effort; most installs have no .env file.
	_ = godotenv.Load()

	m := &Manager{path: path, values: map[string]any{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, &m.values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return m, nil
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.path
}

// Get returns the value for key, or "" when unset. Non-string values are
// rendered with their JSON representation.
func (m *Manager) Get(key string) string {
	value, ok := m.values[key]
	if !ok {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	rendered, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(rendered)
}

// Set stores a value and rewrites the config file.
func (m *Manager) Set(key, value string) error {
	m.values[key] = value
	return m.save()
}

// Delete removes a key, reporting whether it existed.
func (m *Manager) Delete(key string) (bool, error) {
	if _, ok := m.values[key]; !ok {
		return false, nil
	}
	delete(m.values, key)
	return true, m.save()
}

// All returns every key in sorted order with sensitive values masked, for
// display.
func (m *Manager) All() []string {
	keys := make([]string, 0, len(m.values))
	for key := range m.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]string, 0, len(keys))
	for _, key := range keys {
		value := m.Get(key)
		if sensitiveKey(key) && value != "" {
			value = maskedValue
		}
		entries = append(entries, key+" = "+value)
	}
	return entries
}

// Credential resolves the API key for a provider: environment variable
// first, then the config file. An empty string means no key is configured.
func (m *Manager) Credential(provider ai.ProviderID) ai.Credential {
	keys, ok := credentialKeys[provider]
	if !ok {
		return ""
	}
	if value := strings.TrimSpace(os.Getenv(keys.envVar)); value != "" {
		return ai.Credential(value)
	}
	return ai.Credential(strings.TrimSpace(m.Get(keys.configKey)))
}

// CredentialKey returns the config-file key used to store a provider's API
// key, for help text.
func CredentialKey(provider ai.ProviderID) string {
	return credentialKeys[provider].configKey
}

// ConfiguredProviders reports which providers currently resolve a
// non-empty credential, in stable order.
func (m *Manager) ConfiguredProviders() map[ai.ProviderID]bool {
	configured := make(map[ai.ProviderID]bool, len(credentialKeys))
	for provider := range credentialKeys {
		configured[provider] = m.Credential(provider) != ""
	}
	return configured
}

// DefaultProvider returns the configured default provider, or "" when unset
// or not a known provider.
func (m *Manager) DefaultProvider() ai.ProviderID {
	id := ai.ProviderID(strings.TrimSpace(m.Get("default_provider")))
	if _, ok := credentialKeys[id]; !ok {
		return ""
	}
	return id
}

// DefaultModel returns the configured default model for a provider. The
// default_model key holds either a per-provider object or a single model
// name that applies to every provider.
func (m *Manager) DefaultModel(provider ai.ProviderID) string {
	switch value := m.values["default_model"].(type) {
	case string:
		return value
	case map[string]any:
		if s, ok := value[string(provider)].(string); ok {
			return s
		}
	}
	return ""
}

// DefaultTemperature returns the configured default sampling temperature.
func (m *Manager) DefaultTemperature() (float64, bool) {
	v, ok := m.values["default_temperature"].(float64)
	return v, ok
}

// DefaultMaxTokens returns the configured default response token limit.
func (m *Manager) DefaultMaxTokens() (int, bool) {
	if v, ok := m.values["default_max_tokens"].(float64); ok && v > 0 {
		return int(v), true
	}
	return 0, false
}

// StreamByDefault reports whether completions should stream unless the
// caller says otherwise.
func (m *Manager) StreamByDefault() bool {
	v, _ := m.values["stream_by_default"].(bool)
	return v
}

// ProviderForKey maps a credential config key back to its provider.
func ProviderForKey(key string) (ai.ProviderID, bool) {
	for provider, keys := range credentialKeys {
		if keys.configKey == key {
			return provider, true
		}
	}
	return "", false
}

// CredentialHint returns a human-readable warning when a key does not match
// the provider's usual shape, or "" when it looks plausible.
func CredentialHint(provider ai.ProviderID, value string) string {
	shape, ok := credentialShapes[provider]
	if !ok {
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) < shape.minLen {
		return fmt.Sprintf("%s keys are usually at least %d characters; double-check the value", provider, shape.minLen)
	}
	if shape.prefix != "" && !strings.HasPrefix(value, shape.prefix) {
		return fmt.Sprintf("%s keys usually start with %q; double-check the value", provider, shape.prefix)
	}
	return ""
}

// Export writes a copy of the config to path with all sensitive values
// masked, suitable for sharing or bug reports.
func (m *Manager) Export(path string) error {
	exported := make(map[string]any, len(m.values))
	for key, value := range m.values {
		if sensitiveKey(key) {
			exported[key] = maskedValue
			continue
		}
		exported[key] = value
	}

	data, err := json.MarshalIndent(exported, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), fileMode); err != nil {
		return fmt.Errorf("export config: %w", err)
	}
	return nil
}

// Import merges keys from a JSON file into the current config. Masked
// placeholder values are skipped so a previously exported file does not
// clobber real keys.
func (m *Manager) Import(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	imported := map[string]any{}
	if err := json.Unmarshal(data, &imported); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for key, value := range imported {
		if s, ok := value.(string); ok && s == maskedValue {
			continue
		}
		m.values[key] = value
	}
	return m.save()
}

func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(m.path, append(data, '\n'), fileMode); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	// WriteFile only applies the mode on creation.
	if err := os.Chmod(m.path, fileMode); err != nil {
		return fmt.Errorf("set config file permissions: %w", err)
	}
	return nil
}

func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "api_key") ||
		strings.Contains(lower, "token") ||
		strings.Contains(lower, "secret")
}
