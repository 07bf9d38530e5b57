package providers

import "time"

// BaseProviderConfig holds fields every adapter needs.
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// OpenAIConfig configures the OpenAI / Azure OpenAI adapter.
type OpenAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
	// Azure switches to deployment URLs and api-key authentication.
	Azure bool `json:"azure,omitempty" yaml:"azure,omitempty"`
	// APIVersion is the Azure REST API version.
	APIVersion   string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
}
