package agent

import "errors"

var (
	// ErrProviderNotSet means NewCompleter got a nil provider.
	ErrProviderNotSet = errors.New("llm provider not set")

	// ErrEmptyResponse means the provider returned no choices.
	ErrEmptyResponse = errors.New("provider returned no choices")
)
