package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/agentwatch/types"
	"go.uber.org/zap"
)

// ErrToolNotFound is returned by Registry.Get for unknown names.
var ErrToolNotFound = errors.New("tool not found")

// ToolFunc is the body of a tool.
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolMetadata describes a registered tool.
type ToolMetadata struct {
	Schema types.ToolSchema
	// Timeout bounds a single call; zero means no per-tool limit.
	Timeout time.Duration
}

// Registry is the tool catalog.
type Registry interface {
	Register(name string, fn ToolFunc, metadata ToolMetadata) error
	Unregister(name string) error
	Get(name string) (ToolFunc, ToolMetadata, error)
	List() []types.ToolSchema
	Has(name string) bool
}

// DefaultRegistry is a concurrency-safe in-memory Registry.
type DefaultRegistry struct {
	mu       sync.RWMutex
	tools    map[string]ToolFunc
	metadata map[string]ToolMetadata
	logger   *zap.Logger
}

// NewDefaultRegistry creates an empty registry.
func NewDefaultRegistry(logger *zap.Logger) *DefaultRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultRegistry{
		tools:    make(map[string]ToolFunc),
		metadata: make(map[string]ToolMetadata),
		logger:   logger.With(zap.String("component", "tool_registry")),
	}
}

func (r *DefaultRegistry) Register(name string, fn ToolFunc, metadata ToolMetadata) error {
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if fn == nil {
		return fmt.Errorf("tool %s has no function", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	if metadata.Schema.Name == "" {
		metadata.Schema.Name = name
	}
	if metadata.Schema.Name != name {
		return fmt.Errorf("tool name mismatch: schema.Name=%s, register name=%s", metadata.Schema.Name, name)
	}

	r.tools[name] = fn
	r.metadata[name] = metadata

	r.logger.Debug("tool registered", zap.String("name", name))
	return nil
}

func (r *DefaultRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	delete(r.tools, name)
	delete(r.metadata, name)
	return nil
}

func (r *DefaultRegistry) Get(name string) (ToolFunc, ToolMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tools[name]
	if !ok {
		return nil, ToolMetadata{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return fn, r.metadata[name], nil
}

// List returns all schemas sorted by name.
func (r *DefaultRegistry) List() []types.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]types.ToolSchema, 0, len(r.metadata))
	for _, meta := range r.metadata {
		schemas = append(schemas, meta.Schema)
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

func (r *DefaultRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}
