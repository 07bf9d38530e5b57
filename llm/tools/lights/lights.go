// Package lights is a small sample tool set: an in-memory house of lights
// the assistant can inspect and switch.
package lights

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/BaSui01/agentwatch/llm/tools"
	"github.com/BaSui01/agentwatch/types"
)

// Light is one switchable light.
type Light struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	IsOn bool   `json:"is_on"`
}

// Plugin holds the light states. Safe for concurrent use.
type Plugin struct {
	mu     sync.Mutex
	lights map[int]*Light
}

// New creates a plugin seeded with the given lights, or the default three
// when none are given.
func New(initial ...Light) *Plugin {
	if len(initial) == 0 {
		initial = []Light{
			{ID: 1, Name: "Table Lamp", IsOn: false},
			{ID: 2, Name: "Porch light", IsOn: false},
			{ID: 3, Name: "Chandelier", IsOn: true},
		}
	}
	p := &Plugin{lights: make(map[int]*Light, len(initial))}
	for _, l := range initial {
		l := l
		p.lights[l.ID] = &l
	}
	return p
}

// Lights returns a snapshot ordered by id.
func (p *Plugin) Lights() []Light {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Light, 0, len(p.lights))
	for _, l := range p.lights {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChangeState switches a light. ok is false for an unknown id.
func (p *Plugin) ChangeState(id int, isOn bool) (Light, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, found := p.lights[id]
	if !found {
		return Light{}, false
	}
	l.IsOn = isOn
	return *l, true
}

// Register adds get_lights and change_state to r.
func (p *Plugin) Register(r tools.Registry) error {
	if err := r.Register("get_lights", p.getLights, tools.ToolMetadata{
		Schema: types.ToolSchema{
			Name:        "get_lights",
			Description: "Gets a list of lights and their current state",
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
	}); err != nil {
		return err
	}
	return r.Register("change_state", p.changeState, tools.ToolMetadata{
		Schema: types.ToolSchema{
			Name:        "change_state",
			Description: "Changes the state of the light",
			Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "id": {"type": "integer", "description": "The id of the light"},
    "is_on": {"type": "boolean", "description": "Whether the light should be on"}
  },
  "required": ["id", "is_on"]
}`),
		},
	})
}

func (p *Plugin) getLights(context.Context, json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(p.Lights())
}

type changeStateArgs struct {
	ID   *int  `json:"id"`
	IsOn *bool `json:"is_on"`
}

// changeState returns the updated light, or JSON null for an unknown id.
func (p *Plugin) changeState(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args changeStateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if args.ID == nil || args.IsOn == nil {
		return nil, fmt.Errorf("id and is_on are required")
	}
	l, ok := p.ChangeState(*args.ID, *args.IsOn)
	if !ok {
		return json.RawMessage(`null`), nil
	}
	return json.Marshal(l)
}
