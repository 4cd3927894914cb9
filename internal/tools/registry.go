// Package tools holds the named actions the model may call: their parameter
// schemas and the typed, validated form of their arguments.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lawrencecchen/autobuild/internal/adapter/llm"
)

var (
	// ErrUnknownTool is returned for an action name that is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArgs is matched by every ArgsError.
	ErrInvalidArgs = errors.New("invalid arguments")
)

// ArgsError describes arguments that failed to decode or validate.
type ArgsError struct {
	Tool   string
	Reason string
}

func (e *ArgsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

// Is reports whether target is ErrInvalidArgs.
func (e *ArgsError) Is(target error) bool {
	return target == ErrInvalidArgs
}

// Args is the validated argument set of one action.
type Args interface {
	Validate() error
}

// ParseFunc decodes raw JSON arguments into a typed Args.
type ParseFunc func(raw json.RawMessage) (Args, error)

// Definition describes one action offered to the model.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Parse       ParseFunc
}

// Registry stores action definitions keyed by name.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	order []string
}

// DefaultRegistry is the shared registry holding the built-in actions.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
	}
}

// Register adds a new action definition.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Parse == nil {
		return fmt.Errorf("parser is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// MustRegister adds a definition or panics.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Parse decodes and validates raw arguments for the named action.
func (r *Registry) Parse(name string, raw json.RawMessage) (Args, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	args, err := def.Parse(raw)
	if err != nil {
		return nil, &ArgsError{Tool: name, Reason: err.Error()}
	}
	if err := args.Validate(); err != nil {
		return nil, &ArgsError{Tool: name, Reason: err.Error()}
	}
	return args, nil
}

// Definitions returns every definition in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Functions returns the definitions in the form sent to the completion API.
func (r *Registry) Functions() []llm.Function {
	defs := r.Definitions()
	out := make([]llm.Function, 0, len(defs))
	for _, def := range defs {
		out = append(out, llm.Function{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return out
}

// decode is the ParseFunc shared by the built-in actions.
func decode[T Args](raw json.RawMessage) (Args, error) {
	var args T
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}
