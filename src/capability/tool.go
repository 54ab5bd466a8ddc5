package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"market-agent/src/helpers"
	"market-agent/src/models"

	"github.com/google/jsonschema-go/jsonschema"
)

// -----------------------------------------------------------------------------
// Capability is a named action the reasoner may choose to invoke
// -----------------------------------------------------------------------------

type Capability interface {
	Name() string
	Description() string

	// Schema describes the arguments accepted by Run
	Schema() (*jsonschema.Schema, error)

	// Run executes with arguments that already passed the schema
	Run(ctx context.Context, args json.RawMessage) (Result, error)
}

// Result is what a capability hands back to the run
type Result interface {
	// Summary is the text fed back to the reasoner
	Summary() string
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

type Registry struct {
	caps  map[string]Capability
	order []string
}

func NewRegistry(caps ...Capability) (*Registry, error) {
	r := &Registry{caps: make(map[string]Capability)}
	for _, c := range caps {
		name := c.Name()
		if name == "" {
			return nil, helpers.NewValidationError("capability name cannot be empty", nil)
		}
		if _, exists := r.caps[name]; exists {
			return nil, helpers.NewValidationError(fmt.Sprintf("duplicate capability name: %q", name), nil)
		}
		r.caps[name] = c
		r.order = append(r.order, name)
	}
	return r, nil
}

// -----------------------------------------------------------------------------

// Names returns capability names in registration order
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// -----------------------------------------------------------------------------

// Declarations describes every capability to the reasoner
func (r *Registry) Declarations() ([]models.MCapabilityDecl, error) {
	decls := make([]models.MCapabilityDecl, 0, len(r.order))
	for _, name := range r.order {
		c := r.caps[name]
		schema, err := c.Schema()
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", name, err)
		}
		params, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("encode schema for %s: %w", name, err)
		}
		decls = append(decls, models.MCapabilityDecl{
			Name:        name,
			Description: c.Description(),
			Parameters:  params,
		})
	}
	return decls, nil
}

// -----------------------------------------------------------------------------

// Invoke validates args against the capability schema, then runs it.
// Rejected arguments never reach Run.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	c, ok := r.caps[name]
	if !ok {
		return nil, helpers.NewValidationError(fmt.Sprintf("unknown capability %q (have %v)", name, r.sortedNames()), nil)
	}

	if err := validate(c, args); err != nil {
		return nil, err
	}

	return c.Run(ctx, args)
}

// -----------------------------------------------------------------------------

func validate(c Capability, args json.RawMessage) error {
	schema, err := c.Schema()
	if err != nil {
		return helpers.NewValidationError("schema generation failed", err)
	}
	if schema == nil {
		return nil
	}

	input := map[string]any{}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &input); err != nil {
			return helpers.NewValidationError(fmt.Sprintf("arguments for %s are not a JSON object", c.Name()), err)
		}
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return helpers.NewValidationError("schema resolution failed", err)
	}
	if err := resolved.Validate(input); err != nil {
		return helpers.NewValidationError(fmt.Sprintf("invalid arguments for %s", c.Name()), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (r *Registry) sortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
