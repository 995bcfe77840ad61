package alongstep

import (
	"fmt"
	"sort"

	"github.com/san-kum/magtrack/internal/field"
	"github.com/san-kum/magtrack/internal/ode"
)

// FieldSource is the field an action is built for. Only the member that
// matches the registry name is used.
type FieldSource struct {
	Uniform field.Uniform
	Driver  ode.DriverOptions
	Cyl     *field.CylMapParams
	Cart    *field.CartMapParams
	RZ      *field.RZMapParams
}

type Constructor func(src FieldSource, opts Options) (*Action, error)

type Registry struct {
	actions map[string]Constructor
}

func NewRegistry() *Registry {
	r := &Registry{actions: make(map[string]Constructor)}

	r.actions["neutral"] = func(_ FieldSource, opts Options) (*Action, error) {
		return NewNeutral(opts), nil
	}
	r.actions["uniform"] = func(src FieldSource, opts Options) (*Action, error) {
		return NewUniformMsc(src.Uniform, src.Driver, opts)
	}
	r.actions["cartmap"] = func(src FieldSource, opts Options) (*Action, error) {
		if src.Cart == nil {
			return nil, fmt.Errorf("%w: cartmap needs a cartesian field map", ErrInvalidAction)
		}
		return NewCartMapMsc(src.Cart, opts)
	}
	r.actions["cylmap"] = func(src FieldSource, opts Options) (*Action, error) {
		if src.Cyl == nil {
			return nil, fmt.Errorf("%w: cylmap needs a cylindrical field map", ErrInvalidAction)
		}
		return NewCylMapMsc(src.Cyl, opts)
	}
	r.actions["rzmap"] = func(src FieldSource, opts Options) (*Action, error) {
		if src.RZ == nil {
			return nil, fmt.Errorf("%w: rzmap needs an r-z field map", ErrInvalidAction)
		}
		return NewRZMapMsc(src.RZ, opts)
	}
	return r
}

func (r *Registry) Build(name string, src FieldSource, opts Options) (*Action, error) {
	fn, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field kind %q", ErrInvalidAction, name)
	}
	return fn(src, opts)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
