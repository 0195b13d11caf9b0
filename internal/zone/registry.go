package zone

import (
	"fmt"
	"sort"
	"strings"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RegistryConfig holds everything needed to build a Registry. There is no
// package-level default; callers pass the configuration explicitly.
type RegistryConfig struct {
	// Elements maps element names to their decoded capability descriptors.
	Elements map[string]map[string]any

	// TrackQuantities enables quantity tracking for wells whose element has
	// a default quantity.
	TrackQuantities bool

	// Logger is optional.
	Logger Logger
}

// QuantitySnapshot is the tracked quantity of one well at a point in time.
type QuantitySnapshot struct {
	Element  string
	Index    int
	Quantity float64
}

// Registry holds every Element and Well of the platform and the name table
// used to resolve caller-supplied zone names.
//
// Each well is reachable under one name per addressing state: a well of an
// element with states {default: ISYNTH, dispense: ISYNTH_DISP} resolves from
// both "ISYNTH:3" and "ISYNTH_DISP:3", the latter yielding the dispense view.
//
// The Registry is built once at startup and is read-only afterwards.
type Registry struct {
	elements map[string]*Element
	wells    map[string][]*Well // element name -> wells by index-1
	names    map[string]WellRef
	logger   Logger
}

// NewRegistry builds all elements and wells from configuration.
//
// Returns:
//   - *Registry: Ready-to-use registry
//   - error: ErrConfiguration if any descriptor is invalid or two wells
//     share a wire name
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	r := &Registry{
		elements: make(map[string]*Element, len(cfg.Elements)),
		wells:    make(map[string][]*Well, len(cfg.Elements)),
		names:    make(map[string]WellRef),
		logger:   cfg.Logger,
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}

	// Deterministic build order keeps duplicate-name errors stable.
	elementNames := make([]string, 0, len(cfg.Elements))
	for name := range cfg.Elements {
		elementNames = append(elementNames, name)
	}
	sort.Strings(elementNames)

	for _, name := range elementNames {
		element, err := NewElement(name, cfg.Elements[name])
		if err != nil {
			return nil, err
		}
		r.elements[name] = element

		wells := make([]*Well, element.Wells())
		for i := range wells {
			w, err := NewWell(element, i+1, cfg.TrackQuantities)
			if err != nil {
				return nil, err
			}
			wells[i] = w
			if err := r.register(w); err != nil {
				return nil, err
			}
		}
		r.wells[name] = wells
	}

	r.logger.Info("zone registry initialised",
		"elements", len(r.elements),
		"names", len(r.names),
		"track_quantities", cfg.TrackQuantities,
	)
	return r, nil
}

// register adds one name per addressing state of w.
func (r *Registry) register(w *Well) error {
	for _, state := range w.element.StateNames() {
		ref := WellRef{Well: w, State: state}
		name := ref.String()

		existing, taken := r.names[name]
		switch {
		case !taken:
			r.names[name] = ref
		case existing.Well == w:
			// Two states of the same element share a prefix; keep the default view.
			if state == DefaultState {
				r.names[name] = ref
			}
		default:
			return fmt.Errorf("%w: wire name %s used by both %s and %s",
				ErrConfiguration, name, existing.Well.element.Name(), w.element.Name())
		}
	}
	return nil
}

// Element returns the element with the given name.
func (r *Registry) Element(name string) (*Element, bool) {
	e, ok := r.elements[name]
	return e, ok
}

// Elements returns all elements sorted by name.
func (r *Registry) Elements() []*Element {
	out := make([]*Element, 0, len(r.elements))
	for _, e := range r.elements {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Well returns the well of element at the 1-based index.
func (r *Registry) Well(element string, index int) (*Well, error) {
	wells, ok := r.wells[element]
	if !ok {
		return nil, fmt.Errorf("%w: element %s", ErrUnknownWell, element)
	}
	if index < 1 || index > len(wells) {
		return nil, fmt.Errorf("%w: %s has no well %d", ErrUnknownWell, element, index)
	}
	return wells[index-1], nil
}

// Lookup resolves a wire name such as "RACKL:12" to its well and state.
func (r *Registry) Lookup(name string) (WellRef, bool) {
	ref, ok := r.names[strings.TrimSpace(name)]
	return ref, ok
}

// Names returns every resolvable well name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.names))
	for n := range r.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve turns a caller-supplied zone specifier into a Group.
//
// Accepted specifiers are a well name (string), a *Well, a WellRef, or a
// slice of any of these ([]string, []*Well, []WellRef, []any). A single
// value is treated as a one-element list and input order is preserved. A
// string containing ';' is split into several names. Strings resolve to
// the state their name encodes; *Well members use the well's own state.
//
// If state is given, the group is readdressed in that state after
// resolution.
//
// Returns:
//   - *Group: Resolved group
//   - error: ErrUnknownWell for unknown names, ErrElement if the state is
//     not supported by a member, ErrConfiguration for unsupported input types
func (r *Registry) Resolve(spec any, state ...string) (*Group, error) {
	var items []any
	switch v := spec.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []*Well:
		for _, w := range v {
			items = append(items, w)
		}
	case []WellRef:
		for _, ref := range v {
			items = append(items, ref)
		}
	case *Group:
		items = make([]any, 0, v.Len())
		for _, ref := range v.refs {
			items = append(items, ref)
		}
	default:
		items = []any{spec}
	}

	refs := make([]WellRef, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			for _, name := range strings.Split(v, ";") {
				ref, ok := r.Lookup(name)
				if !ok {
					return nil, fmt.Errorf("%w: %q", ErrUnknownWell, name)
				}
				refs = append(refs, ref)
			}
		case *Well:
			if v == nil {
				return nil, fmt.Errorf("%w: nil well", ErrConfiguration)
			}
			refs = append(refs, WellRef{Well: v, State: v.State()})
		case WellRef:
			if v.Well == nil {
				return nil, fmt.Errorf("%w: nil well reference", ErrConfiguration)
			}
			refs = append(refs, v)
		default:
			return nil, fmt.Errorf("%w: cannot resolve zone of type %T", ErrConfiguration, item)
		}
	}

	group := NewGroup(refs...)
	if len(state) > 0 && state[0] != "" {
		if err := group.SetState(state[0]); err != nil {
			return nil, err
		}
	}
	return group, nil
}

// Snapshot returns the tracked quantity of every tracked well, ordered by
// element name and index.
func (r *Registry) Snapshot() []QuantitySnapshot {
	var snaps []QuantitySnapshot
	for _, e := range r.Elements() {
		for _, w := range r.wells[e.name] {
			if q, ok := w.Quantity(); ok {
				snaps = append(snaps, QuantitySnapshot{Element: e.name, Index: w.index, Quantity: q})
			}
		}
	}
	return snaps
}

// Restore applies previously saved quantities. Entries for unknown wells
// are skipped with a warning; out-of-bounds quantities are an error.
func (r *Registry) Restore(snaps []QuantitySnapshot) error {
	for _, s := range snaps {
		w, err := r.Well(s.Element, s.Index)
		if err != nil {
			r.logger.Warn("skipping quantity for unknown well", "element", s.Element, "index", s.Index)
			continue
		}
		if err := w.SetQuantity(s.Quantity); err != nil {
			return err
		}
	}
	return nil
}
