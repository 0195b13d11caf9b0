package zone

import "strings"

// Group is the transient, ordered set of wells addressed together by one
// operation. It is built per call by Registry.Resolve and discarded when the
// call returns.
//
// Broadcast operations stop at the first failing member and return its
// error. Members processed before the failure keep their updates: there is
// no rollback, and the caller must treat the whole operation as failed and
// send no command.
type Group struct {
	refs []WellRef
}

// NewGroup creates a group from well references, preserving order.
func NewGroup(refs ...WellRef) *Group {
	return &Group{refs: append([]WellRef(nil), refs...)}
}

// Refs returns a copy of the member references in order.
func (g *Group) Refs() []WellRef {
	return append([]WellRef(nil), g.refs...)
}

// Wells returns the member wells in order.
func (g *Group) Wells() []*Well {
	wells := make([]*Well, len(g.refs))
	for i, ref := range g.refs {
		wells[i] = ref.Well
	}
	return wells
}

// Len returns the number of members.
func (g *Group) Len() int { return len(g.refs) }

// SetState readdresses every member in state. Only the group's view changes;
// the wells keep their own state.
func (g *Group) SetState(state string) error {
	views := make([]WellRef, len(g.refs))
	for i, ref := range g.refs {
		view, err := ref.Well.View(state)
		if err != nil {
			return err
		}
		views[i] = view
	}
	g.refs = views
	return nil
}

// SetParameter validates a parameter value against every member's element.
func (g *Group) SetParameter(name string, value any) error {
	for _, ref := range g.refs {
		if err := ref.Well.ValidateParameter(name, value); err != nil {
			return err
		}
	}
	return nil
}

// AddLiquid records q of liquid dispensed into every member.
func (g *Group) AddLiquid(q float64) error {
	return g.each(func(w *Well) error { return w.AddLiquid(q) })
}

// RemoveLiquid records q of liquid drawn from every member.
func (g *Group) RemoveLiquid(q float64) error {
	return g.each(func(w *Well) error { return w.RemoveLiquid(q) })
}

// AddSolid records a solid dispense into every member.
func (g *Group) AddSolid(q float64) error {
	return g.each(func(w *Well) error { return w.AddSolid(q) })
}

// RemoveSolid records q of solid taken from every member.
func (g *Group) RemoveSolid(q float64) error {
	return g.each(func(w *Well) error { return w.RemoveSolid(q) })
}

func (g *Group) each(fn func(w *Well) error) error {
	for _, ref := range g.refs {
		if err := fn(ref.Well); err != nil {
			return err
		}
	}
	return nil
}

// ZoneString renders the members as the ';'-separated zone list expected by
// the external controller. Member order is kept.
func (g *Group) ZoneString() string {
	names := make([]string, len(g.refs))
	for i, ref := range g.refs {
		names[i] = ref.String()
	}
	return strings.Join(names, ";")
}

// ElementString renders the distinct element prefixes touched by the group,
// ';'-separated, for element-level operations such as stirring a rack.
func (g *Group) ElementString() string {
	seen := make(map[string]struct{}, len(g.refs))
	var prefixes []string
	for _, ref := range g.refs {
		p := ref.ElementString()
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		prefixes = append(prefixes, p)
	}
	return strings.Join(prefixes, ";")
}

// String returns ZoneString.
func (g *Group) String() string { return g.ZoneString() }
