package zone

import (
	"fmt"
	"math"
	"strconv"
	"sync"
)

// quantityScale is the number of internal units per quantity unit (mL for
// liquids, mg for solids). Tracked quantities are kept as integers so that
// a removal followed by the same addition restores the value exactly.
const quantityScale = 1e9

// Well is one addressable position (vial, port, capsule) inside an Element.
//
// A Well is created once per index when the Registry is built and lives for
// the process lifetime. It is only mutated through state transitions and
// quantity updates.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Well struct {
	element *Element
	index   int

	mu       sync.Mutex
	state    string
	tracked  bool
	quantity int64 // in 1/quantityScale units; meaningful only when tracked
}

// NewWell creates a well of element at the 1-based index.
//
// Tracking is enabled only if track is true and the element has a default
// quantity; the tracked quantity is then seeded from that default.
func NewWell(element *Element, index int, track bool) (*Well, error) {
	if element == nil {
		return nil, fmt.Errorf("%w: well requires an element", ErrConfiguration)
	}
	if index < 1 || index > element.Wells() {
		return nil, fmt.Errorf("%w: index %d outside 1..%d for %s",
			ErrConfiguration, index, element.Wells(), element.Name())
	}

	w := &Well{
		element: element,
		index:   index,
		state:   DefaultState,
	}
	if dq, ok := element.DefaultQuantity(); ok && track {
		w.tracked = true
		w.quantity = toUnits(dq)
	}
	return w, nil
}

// Element returns the element that owns the well.
func (w *Well) Element() *Element { return w.element }

// Index returns the 1-based position of the well within its element.
func (w *Well) Index() int { return w.index }

// State returns the current addressing state.
func (w *Well) State() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SetState changes the addressing state of the well.
// Returns ErrElement if the element cannot be addressed in that state.
func (w *Well) SetState(state string) error {
	if !w.element.HasState(state) {
		return fmt.Errorf("%w: setting %s to %s failed, element %s cannot be set to %s",
			ErrElement, w, state, w.element.Name(), state)
	}
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
	return nil
}

// Tracked reports whether quantity tracking is enabled for the well.
func (w *Well) Tracked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracked
}

// Quantity returns the tracked quantity. The second result is false when
// tracking is disabled for the well.
func (w *Well) Quantity() (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.tracked {
		return 0, false
	}
	return fromUnits(w.quantity), true
}

// SetQuantity overwrites the tracked quantity, e.g. when restoring from the
// quantity ledger or after a manual refill. It is a no-op for untracked
// wells and returns ErrQuantity if q lies outside [0, max_quantity].
func (w *Well) SetQuantity(q float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.tracked {
		return nil
	}
	if !(q >= 0) || q > w.element.MaxQuantity() {
		return fmt.Errorf("%w: %s cannot hold %g (max %g)", ErrQuantity, w.stringLocked(), q, w.element.MaxQuantity())
	}
	w.quantity = toUnits(q)
	return nil
}

// AddLiquid records q of liquid dispensed into the well.
//
// Positive additions require the element to accept liquids. When tracking
// is enabled the resulting quantity must stay within [0, max_quantity]; the
// new quantity is only committed when every check passes.
//
// Returns:
//   - error: ErrRange if q is not a finite number; ErrElement if liquids
//     cannot be added here; ErrQuantity if the well would overflow or run
//     empty
func (w *Well) AddLiquid(q float64) error {
	if err := w.checkFinite(q); err != nil {
		return err
	}
	if q >= 0 && !w.element.AddableLiquid() {
		return fmt.Errorf("%w: dispense to %s failed, addition of liquid to element %s is not allowed",
			ErrElement, w, w.element.Name())
	}
	return w.adjust(q)
}

// RemoveLiquid records q of liquid drawn from the well. It is AddLiquid(-q)
// gated on the element allowing liquid removal, so a negative removal is
// subject to the addition gate. Removing nothing is a no-op.
func (w *Well) RemoveLiquid(q float64) error {
	if err := w.checkFinite(q); err != nil {
		return err
	}
	if !w.element.RemovableLiquid() {
		return fmt.Errorf("%w: dispense from %s failed, removal of liquid from element %s is not allowed",
			ErrElement, w, w.element.Name())
	}
	if q == 0 {
		return nil
	}
	return w.AddLiquid(-q)
}

// AddSolid records a solid dispense into the well. Solid dispensing does
// not report an exact add-back, so only the phase gate is checked and the
// tracked stock is left untouched.
func (w *Well) AddSolid(q float64) error {
	if err := w.checkFinite(q); err != nil {
		return err
	}
	if !w.element.AddableSolid() {
		return fmt.Errorf("%w: dispense to %s failed, addition of solid to element %s is not allowed",
			ErrElement, w, w.element.Name())
	}
	return nil
}

// RemoveSolid records q of solid taken from the well's stock.
// Returns ErrRange if q is not a finite number and ErrQuantity if the
// remaining stock would go negative or above max_quantity.
func (w *Well) RemoveSolid(q float64) error {
	if err := w.checkFinite(q); err != nil {
		return err
	}
	if !w.element.RemovableSolid() {
		return fmt.Errorf("%w: dispense from %s failed, removal of solid from element %s is not allowed",
			ErrElement, w, w.element.Name())
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.tracked {
		return nil
	}
	limit := w.element.MaxQuantity()
	if q > limit {
		return fmt.Errorf("%w: dispense from %s failed, solid stock would be exhausted", ErrQuantity, w.stringLocked())
	}
	if q < -limit {
		return fmt.Errorf("%w: dispense to %s failed, the maximum quantity will be exceeded", ErrQuantity, w.stringLocked())
	}
	next := w.quantity - toUnits(q)
	if next < 0 {
		return fmt.Errorf("%w: dispense from %s failed, solid stock would be exhausted", ErrQuantity, w.stringLocked())
	}
	if next > toUnits(limit) {
		return fmt.Errorf("%w: dispense to %s failed, the maximum quantity will be exceeded", ErrQuantity, w.stringLocked())
	}
	w.quantity = next
	return nil
}

// checkFinite rejects NaN and infinite quantities before any gate sees them.
func (w *Well) checkFinite(q float64) error {
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return fmt.Errorf("%w: quantity %g for %s is not a finite number", ErrRange, q, w)
	}
	return nil
}

// adjust applies a signed change to the tracked quantity. q must be finite.
// Changes larger than max_quantity are rejected before conversion to
// internal units, which cannot represent them.
func (w *Well) adjust(q float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.tracked {
		return nil
	}

	limit := w.element.MaxQuantity()
	if q > limit {
		return fmt.Errorf("%w: dispense to %s failed, the maximum quantity will be exceeded", ErrQuantity, w.stringLocked())
	}
	if q < -limit {
		return fmt.Errorf("%w: dispense from %s failed, the well will be empty", ErrQuantity, w.stringLocked())
	}

	next := w.quantity + toUnits(q)
	if next > toUnits(limit) {
		return fmt.Errorf("%w: dispense to %s failed, the maximum quantity will be exceeded", ErrQuantity, w.stringLocked())
	}
	if next < 0 {
		return fmt.Errorf("%w: dispense from %s failed, the well will be empty", ErrQuantity, w.stringLocked())
	}
	w.quantity = next
	return nil
}

// ValidateParameter delegates to the owning element.
func (w *Well) ValidateParameter(name string, value any) error {
	return w.element.ValidateParameter(name, value)
}

// ElementString returns the wire prefix of the element in the well's
// current state.
func (w *Well) ElementString() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	prefix, _ := w.element.WirePrefix(w.state)
	return prefix
}

// String returns the canonical wire name "{prefix}:{index}".
func (w *Well) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stringLocked()
}

func (w *Well) stringLocked() string {
	return wireName(w.element, w.state, w.index)
}

// View returns a reference to the well addressed in state, leaving the
// well's own state untouched.
func (w *Well) View(state string) (WellRef, error) {
	if !w.element.HasState(state) {
		return WellRef{}, fmt.Errorf("%w: %s cannot be addressed as %s", ErrElement, w.element.Name(), state)
	}
	return WellRef{Well: w, State: state}, nil
}

// WellRef is a well addressed in a given state. The same physical well can
// appear under different wire names depending on the operating mode; a
// WellRef carries that mode without changing the well.
type WellRef struct {
	Well  *Well
	State string
}

// String returns the wire name of the referenced well in the ref's state.
func (r WellRef) String() string {
	return wireName(r.Well.element, r.State, r.Well.index)
}

// ElementString returns the element wire prefix in the ref's state.
func (r WellRef) ElementString() string {
	prefix, _ := r.Well.element.WirePrefix(r.State)
	return prefix
}

func wireName(e *Element, state string, index int) string {
	prefix, ok := e.WirePrefix(state)
	if !ok {
		prefix = e.Name()
	}
	return prefix + ":" + strconv.Itoa(index)
}

func toUnits(q float64) int64 {
	return int64(math.Round(q * quantityScale))
}

func fromUnits(u int64) float64 {
	return float64(u) / quantityScale
}
