package estimation

import (
	"fmt"
	"math"
	"sort"
)

// Parameter is one named tunable bound to a field of a channel or model.
// Values are written through the bound pointer so the owning component sees
// updates without re-reading any registry.
type Parameter struct {
	Name string

	// exactly one of these is non-nil
	floatTarget *float64
	intTarget   *int
	boolTarget  *bool
}

// Kind describes the value type of the parameter: "float", "int" or "bool".
func (p *Parameter) Kind() string {
	switch {
	case p.floatTarget != nil:
		return "float"
	case p.intTarget != nil:
		return "int"
	default:
		return "bool"
	}
}

// ParameterList is an ordered, name-addressable set of tunables. A channel
// aggregates its own parameters with those delegated from its bound model so
// configuration can address everything under one namespace.
//
// Registration happens during setup; Set may be called at runtime from the
// tick-loop thread (tuning), never concurrently with Process.
type ParameterList struct {
	entries []*Parameter
	index   map[string]*Parameter
}

// NewParameterList returns an empty list.
func NewParameterList() *ParameterList {
	return &ParameterList{index: make(map[string]*Parameter)}
}

func (l *ParameterList) register(p *Parameter) {
	if _, exists := l.index[p.Name]; exists {
		// first registration wins; duplicates indicate a wiring mistake
		return
	}
	l.entries = append(l.entries, p)
	l.index[p.Name] = p
}

// AddFloat registers a float64 tunable, initialising *target to def.
func (l *ParameterList) AddFloat(name string, target *float64, def float64) {
	*target = def
	l.register(&Parameter{Name: name, floatTarget: target})
}

// AddInt registers an int tunable, initialising *target to def.
func (l *ParameterList) AddInt(name string, target *int, def int) {
	*target = def
	l.register(&Parameter{Name: name, intTarget: target})
}

// AddBool registers a bool tunable, initialising *target to def.
func (l *ParameterList) AddBool(name string, target *bool, def bool) {
	*target = def
	l.register(&Parameter{Name: name, boolTarget: target})
}

// Merge appends every parameter of other that is not already registered.
// Used by channels to adopt their model's tunables.
func (l *ParameterList) Merge(other *ParameterList) {
	if other == nil {
		return
	}
	for _, p := range other.entries {
		l.register(p)
	}
}

// Set writes a numeric value to the named parameter, converting to the
// registered kind (bool parameters treat non-zero as true). Returns an error
// for unknown names so configuration typos surface at load time.
func (l *ParameterList) Set(name string, value float64) error {
	p, ok := l.index[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	switch {
	case p.floatTarget != nil:
		*p.floatTarget = value
	case p.intTarget != nil:
		*p.intTarget = int(math.Round(value))
	case p.boolTarget != nil:
		*p.boolTarget = value != 0
	}
	return nil
}

// Get returns the current value of the named parameter as a float64.
func (l *ParameterList) Get(name string) (float64, bool) {
	p, ok := l.index[name]
	if !ok {
		return 0, false
	}
	switch {
	case p.floatTarget != nil:
		return *p.floatTarget, true
	case p.intTarget != nil:
		return float64(*p.intTarget), true
	case p.boolTarget != nil:
		if *p.boolTarget {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Names returns the registered parameter names, sorted.
func (l *ParameterList) Names() []string {
	names := make([]string, 0, len(l.entries))
	for _, p := range l.entries {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered parameters.
func (l *ParameterList) Len() int { return len(l.entries) }
