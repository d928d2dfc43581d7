package estimation

import (
	"errors"
	"fmt"
)

// ErrDuplicateName is returned when a channel is registered under a name that
// is already taken.
var ErrDuplicateName = errors.New("duplicate measurement name")

// Measurements is the ordered, name-addressable registry of channels.
// Registration order is the per-tick processing order. The set is fixed once
// the estimator is running: structural mutation is only valid during setup,
// and the type is not safe for concurrent use.
type Measurements struct {
	order  []Measurement
	byName map[string]Measurement
}

// NewMeasurements returns an empty registry.
func NewMeasurements() *Measurements {
	return &Measurements{byName: make(map[string]Measurement)}
}

// Add registers a channel, preserving insertion order.
func (ms *Measurements) Add(m Measurement) error {
	name := m.Name()
	if name == "" {
		return errors.New("measurement name must not be empty")
	}
	if _, exists := ms.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	ms.order = append(ms.order, m)
	ms.byName[name] = m
	return nil
}

// Get returns the channel registered under name, or nil.
func (ms *Measurements) Get(name string) Measurement {
	return ms.byName[name]
}

// All returns the channels in registration order. The returned slice is
// shared; callers must not mutate it.
func (ms *Measurements) All() []Measurement {
	return ms.order
}

// Names returns the channel names in registration order.
func (ms *Measurements) Names() []string {
	names := make([]string, len(ms.order))
	for i, m := range ms.order {
		names[i] = m.Name()
	}
	return names
}

// Len returns the number of registered channels.
func (ms *Measurements) Len() int { return len(ms.order) }
