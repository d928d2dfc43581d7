package estimation

import (
	"fmt"

	"github.com/banshee-data/pose.report/internal/config"
)

// Configure applies per-channel tuning to the registered channels. Call
// during setup, after registration and before Init. Config entries naming an
// unknown channel or parameter are errors so typos surface at startup rather
// than silently leaving defaults in place.
func (e *Estimator) Configure(cfg *config.TuningConfig) error {
	if cfg == nil {
		return nil
	}
	for name := range cfg.Channels {
		if e.measurements.Get(name) == nil {
			return fmt.Errorf("config names unknown channel %q (registered: %v)",
				name, e.measurements.Names())
		}
	}
	for _, m := range e.measurements.All() {
		cc := cfg.Channel(m.Name())
		params := m.Parameters()

		if cc.Enabled != nil {
			if *cc.Enabled {
				m.Enable()
			} else {
				m.Disable()
			}
		}
		if cc.MinInterval != nil {
			if err := params.Set("min_interval", *cc.MinInterval); err != nil {
				return fmt.Errorf("channel %s: %w", m.Name(), err)
			}
		}
		if cc.Timeout != nil {
			if err := params.Set("timeout", *cc.Timeout); err != nil {
				return fmt.Errorf("channel %s: %w", m.Name(), err)
			}
		}
		for key, value := range cc.Params {
			if err := params.Set(key, value); err != nil {
				return fmt.Errorf("channel %s: %w", m.Name(), err)
			}
		}
	}
	return nil
}
