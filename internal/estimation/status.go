package estimation

import "strings"

// SystemStatus is a bitmask of operational modes the estimator is currently
// in. Measurement channels consult it to decide whether they should
// participate in a given tick (see Measurement.Active).
type SystemStatus uint32

// Operational-mode flags.
const (
	StatusAlignment  SystemStatus = 1 << iota // initial alignment in progress
	StatusDegraded                            // one or more channels stale
	StatusReady                               // estimate usable by consumers
	StatusRollPitch                           // roll/pitch observable
	StatusYaw                                 // heading observable
	StatusXYPosition                          // horizontal position observable
	StatusZPosition                           // vertical position observable
	StatusXYVelocity                          // horizontal velocity observable
	StatusZVelocity                           // vertical velocity observable
)

var statusNames = []struct {
	flag SystemStatus
	name string
}{
	{StatusAlignment, "alignment"},
	{StatusDegraded, "degraded"},
	{StatusReady, "ready"},
	{StatusRollPitch, "rollpitch"},
	{StatusYaw, "yaw"},
	{StatusXYPosition, "xy_position"},
	{StatusZPosition, "z_position"},
	{StatusXYVelocity, "xy_velocity"},
	{StatusZVelocity, "z_velocity"},
}

// Contains reports whether every flag in mask is set.
func (s SystemStatus) Contains(mask SystemStatus) bool {
	return s&mask == mask
}

// String returns a comma-separated list of the set flags, or "none".
func (s SystemStatus) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	for _, e := range statusNames {
		if s&e.flag != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, ",")
}
