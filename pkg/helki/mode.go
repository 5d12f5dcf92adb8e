package helki

// Mode is an operating mode of a heater zone.
type Mode string

const (
	// ModeOff disables heating for the zone.
	ModeOff Mode = "off"

	// ModeAuto follows the programmed schedule.
	ModeAuto Mode = "auto"

	// ModeModifiedAuto overrides the schedule with a manual setpoint
	// until the next programmed change.
	ModeModifiedAuto Mode = "modified_auto"
)

// ParseMode maps a raw mode string from a status map to a Mode.
// Unknown values map to ModeAuto: the cloud occasionally reports
// transient modes during schedule transitions and treating them as
// schedule-following keeps callers from flapping to off.
func ParseMode(raw string) Mode {
	switch Mode(raw) {
	case ModeOff, ModeAuto, ModeModifiedAuto:
		return Mode(raw)
	default:
		return ModeAuto
	}
}
