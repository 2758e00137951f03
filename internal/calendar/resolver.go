package calendar

import "time"

// Override is an administrator-entered record superseding the default weekend
// calendar for one (institute, date).
type Override struct {
	ID          int64
	InstituteID int64
	Date        time.Time
	IsHoliday   bool
	Reason      string
}

// Decision says whether attendance marking is permitted on a day.
type Decision struct {
	Allowed  bool
	Reason   string
	IsCustom bool // true when an explicit override produced the decision
}

// Resolve applies the calendar policy in strict precedence order: an explicit
// override wins outright (a working-day override opens a weekend), otherwise
// Saturday and Sunday are blocked and every other day is allowed.
//
// Pure with respect to its inputs; the same override and date always produce
// the same decision. Both the check-holiday read path and the marking flow go
// through this function so they cannot diverge.
func Resolve(override *Override, day time.Time) Decision {
	if override != nil {
		if override.IsHoliday {
			reason := override.Reason
			if reason == "" {
				reason = "Holiday"
			}
			return Decision{Allowed: false, Reason: reason, IsCustom: true}
		}
		reason := override.Reason
		if reason == "" {
			reason = "Working Day"
		}
		return Decision{Allowed: true, Reason: reason, IsCustom: true}
	}

	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return Decision{Allowed: false, Reason: day.Weekday().String()}
	default:
		return Decision{Allowed: true, Reason: "Working day"}
	}
}
