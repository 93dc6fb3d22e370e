package availability

import "cloud.google.com/go/civil"

// Applies reports whether the off-day rule covers target.
//
// A one-off rule covers its own date. A recurring rule covers every date on the
// same weekday from its anchor up to RecurringUntil inclusive; with no
// RecurringUntil it is open ended and the caller bounds expansion. A recurring
// rule whose RecurringUntil precedes its anchor never applies.
func Applies(o OffDay, target civil.Date) bool {
	if !o.IsRecurring {
		return target == o.Date
	}
	if target.Before(o.Date) {
		return false
	}
	if o.RecurringUntil != nil && target.After(*o.RecurringUntil) {
		return false
	}
	return target.Weekday() == o.Date.Weekday()
}

// BlockedSlots returns the slots the rule blocks on target, or the empty set
// when it does not apply there.
func BlockedSlots(o OffDay, target civil.Date) SlotSet {
	if !Applies(o, target) {
		return 0
	}
	return SetOf(o.DisabledSlots...)
}

// Occurrences expands the rule into the dates it covers within [from, to].
func Occurrences(o OffDay, from, to civil.Date) []civil.Date {
	if to.Before(from) {
		return nil
	}
	if !o.IsRecurring {
		if o.Date.Before(from) || o.Date.After(to) {
			return nil
		}
		return []civil.Date{o.Date}
	}

	end := to
	if o.RecurringUntil != nil && o.RecurringUntil.Before(end) {
		end = *o.RecurringUntil
	}

	start := o.Date
	if start.Before(from) {
		weeks := (from.DaysSince(o.Date) + 6) / 7
		start = o.Date.AddDays(7 * weeks)
	}

	var out []civil.Date
	for d := start; !d.After(end); d = d.AddDays(7) {
		out = append(out, d)
	}
	return out
}

// touches reports whether the rule can apply anywhere within [from, to].
func touches(o OffDay, from, to civil.Date) bool {
	if !o.IsRecurring {
		return !o.Date.Before(from) && !o.Date.After(to)
	}
	if o.Date.After(to) {
		return false
	}
	if o.RecurringUntil != nil && (o.RecurringUntil.Before(from) || o.RecurringUntil.Before(o.Date)) {
		return false
	}
	return true
}
