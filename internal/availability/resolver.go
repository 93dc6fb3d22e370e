package availability

import (
	"time"

	"cloud.google.com/go/civil"
)

// BlockedOn unions everything that makes a half-day slot unbookable on date:
// the off-day rules covering it and the appointments already placed on it.
func BlockedOn(date civil.Date, offDays []OffDay, appointments []Appointment) SlotSet {
	var blocked SlotSet
	for _, o := range offDays {
		blocked |= BlockedSlots(o, date)
	}
	for _, a := range appointments {
		if a.Date == date {
			blocked |= a.Type.Halves()
		}
	}
	return blocked
}

// IsSlotAvailable reports whether requested can be booked on date. A full day
// needs both halves free. Unknown kinds are never available. Past dates are
// not special-cased here.
func IsSlotAvailable(date civil.Date, requested SlotKind, offDays []OffDay, appointments []Appointment) bool {
	if !requested.Valid() {
		return false
	}
	return BlockedOn(date, offDays, appointments)&requested.Halves() == 0
}

// AvailableSlots lists the bookable kinds on date in display order.
func AvailableSlots(date civil.Date, offDays []OffDay, appointments []Appointment) []SlotKind {
	return BlockedOn(date, offDays, appointments).Free()
}

// BuildMonthAvailability produces one entry per date from firstDay to lastDay
// inclusive, in calendar order. Each entry matches what IsSlotAvailable
// answers for that date and each kind.
func BuildMonthAvailability(firstDay, lastDay civil.Date, offDays []OffDay, appointments []Appointment) []DateAvailability {
	if lastDay.Before(firstDay) {
		return []DateAvailability{}
	}

	relevant := make([]OffDay, 0, len(offDays))
	for _, o := range offDays {
		if touches(o, firstDay, lastDay) {
			relevant = append(relevant, o)
		}
	}

	booked := make(map[civil.Date]SlotSet)
	for _, a := range appointments {
		if a.Date.Before(firstDay) || a.Date.After(lastDay) {
			continue
		}
		booked[a.Date] |= a.Type.Halves()
	}

	out := make([]DateAvailability, 0, lastDay.DaysSince(firstDay)+1)
	for d := firstDay; !d.After(lastDay); d = d.AddDays(1) {
		blocked := booked[d]
		for _, o := range relevant {
			blocked |= BlockedSlots(o, d)
		}
		out = append(out, DateAvailability{Date: d, AvailableSlots: blocked.Free()})
	}
	return out
}

// MonthBounds returns the first and last day of a calendar month.
func MonthBounds(year int, month time.Month) (first, last civil.Date) {
	first = civil.Date{Year: year, Month: month, Day: 1}
	last = first.AddMonths(1).AddDays(-1)
	return first, last
}
