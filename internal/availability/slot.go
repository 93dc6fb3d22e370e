// Package availability decides which half-day and full-day training slots are
// bookable on a calendar date, given the active appointments and the admin
// off-day rules for that date.
//
// Everything in this package is pure: callers pass snapshots in and get values
// back, so it can be used from any number of goroutines without locking.
// Dates are civil dates (year, month, day) with no time zone attached.
package availability

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

type SlotKind string

const (
	MorningHalf   SlotKind = "morning"
	AfternoonHalf SlotKind = "afternoon"
	FullDay       SlotKind = "full_day"
)

var ErrUnknownSlotKind = errors.New("unknown slot kind")

// Kinds lists every slot kind in display order.
func Kinds() []SlotKind {
	return []SlotKind{MorningHalf, AfternoonHalf, FullDay}
}

func ParseSlotKind(s string) (SlotKind, error) {
	k := SlotKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSlotKind, s)
	}
	return k, nil
}

func (k SlotKind) Valid() bool {
	switch k {
	case MorningHalf, AfternoonHalf, FullDay:
		return true
	}
	return false
}

// Halves returns the physical half-day slots the kind occupies.
// An unknown kind occupies nothing.
func (k SlotKind) Halves() SlotSet {
	switch k {
	case MorningHalf:
		return morningBit
	case AfternoonHalf:
		return afternoonBit
	case FullDay:
		return morningBit | afternoonBit
	}
	return 0
}

// Window returns the opening hours of the slot kind.
func (k SlotKind) Window() (start, end civil.Time) {
	switch k {
	case MorningHalf:
		return civil.Time{Hour: 8}, civil.Time{Hour: 12}
	case AfternoonHalf:
		return civil.Time{Hour: 13}, civil.Time{Hour: 17}
	case FullDay:
		return civil.Time{Hour: 8}, civil.Time{Hour: 17}
	}
	return civil.Time{}, civil.Time{}
}

// SlotSet is a set of half-day slots. FullDay is never stored on its own: a
// set contains FullDay exactly when it contains both halves.
type SlotSet uint8

const (
	morningBit SlotSet = 1 << iota
	afternoonBit
)

func SetOf(kinds ...SlotKind) SlotSet {
	var s SlotSet
	for _, k := range kinds {
		s |= k.Halves()
	}
	return s
}

func (s SlotSet) Has(k SlotKind) bool {
	h := k.Halves()
	return h != 0 && s&h == h
}

func (s SlotSet) Union(o SlotSet) SlotSet {
	return s | o
}

func (s SlotSet) Empty() bool {
	return s == 0
}

// Kinds lists the kinds contained in the set, in display order.
func (s SlotSet) Kinds() []SlotKind {
	out := make([]SlotKind, 0, 3)
	for _, k := range Kinds() {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Free lists the kinds that can still be booked when s is blocked.
func (s SlotSet) Free() []SlotKind {
	out := make([]SlotKind, 0, 3)
	for _, k := range Kinds() {
		if s&k.Halves() == 0 {
			out = append(out, k)
		}
	}
	return out
}

func (s SlotSet) String() string {
	kinds := s.Kinds()
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
