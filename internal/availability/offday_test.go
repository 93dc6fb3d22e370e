package availability

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestOccurrences_OneOff(t *testing.T) {
	o := OffDay{Date: date(t, "2024-06-10"), DisabledSlots: []SlotKind{MorningHalf}}

	assert.Equal(t, []civil.Date{date(t, "2024-06-10")}, Occurrences(o, date(t, "2024-06-01"), date(t, "2024-06-30")))
	assert.Empty(t, Occurrences(o, date(t, "2024-06-11"), date(t, "2024-06-30")))
	assert.Empty(t, Occurrences(o, date(t, "2024-06-30"), date(t, "2024-06-01")))
}

func TestOccurrences_RecurringStartsOnWeekdayAfterFrom(t *testing.T) {
	o := OffDay{Date: date(t, "2024-06-10"), IsRecurring: true, DisabledSlots: []SlotKind{AfternoonHalf}}

	got := Occurrences(o, date(t, "2024-06-12"), date(t, "2024-07-01"))
	assert.Equal(t, []civil.Date{
		date(t, "2024-06-17"),
		date(t, "2024-06-24"),
		date(t, "2024-07-01"),
	}, got)

	for _, d := range got {
		assert.True(t, Applies(o, d))
	}
}

func TestOccurrences_RecurringBoundedByUntil(t *testing.T) {
	o := OffDay{
		Date:           date(t, "2024-06-10"),
		IsRecurring:    true,
		RecurringUntil: datePtr(t, "2024-06-20"),
		DisabledSlots:  []SlotKind{AfternoonHalf},
	}

	assert.Equal(t, []civil.Date{date(t, "2024-06-10"), date(t, "2024-06-17")},
		Occurrences(o, date(t, "2024-06-01"), date(t, "2024-12-31")))
}

func TestBlockedSlots_NotApplicable(t *testing.T) {
	o := OffDay{Date: date(t, "2024-06-10"), IsRecurring: true, DisabledSlots: []SlotKind{MorningHalf, AfternoonHalf}}

	assert.True(t, BlockedSlots(o, date(t, "2024-06-03")).Empty(), "before anchor")
	assert.True(t, BlockedSlots(o, date(t, "2024-06-11")).Empty(), "other weekday")
	assert.True(t, BlockedSlots(o, date(t, "2024-06-17")).Has(FullDay))
}

func TestBlockedSlots_EmptyDisabledBlocksNothing(t *testing.T) {
	o := OffDay{Date: date(t, "2024-06-10")}
	assert.True(t, Applies(o, date(t, "2024-06-10")))
	assert.True(t, BlockedSlots(o, date(t, "2024-06-10")).Empty())
}
