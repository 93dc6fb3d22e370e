package availability

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSlotKind(t *testing.T) {
	k, err := ParseSlotKind(" Morning ")
	require.NoError(t, err)
	assert.Equal(t, MorningHalf, k)

	k, err = ParseSlotKind("full_day")
	require.NoError(t, err)
	assert.Equal(t, FullDay, k)

	_, err = ParseSlotKind("evening")
	assert.ErrorIs(t, err, ErrUnknownSlotKind)

	_, err = ParseSlotKind("")
	assert.ErrorIs(t, err, ErrUnknownSlotKind)
}

func TestSlotSet_FullDayIsUnionOfHalves(t *testing.T) {
	assert.False(t, SetOf(MorningHalf).Has(FullDay))
	assert.False(t, SetOf(AfternoonHalf).Has(FullDay))
	assert.True(t, SetOf(MorningHalf, AfternoonHalf).Has(FullDay))
	assert.Equal(t, SetOf(FullDay), SetOf(MorningHalf, AfternoonHalf))

	assert.Equal(t, []SlotKind{MorningHalf, AfternoonHalf, FullDay}, SetOf(FullDay).Kinds())
	assert.Equal(t, []SlotKind{AfternoonHalf}, SetOf(AfternoonHalf).Kinds())
	assert.Equal(t, "{morning}", SetOf(MorningHalf).String())
}

func TestSlotSet_Free(t *testing.T) {
	var none SlotSet
	assert.Equal(t, Kinds(), none.Free())
	assert.Equal(t, []SlotKind{AfternoonHalf}, SetOf(MorningHalf).Free())
	assert.Empty(t, SetOf(FullDay).Free())
}

func TestSlotKind_Window(t *testing.T) {
	start, end := MorningHalf.Window()
	assert.Equal(t, civil.Time{Hour: 8}, start)
	assert.Equal(t, civil.Time{Hour: 12}, end)

	start, end = AfternoonHalf.Window()
	assert.Equal(t, civil.Time{Hour: 13}, start)
	assert.Equal(t, civil.Time{Hour: 17}, end)

	start, end = FullDay.Window()
	assert.Equal(t, civil.Time{Hour: 8}, start)
	assert.Equal(t, civil.Time{Hour: 17}, end)
}
