package availability

import "cloud.google.com/go/civil"

// Appointment is the resolver view of an active booking. Callers drop
// cancelled and expired appointments before building the snapshot.
type Appointment struct {
	Date civil.Date `json:"date"`
	Type SlotKind   `json:"appointmentType"`
}

// OffDay is the resolver view of an admin off-day rule.
type OffDay struct {
	Date           civil.Date  `json:"date"`
	IsRecurring    bool        `json:"isRecurring"`
	RecurringUntil *civil.Date `json:"recurringUntil,omitempty"`
	DisabledSlots  []SlotKind  `json:"disabledSlots"`
	Reason         string      `json:"reason,omitempty"`
}

type DateAvailability struct {
	Date           civil.Date `json:"date"`
	AvailableSlots []SlotKind `json:"availableSlots"`
}
