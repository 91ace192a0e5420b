package models

import "strings"

// Booking is an appointment as served by the upstream backend.
type Booking struct {
	ID         string        `json:"id"`
	BookingID  string        `json:"bookingId"`
	CustomerID string        `json:"customerId"`
	ServiceID  string        `json:"serviceId"`
	StaffID    string        `json:"staffId"`
	Date       string        `json:"date"`
	Address    string        `json:"address"`
	Method     Method        `json:"method"`
	Status     BookingStatus `json:"status"`
}

// SplitDate separates the calendar day from an embedded "T" time part.
func SplitDate(raw string) (day, clock string) {
	day, clock, _ = strings.Cut(raw, "T")
	return day, clock
}

// BookingUpdate is the full object the upstream update endpoint requires.
type BookingUpdate struct {
	Date      string        `json:"date"`
	StaffID   string        `json:"staffId"`
	ServiceID string        `json:"serviceId"`
	Address   string        `json:"address"`
	Method    Method        `json:"method"`
	Status    BookingStatus `json:"status"`
}

// UpdateWithStatus copies the booking into an update payload carrying a new status.
func (b Booking) UpdateWithStatus(status BookingStatus) BookingUpdate {
	return BookingUpdate{
		Date:      b.Date,
		StaffID:   b.StaffID,
		ServiceID: b.ServiceID,
		Address:   b.Address,
		Method:    b.Method,
		Status:    status,
	}
}
