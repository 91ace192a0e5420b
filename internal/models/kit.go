package models

// Kit is a sample-collection package, at most one per booking.
type Kit struct {
	KitID       string    `json:"kitId"`
	BookingID   string    `json:"bookingId"`
	CustomerID  string    `json:"customerId"`
	StaffID     string    `json:"staffId"`
	Description string    `json:"description"`
	ReceiveDate string    `json:"receivedate"`
	Address     string    `json:"address"`
	Status      KitStatus `json:"status"`
}

// KitView is a kit joined with display names for the staff table.
type KitView struct {
	Kit
	CustomerName string `json:"customerName"`
	StaffName    string `json:"staffName"`
}

// NewKit is the staff input for creating a kit. Status is decided by the
// editor, never by the caller.
type NewKit struct {
	BookingID   string `json:"bookingId"`
	StaffID     string `json:"staffId"`
	Description string `json:"description"`
	ReceiveDate string `json:"receivedate"`
	Address     string `json:"address"`
}
