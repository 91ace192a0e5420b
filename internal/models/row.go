package models

import "github.com/shopspring/decimal"

// ActionKind names a user action on a row.
type ActionKind string

const (
	ActionCheckIn    ActionKind = "check_in"
	ActionReceiveKit ActionKind = "receive_kit"
	ActionShipKit    ActionKind = "ship_kit"
	ActionCancel     ActionKind = "cancel"
	ActionViewResult ActionKind = "view_result"

	// Staff edits, recorded in the journal only.
	ActionCreateKit    ActionKind = "create_kit"
	ActionSetKitStatus ActionKind = "set_kit_status"
)

// Label is the button text shown for the action.
func (k ActionKind) Label() string {
	switch k {
	case ActionCheckIn:
		return "Check-in"
	case ActionReceiveKit:
		return "Đã nhận Kit"
	case ActionShipKit:
		return "Gửi tới kho"
	case ActionCancel:
		return "Hủy"
	case ActionViewResult:
		return "Xem kết quả"
	default:
		return string(k)
	}
}

// Action is one permitted action on a row.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Label   string     `json:"label"`
	Href    string     `json:"href,omitempty"`
	Confirm bool       `json:"confirm,omitempty"`
}

// Row is the reconciled view of one booking.
type Row struct {
	ID           string          `json:"id"`
	BookingID    string          `json:"bookingId"`
	CustomerID   string          `json:"customerId"`
	Date         string          `json:"date"`
	Day          string          `json:"day"`
	Time         string          `json:"time"`
	Address      string          `json:"address"`
	Method       Method          `json:"method"`
	Status       BookingStatus   `json:"status"`
	ServiceID    string          `json:"serviceId"`
	ServiceName  string          `json:"serviceName"`
	ServicePrice decimal.Decimal `json:"servicePrice"`
	StaffID      string          `json:"staffId"`
	StaffName    string          `json:"staffName"`
	KitID        string          `json:"kitId,omitempty"`
	KitStatus    KitStatus       `json:"kitStatus"`
	Actions      []Action        `json:"actions"`
}

// Booking rebuilds the upstream booking the row was derived from.
func (r Row) Booking() Booking {
	return Booking{
		ID:         r.ID,
		BookingID:  r.BookingID,
		CustomerID: r.CustomerID,
		ServiceID:  r.ServiceID,
		StaffID:    r.StaffID,
		Date:       r.Date,
		Address:    r.Address,
		Method:     r.Method,
		Status:     r.Status,
	}
}

// Has reports whether the action is currently offered.
func (r Row) Has(kind ActionKind) bool {
	for _, a := range r.Actions {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

// ActionResult reports how an action ended and the row as it now stands.
type ActionResult struct {
	Action  ActionKind `json:"action"`
	Outcome string     `json:"outcome"`
	Row     Row        `json:"row"`
}
