package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"dnakit/internal/models"

	"github.com/shopspring/decimal"
)

// flexString accepts ids sent either as JSON strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", b)
	}
	*f = flexString(n.String())
	return nil
}

func firstOf(vals ...flexString) string {
	for _, v := range vals {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

// decodeList accepts a bare array or a {"$values": [...]} envelope.
func decodeList(data []byte, out any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformed)
	}
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil
	case '{':
		var env struct {
			Values json.RawMessage `json:"$values"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(env.Values) == 0 {
			return fmt.Errorf("%w: object without $values", ErrMalformed)
		}
		return decodeList(env.Values, out)
	default:
		return fmt.Errorf("%w: expected array or envelope", ErrMalformed)
	}
}

type wireBooking struct {
	ID         flexString `json:"id"`
	BookingID  flexString `json:"bookingId"`
	CustomerID flexString `json:"customerId"`
	ServiceID  flexString `json:"serviceId"`
	StaffID    flexString `json:"staffId"`
	Date       string     `json:"date"`
	Address    string     `json:"address"`
	Method     string     `json:"method"`
	Status     string     `json:"status"`
}

func (w wireBooking) toModel() (models.Booking, error) {
	status, err := models.ParseBookingStatus(strings.TrimSpace(w.Status))
	if err != nil {
		return models.Booking{}, err
	}
	method, err := models.ParseMethod(strings.TrimSpace(w.Method))
	if err != nil {
		return models.Booking{}, err
	}
	bookingID := firstOf(w.BookingID, w.ID)
	if bookingID == "" {
		return models.Booking{}, fmt.Errorf("booking without id")
	}
	return models.Booking{
		ID:         string(w.ID),
		BookingID:  bookingID,
		CustomerID: string(w.CustomerID),
		ServiceID:  string(w.ServiceID),
		StaffID:    string(w.StaffID),
		Date:       strings.TrimSpace(w.Date),
		Address:    w.Address,
		Method:     method,
		Status:     status,
	}, nil
}

// wireKit tolerates both "status" and "kitStatus". Field matching in
// encoding/json is case-insensitive, which covers kitId/kitID/KitId.
type wireKit struct {
	KitID       flexString `json:"kitId"`
	ID          flexString `json:"id"`
	BookingID   flexString `json:"bookingId"`
	CustomerID  flexString `json:"customerId"`
	StaffID     flexString `json:"staffId"`
	Description string     `json:"description"`
	ReceiveDate string     `json:"receivedate"`
	Address     string     `json:"address"`
	Status      string     `json:"status"`
	KitStatus   string     `json:"kitStatus"`
}

func (w wireKit) toModel() (models.Kit, error) {
	raw := strings.TrimSpace(w.Status)
	if raw == "" {
		raw = strings.TrimSpace(w.KitStatus)
	}
	status, err := models.ParseKitStatus(raw)
	if err != nil {
		return models.Kit{}, err
	}
	return models.Kit{
		KitID:       firstOf(w.KitID, w.ID),
		BookingID:   string(w.BookingID),
		CustomerID:  string(w.CustomerID),
		StaffID:     string(w.StaffID),
		Description: w.Description,
		ReceiveDate: w.ReceiveDate,
		Address:     w.Address,
		Status:      status,
	}, nil
}

type wireService struct {
	ID          flexString      `json:"id"`
	ServiceID   flexString      `json:"serviceId"`
	Name        string          `json:"name"`
	ServiceName string          `json:"serviceName"`
	Price       decimal.Decimal `json:"price"`
}

func (w wireService) toModel() models.Service {
	name := w.Name
	if name == "" {
		name = w.ServiceName
	}
	return models.Service{
		ID:    firstOf(w.ServiceID, w.ID),
		Name:  name,
		Price: w.Price,
	}
}

type wireUser struct {
	ID       flexString `json:"id"`
	UserID   flexString `json:"userId"`
	FullName string     `json:"fullName"`
	Username string     `json:"username"`
	Role     string     `json:"role"`
}

func (w wireUser) toModel() models.User {
	return models.User{
		ID:       firstOf(w.UserID, w.ID),
		FullName: w.FullName,
		Username: w.Username,
		Role:     w.Role,
	}
}

type kitCreateBody struct {
	BookingID   string           `json:"bookingId"`
	CustomerID  string           `json:"customerId"`
	StaffID     string           `json:"staffId"`
	Description string           `json:"description"`
	ReceiveDate string           `json:"receivedate"`
	Address     string           `json:"address"`
	Status      models.KitStatus `json:"status"`
}

type kitStatusBody struct {
	Status models.KitStatus `json:"status"`
}
