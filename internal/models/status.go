package models

import "fmt"

// BookingStatus is the lifecycle state of an appointment.
type BookingStatus string

const (
	BookingPendingConfirmation BookingStatus = "Chờ xác nhận"
	BookingConfirmed           BookingStatus = "Đã xác nhận"
	BookingAwaitingSample      BookingStatus = "Đang chờ mẫu"
	BookingAwaitingCheckIn     BookingStatus = "Đang chờ check-in"
	BookingCheckedIn           BookingStatus = "Đã check-in"
	BookingInProgress          BookingStatus = "Đang thực hiện"
	BookingCompleted           BookingStatus = "Hoàn thành"
	BookingCancelled           BookingStatus = "Hủy"
)

// ParseBookingStatus rejects values outside the known set.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case BookingPendingConfirmation, BookingConfirmed, BookingAwaitingSample, BookingAwaitingCheckIn,
		BookingCheckedIn, BookingInProgress, BookingCompleted, BookingCancelled:
		return BookingStatus(s), nil
	default:
		return "", fmt.Errorf("unknown booking status: %q", s)
	}
}

// Terminal reports whether no customer action can move the booking further.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

// KitStatus is the lifecycle state of a sample kit.
type KitStatus string

const (
	KitShipped        KitStatus = "Đã vận chuyển"
	KitDelivering     KitStatus = "Đang giao"
	KitInTransit      KitStatus = "Đang vận chuyển"
	KitReceived       KitStatus = "Đã nhận"
	KitToWarehouse    KitStatus = "Đang tới kho"
	KitAtWarehouse    KitStatus = "Đã tới kho"
	KitSampled        KitStatus = "Đã lấy mẫu"
	KitSampling       KitStatus = "Đang lấy mẫu"
	KitAwaitingSample KitStatus = "Đang chờ mẫu"
	KitNotReceived    KitStatus = "Chưa nhận"
	KitRejected       KitStatus = "Bị từ chối"
	KitSampleError    KitStatus = "Lỗi mẫu"
	KitLost           KitStatus = "Thất lạc"
	KitCancelled      KitStatus = "Hủy"
	KitNone           KitStatus = Placeholder
)

// Placeholder is shown wherever a related entity could not be resolved.
const Placeholder = "---"

// ParseKitStatus rejects values outside the known set. KitNone is not
// accepted here: it is only ever assigned by the reconciler.
func ParseKitStatus(s string) (KitStatus, error) {
	switch KitStatus(s) {
	case KitShipped, KitDelivering, KitInTransit, KitReceived, KitToWarehouse, KitAtWarehouse,
		KitSampled, KitSampling, KitAwaitingSample, KitNotReceived, KitRejected, KitSampleError,
		KitLost, KitCancelled:
		return KitStatus(s), nil
	default:
		return "", fmt.Errorf("unknown kit status: %q", s)
	}
}

// Collected reports whether the sample has left the customer's hands,
// after which a booking can no longer be cancelled.
func (s KitStatus) Collected() bool {
	switch s {
	case KitReceived, KitToWarehouse, KitAtWarehouse, KitSampled, KitShipped:
		return true
	default:
		return false
	}
}

// StaffSettableKitStatuses are the values the kit management editor offers.
var StaffSettableKitStatuses = []KitStatus{
	KitShipped,
	KitDelivering,
	KitSampled,
	KitAtWarehouse,
	KitAwaitingSample,
}

// StaffCanSet reports whether staff may assign s directly.
func StaffCanSet(s KitStatus) bool {
	for _, allowed := range StaffSettableKitStatuses {
		if allowed == s {
			return true
		}
	}
	return false
}

// Method is how the sample is collected.
type Method string

const (
	MethodSelfCollect Method = "Tự thu mẫu"
	MethodAtFacility  Method = "Tại cơ sở y tế"
)

func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodSelfCollect, MethodAtFacility:
		return Method(s), nil
	default:
		return "", fmt.Errorf("unknown collection method: %q", s)
	}
}

// InitialKitStatus is the status a freshly created kit is forced to.
func (m Method) InitialKitStatus() KitStatus {
	if m == MethodAtFacility {
		return KitSampling
	}
	return KitDelivering
}

var bookingTransitions = map[BookingStatus]map[BookingStatus]bool{
	BookingPendingConfirmation: {BookingCancelled: true},
	BookingConfirmed:           {BookingCancelled: true},
	BookingAwaitingSample:      {BookingCancelled: true},
	BookingAwaitingCheckIn:     {BookingCheckedIn: true, BookingCancelled: true},
	BookingInProgress:          {BookingCancelled: true},
	BookingCheckedIn:           {},
	BookingCompleted:           {},
	BookingCancelled:           {},
}

// CanTransitionBooking reports whether a customer action may move a
// booking from one status to another.
func CanTransitionBooking(from, to BookingStatus) bool {
	m, ok := bookingTransitions[from]
	if !ok {
		return false
	}
	return m[to]
}

var kitTransitions = map[KitStatus]map[KitStatus]bool{
	KitDelivering: {KitReceived: true},
	KitReceived:   {KitToWarehouse: true},
}

// CanTransitionKit reports whether a customer action may move a kit from
// one status to another. Staff edits bypass this table.
func CanTransitionKit(from, to KitStatus) bool {
	m, ok := kitTransitions[from]
	if !ok {
		return false
	}
	return m[to]
}
