package service

import (
	"testing"

	"dnakit/internal/models"

	"github.com/stretchr/testify/assert"
)

var (
	allBookingStatuses = []models.BookingStatus{
		models.BookingPendingConfirmation, models.BookingConfirmed, models.BookingAwaitingSample,
		models.BookingAwaitingCheckIn, models.BookingCheckedIn, models.BookingInProgress,
		models.BookingCompleted, models.BookingCancelled,
	}
	allKitStatuses = []models.KitStatus{
		models.KitShipped, models.KitDelivering, models.KitInTransit, models.KitReceived,
		models.KitToWarehouse, models.KitAtWarehouse, models.KitSampled, models.KitSampling,
		models.KitAwaitingSample, models.KitNotReceived, models.KitRejected, models.KitSampleError,
		models.KitLost, models.KitCancelled, models.KitNone,
	}
	allMethods = []models.Method{models.MethodSelfCollect, models.MethodAtFacility}
)

// eachRow visits every combination of method, booking status and kit.
func eachRow(fn func(row models.Row)) {
	for _, m := range allMethods {
		for _, s := range allBookingStatuses {
			for _, k := range allKitStatuses {
				for _, kitID := range []string{"", "K1"} {
					if k == models.KitNone && kitID != "" {
						continue
					}
					fn(models.Row{BookingID: "1", Method: m, Status: s, KitStatus: k, KitID: kitID})
				}
			}
		}
	}
}

func TestEligibleCheckInVisibility(t *testing.T) {
	eachRow(func(row models.Row) {
		want := row.Method == models.MethodAtFacility && row.Status == models.BookingAwaitingCheckIn
		assert.Equal(t, want, models.Row{Actions: Eligible(row, "")}.Has(models.ActionCheckIn), "%+v", row)
	})
}

func TestEligibleReceiveAndShipExclusive(t *testing.T) {
	eachRow(func(row models.Row) {
		r := models.Row{Actions: Eligible(row, "")}
		assert.False(t, r.Has(models.ActionReceiveKit) && r.Has(models.ActionShipKit), "%+v", row)
	})
}

func TestEligibleCancelHiddenWhenCollected(t *testing.T) {
	eachRow(func(row models.Row) {
		r := models.Row{Actions: Eligible(row, "")}
		if row.KitStatus.Collected() {
			assert.False(t, r.Has(models.ActionCancel), "%+v", row)
		}
		if row.Status == models.BookingCancelled || row.Status == models.BookingCheckedIn {
			assert.False(t, r.Has(models.ActionCancel), "%+v", row)
		}
	})
}

func TestEligibleCompletedShowsOnlyResult(t *testing.T) {
	eachRow(func(row models.Row) {
		if row.Status != models.BookingCompleted {
			assert.False(t, models.Row{Actions: Eligible(row, "")}.Has(models.ActionViewResult))
			return
		}
		actions := Eligible(row, "/results/{bookingId}")
		if assert.Len(t, actions, 1) {
			assert.Equal(t, models.ActionViewResult, actions[0].Kind)
			assert.Equal(t, "Xem kết quả", actions[0].Label)
			assert.Equal(t, "/results/1", actions[0].Href)
		}
	})
}

func TestEligibleKitActions(t *testing.T) {
	tests := []struct {
		name string
		row  models.Row
		want []models.ActionKind
	}{
		{
			name: "delivering kit can be received",
			row:  models.Row{Method: models.MethodSelfCollect, Status: models.BookingAwaitingSample, KitID: "K5", KitStatus: models.KitDelivering},
			want: []models.ActionKind{models.ActionReceiveKit, models.ActionCancel},
		},
		{
			name: "received kit can be shipped and no longer cancelled",
			row:  models.Row{Method: models.MethodSelfCollect, Status: models.BookingAwaitingSample, KitID: "K5", KitStatus: models.KitReceived},
			want: []models.ActionKind{models.ActionShipKit},
		},
		{
			name: "kit without id offers nothing",
			row:  models.Row{Method: models.MethodSelfCollect, Status: models.BookingAwaitingSample, KitStatus: models.KitDelivering},
			want: []models.ActionKind{models.ActionCancel},
		},
		{
			name: "cancelled booking freezes the kit",
			row:  models.Row{Method: models.MethodSelfCollect, Status: models.BookingCancelled, KitID: "K5", KitStatus: models.KitDelivering},
			want: []models.ActionKind{},
		},
		{
			name: "at facility never gets kit actions",
			row:  models.Row{Method: models.MethodAtFacility, Status: models.BookingAwaitingCheckIn, KitID: "K5", KitStatus: models.KitDelivering},
			want: []models.ActionKind{models.ActionCheckIn, models.ActionCancel},
		},
		{
			name: "checked in booking has no actions",
			row:  models.Row{Method: models.MethodAtFacility, Status: models.BookingCheckedIn, KitStatus: models.KitNone},
			want: []models.ActionKind{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, actionKinds(Eligible(tt.row, "")))
		})
	}
}

func TestCancelActionAsksForConfirmation(t *testing.T) {
	actions := Eligible(models.Row{Method: models.MethodSelfCollect, Status: models.BookingConfirmed, KitStatus: models.KitNone}, "")
	assert.Equal(t, []models.Action{{Kind: models.ActionCancel, Label: "Hủy", Confirm: true}}, actions)
}

func TestResultURL(t *testing.T) {
	assert.Equal(t, "/results/a%2Fb", ResultURL("", "a/b"))
	assert.Equal(t, "https://x/r?id=7", ResultURL("https://x/r?id={bookingId}", "7"))
}
