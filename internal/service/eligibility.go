package service

import (
	"net/url"
	"strings"

	"dnakit/internal/models"
)

// Eligible derives the actions offered for a row from its method, booking
// status and kit. The result depends on nothing else.
func Eligible(row models.Row, resultURLTemplate string) []models.Action {
	if row.Status == models.BookingCompleted {
		return []models.Action{{
			Kind:  models.ActionViewResult,
			Label: models.ActionViewResult.Label(),
			Href:  ResultURL(resultURLTemplate, row.BookingID),
		}}
	}

	actions := make([]models.Action, 0, 2)
	add := func(kind models.ActionKind, confirm bool) {
		actions = append(actions, models.Action{Kind: kind, Label: kind.Label(), Confirm: confirm})
	}

	if row.Method == models.MethodAtFacility && row.Status == models.BookingAwaitingCheckIn {
		add(models.ActionCheckIn, false)
	}

	if kitActionable(row) {
		switch row.KitStatus {
		case models.KitDelivering:
			add(models.ActionReceiveKit, false)
		case models.KitReceived:
			add(models.ActionShipKit, false)
		}
	}

	if !row.KitStatus.Collected() && !row.Status.Terminal() && row.Status != models.BookingCheckedIn {
		add(models.ActionCancel, true)
	}

	return actions
}

// kitActionable reports whether the customer may move the kit along.
func kitActionable(row models.Row) bool {
	return row.Method == models.MethodSelfCollect &&
		row.KitID != "" &&
		row.KitStatus != models.KitNone &&
		row.Status != models.BookingCancelled &&
		row.Status != models.BookingCheckedIn
}

func allowed(row models.Row, kind models.ActionKind) bool {
	for _, a := range Eligible(row, "") {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

// ResultURL fills {bookingId} in the configured template.
func ResultURL(template, bookingID string) string {
	if template == "" {
		template = models.DefaultResultURLTemplate
	}
	return strings.ReplaceAll(template, "{bookingId}", url.PathEscape(bookingID))
}
