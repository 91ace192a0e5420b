package service

import (
	"slices"
	"strings"

	"dnakit/internal/models"

	"github.com/shopspring/decimal"
)

// compareIDsDesc orders ids newest first. Numeric ids compare by exact
// value and come before non-numeric ids; ties and non-numeric ids fall
// back to descending string order.
func compareIDsDesc(a, b string) int {
	da, aErr := decimal.NewFromString(a)
	db, bErr := decimal.NewFromString(b)

	switch {
	case aErr == nil && bErr == nil:
		if c := db.Cmp(da); c != 0 {
			return c
		}
		return strings.Compare(b, a)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(b, a)
	}
}

// SortRows orders rows by booking id, descending.
func SortRows(rows []models.Row) {
	slices.SortStableFunc(rows, func(a, b models.Row) int {
		return compareIDsDesc(a.BookingID, b.BookingID)
	})
}

func sortKits(kits []models.KitView) {
	slices.SortStableFunc(kits, func(a, b models.KitView) int {
		return compareIDsDesc(a.KitID, b.KitID)
	})
}
