package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"dnakit/internal/export"
	"dnakit/internal/models"
	"dnakit/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		if err := s.svc.Ready(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "journal unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	refresh := true
	if raw := r.URL.Query().Get("cached"); raw != "" {
		cached, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "cached must be a boolean")
			return
		}
		refresh = !cached
	}

	rows, err := s.svc.Bookings.Rows(r.Context(), userID(r), refresh)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *HTTPServer) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Bookings.CheckIn(r.Context(), userID(r), chi.URLParam(r, "bookingId"))
	writeAction(w, r, res, err)
}

func (s *HTTPServer) handleReceiveKit(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Bookings.ReceiveKit(r.Context(), userID(r), chi.URLParam(r, "bookingId"))
	writeAction(w, r, res, err)
}

func (s *HTTPServer) handleShipKit(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Bookings.ShipKit(r.Context(), userID(r), chi.URLParam(r, "bookingId"))
	writeAction(w, r, res, err)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Confirm bool `json:"confirm"`
	}
	if err := decodeOptional(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	res, err := s.svc.Bookings.Cancel(r.Context(), userID(r), chi.URLParam(r, "bookingId"), body.Confirm)
	writeAction(w, r, res, err)
}

func (s *HTTPServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Bookings.History(r.Context(), userID(r), chi.URLParam(r, "bookingId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *HTTPServer) handleListKits(w http.ResponseWriter, r *http.Request) {
	kits, err := s.svc.Kits.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if kits == nil {
		kits = []models.KitView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"kits": kits})
}

func (s *HTTPServer) handleCreateKit(w http.ResponseWriter, r *http.Request) {
	var req models.NewKit
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "bookingId is required")
		return
	}

	kit, err := s.svc.Kits.Create(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, kit)
}

func (s *HTTPServer) handleSetKitStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	kitID := chi.URLParam(r, "kitId")
	status := models.KitStatus(strings.TrimSpace(body.Status))
	if err := s.svc.Kits.SetStatus(r.Context(), userID(r), kitID, status); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"kitId": kitID, "status": string(status)})
}

func (s *HTTPServer) handleExportKits(w http.ResponseWriter, r *http.Request) {
	kits, err := s.svc.Kits.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	now := s.now()
	var buf bytes.Buffer
	if err := export.WriteKits(&buf, kits, now); err != nil {
		writeServiceError(w, r, fmt.Errorf("export kits: %w", err))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="kits-%s.xlsx"`, now.Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func writeAction(w http.ResponseWriter, r *http.Request, res *models.ActionResult, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeOptional accepts an empty body as the zero value.
func decodeOptional(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func userID(r *http.Request) string {
	if p := session.FromContext(r.Context()); p != nil {
		return p.UserID
	}
	return ""
}
