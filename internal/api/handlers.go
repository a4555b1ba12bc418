package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"armada/internal/domain"
	"armada/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

const (
	defaultLedgerLimit = 100
	maxBodyBytes       = 1 << 16
)

type confirmRequest struct {
	Note string `json:"note"`
}

type finishRequest struct {
	ActualReturnDate string `json:"actual_return_date"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type backdateRequest struct {
	ActualReturnDate string `json:"actual_return_date"`
	Note             string `json:"note"`
}

type retryRequest struct {
	Step string `json:"step"`
}

type adjustmentRequest struct {
	Amount    int64  `json:"amount"`
	Note      string `json:"note"`
	BookingID int64  `json:"booking_id"`
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	b, err := s.deps.Settlement.GetBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, zerolog.Ctx(r.Context()), err, nil)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	entries, err := s.deps.Settlement.GetAuditTrail(r.Context(), id)
	if err != nil {
		writeServiceError(w, zerolog.Ctx(r.Context()), err, nil)
		return
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking_id": id, "entries": entries})
}

func (s *HTTPServer) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	limit := defaultLedgerLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx := r.Context()
	account, err := s.deps.Ledger.GetAccount(ctx, id)
	if err != nil {
		writeServiceError(w, zerolog.Ctx(ctx), err, nil)
		return
	}
	entries, err := s.deps.Ledger.GetLedger(ctx, id, limit)
	if err != nil {
		writeServiceError(w, zerolog.Ctx(ctx), err, nil)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account, "entries": entries})
}

func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	id, actor, ok := s.mutation(w, r, &req)
	if !ok {
		return
	}
	b, err := s.deps.Settlement.Confirm(r.Context(), actor, id, req.Note)
	s.respondBooking(w, r, b, err)
}

func (s *HTTPServer) handleFinish(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	id, actor, ok := s.mutation(w, r, &req)
	if !ok {
		return
	}

	var returned *time.Time
	if strings.TrimSpace(req.ActualReturnDate) != "" {
		d, err := s.parseDate("actual_return_date", req.ActualReturnDate)
		if err != nil {
			writeServiceError(w, zerolog.Ctx(r.Context()), err, nil)
			return
		}
		returned = &d
	}

	b, err := s.deps.Settlement.Finish(r.Context(), actor, id, returned)
	s.respondBooking(w, r, b, err)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	id, actor, ok := s.mutation(w, r, &req)
	if !ok {
		return
	}
	b, err := s.deps.Settlement.Cancel(r.Context(), actor, id, req.Reason)
	s.respondBooking(w, r, b, err)
}

func (s *HTTPServer) handleBackdate(w http.ResponseWriter, r *http.Request) {
	var req backdateRequest
	id, actor, ok := s.mutation(w, r, &req)
	if !ok {
		return
	}
	d, err := s.parseDate("actual_return_date", req.ActualReturnDate)
	if err != nil {
		writeServiceError(w, zerolog.Ctx(r.Context()), err, nil)
		return
	}
	b, err := s.deps.Settlement.EditBackdate(r.Context(), actor, id, d, req.Note)
	s.respondBooking(w, r, b, err)
}

func (s *HTTPServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	id, actor, ok := s.mutation(w, r, &req)
	if !ok {
		return
	}
	b, err := s.deps.Settlement.RetryStep(r.Context(), actor, id, strings.TrimSpace(req.Step))
	s.respondBooking(w, r, b, err)
}

func (s *HTTPServer) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	accountID, actor, ok := s.mutation(w, r, &req)
	if !ok {
		return
	}
	entry, err := s.deps.Ledger.ManualAdjust(r.Context(), actor, accountID, req.Amount, req.BookingID, req.Note)
	if err != nil {
		writeServiceError(w, zerolog.Ctx(r.Context()), err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// mutation reads the path id, the actor and the JSON body of a POST.
// On failure it has already written the response.
func (s *HTTPServer) mutation(w http.ResponseWriter, r *http.Request, body any) (int64, models.ActorContext, bool) {
	id, ok := s.pathID(w, r)
	if !ok {
		return 0, models.ActorContext{}, false
	}
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor")
		return 0, models.ActorContext{}, false
	}
	if err := decodeBody(w, r, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, models.ActorContext{}, false
	}
	return id, actor, true
}

func (s *HTTPServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseDate reads a calendar date in the settlement time zone.
func (s *HTTPServer) parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, domain.ValidationError{Field: field, Msg: "is required"}
	}
	d, err := time.ParseInLocation(dateLayout, raw, s.deps.Location)
	if err != nil {
		return time.Time{}, domain.ValidationError{Field: field, Msg: "invalid date format; expected YYYY-MM-DD", Err: err}
	}
	return d, nil
}

func (s *HTTPServer) respondBooking(w http.ResponseWriter, r *http.Request, b *models.Booking, err error) {
	if err != nil {
		writeServiceError(w, zerolog.Ctx(r.Context()), err, b)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// decodeBody decodes a JSON body. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.New("invalid JSON body")
	}
	return nil
}
