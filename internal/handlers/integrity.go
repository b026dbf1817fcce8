package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"donorcrm/internal/integrity"
	"donorcrm/internal/middleware"
	"donorcrm/internal/report"
	"donorcrm/internal/services"
	"donorcrm/internal/store"
	"donorcrm/internal/validator"
	"donorcrm/internal/websocket"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) LatestReport(w http.ResponseWriter, r *http.Request) {
	rep, path, err := report.Latest(h.cfg.ReportDir)
	if err != nil {
		if errors.Is(err, report.ErrNoReports) {
			respondError(w, http.StatusNotFound, "no reports yet")
			return
		}
		h.log.WithError(err).Error("unable to read latest report")
		respondError(w, http.StatusInternalServerError, "unable to read report")
		return
	}
	w.Header().Set("X-Report-File", path)
	respondJSON(w, http.StatusOK, rep)
}

type checkRequest struct {
	Scope string `json:"scope"`
	Fix   *bool  `json:"fix"`
}

type checkResponse struct {
	RunID             string               `json:"run_id"`
	Report            string               `json:"report"`
	Summary           integrity.Summary    `json:"summary"`
	Fixes             *integrity.FixResult `json:"fixes,omitempty"`
	Remaining         *integrity.Summary   `json:"remaining,omitempty"`
	CriticalRemaining int                  `json:"critical_remaining"`
}

// RunCheck runs an audit synchronously. Fixes are applied unless the body
// sets fix to false.
func (h *Handler) RunCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	scope, ok := integrity.ParseScope(req.Scope)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid scope")
		return
	}
	fix := req.Fix == nil || *req.Fix

	out, err := h.service.Check(r.Context(), services.CheckOptions{Scope: scope, Fix: fix})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRunInProgress):
			respondError(w, http.StatusConflict, "integrity run already in progress")
		case errors.Is(err, services.ErrDatabaseDown):
			respondError(w, http.StatusServiceUnavailable, "database unreachable")
		case errors.Is(err, store.ErrMissingTables):
			respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "integrity run failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, checkResponse{
		RunID:             out.RunID,
		Report:            out.ReportPath,
		Summary:           out.Report.Summary,
		Fixes:             out.Report.Fixes,
		Remaining:         out.Report.Remaining,
		CriticalRemaining: out.CriticalRemaining(),
	})
}

type rateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Rate string `json:"rate"`
	Date string `json:"date"`
}

func (h *Handler) AddRate(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := middleware.OperatorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	row, err := h.service.AddRate(r.Context(), operatorID, req.From, req.To, req.Rate, req.Date)
	if err != nil {
		switch {
		case errors.Is(err, validator.ErrInvalidCurrency),
			errors.Is(err, validator.ErrSameCurrency),
			errors.Is(err, validator.ErrInvalidRate),
			errors.Is(err, validator.ErrInvalidDate),
			errors.Is(err, validator.ErrFutureDate):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.WithError(err).Error("unable to store exchange rate")
			respondError(w, http.StatusInternalServerError, "unable to store rate")
		}
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"id":     row.ID,
		"from":   row.BaseCurrency,
		"to":     row.TargetCurrency,
		"rate":   row.Rate.String(),
		"date":   row.Date.Format("2006-01-02"),
		"source": row.Source,
	})
}

// ListCorrections returns the audit trail of applied fixes, newest first.
func (h *Handler) ListCorrections(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.ListByAction(r.Context(), store.AuditActionIntegrityFix, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list corrections")
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) WSIntegrity(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := middleware.OperatorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	websocket.ServeWS(w, r, h.hub, operatorID, websocket.AllowOrigins(h.allowedOrigins()))
}
