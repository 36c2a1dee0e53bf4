package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/kestrel/internal/analysis"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/screening"
	"github.com/opensource-finance/kestrel/internal/validation"
)

// maxBodyBytes caps request bodies. A full batch of 500 transactions fits
// comfortably.
const maxBodyBytes = 4 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	pipeline *screening.Pipeline
	engine   *rules.Engine
	analysis *analysis.Service
	version  string
	now      func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies, version string) *Handler {
	return &Handler{
		repo:     deps.Repo,
		cache:    deps.Cache,
		bus:      deps.Bus,
		pipeline: deps.Pipeline,
		engine:   deps.Engine,
		analysis: deps.Analysis,
		version:  version,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ChargebackImportRequest is the request body for POST /api/v1/chargebacks.
type ChargebackImportRequest struct {
	Chargebacks []domain.ChargebackRequest `json:"chargebacks" validate:"required,min=1,dive"`
}

// ChargebackImportResponse reports how many records were new.
type ChargebackImportResponse struct {
	Received int `json:"received"`
	Inserted int `json:"inserted"`
}

// RuleUpdateRequest is the request body for PATCH /api/v1/rules/{id}.
type RuleUpdateRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// ScoreTransaction handles POST /api/v1/transactions/score. The transaction
// is appended to history.
func (h *Handler) ScoreTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}

	result, err := h.pipeline.Score(r.Context(), tx)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// PreviewTransaction handles POST /api/v1/transactions/preview. Nothing is
// written or published.
func (h *Handler) PreviewTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}

	result, err := h.pipeline.Preview(r.Context(), tx)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// BatchScore handles POST /api/v1/transactions/batch-score.
func (h *Handler) BatchScore(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, err)
		return
	}

	now := h.now()
	txs := make([]*domain.Transaction, len(req.Transactions))
	for i := range req.Transactions {
		txs[i] = req.Transactions[i].ToTransaction(now)
	}

	result, err := h.pipeline.BatchScore(r.Context(), txs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// AnalyzeChargebacks handles GET /api/v1/chargebacks/analysis. The optional
// start_date and end_date bounds are inclusive calendar dates.
func (h *Handler) AnalyzeChargebacks(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.analysis.Analyze(r.Context(), rng)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ImportChargebacks handles POST /api/v1/chargebacks. Records whose id is
// already stored are skipped.
func (h *Handler) ImportChargebacks(w http.ResponseWriter, r *http.Request) {
	var req ChargebackImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, err)
		return
	}

	records := make([]*domain.ChargebackRecord, 0, len(req.Chargebacks))
	for i := range req.Chargebacks {
		rec, err := req.Chargebacks[i].ToRecord()
		if err != nil {
			writeError(w, err)
			return
		}
		records = append(records, rec)
	}

	inserted, err := h.analysis.Import(r.Context(), records)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ChargebackImportResponse{
		Received: len(records),
		Inserted: inserted,
	})
}

// ListRules returns every rule in evaluation order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": list,
		"count": len(list),
	})
}

// CreateRule validates and stores a new rule. It takes effect on the next
// score.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req domain.RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.engine.Create(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule toggles a rule's activation.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RuleUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, err)
		return
	}

	rule, err := h.engine.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// Health returns server health with a check per dependency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	checks := make(map[string]string)

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}

	if h.repo != nil {
		check("store", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("bus", func() error { return h.bus.Ping(ctx) })
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready reports whether the store can serve requests.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func (h *Handler) decodeTransaction(w http.ResponseWriter, r *http.Request) (*domain.Transaction, bool) {
	var req domain.TransactionRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, err)
		return nil, false
	}
	return req.ToTransaction(h.now()), true
}

// decodeJSON reads the body into v. On failure it writes a 400 and
// returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return false
	}
	return true
}

func parseDateRange(r *http.Request) (domain.DateRange, error) {
	var rng domain.DateRange
	verr := domain.NewValidationError()

	parse := func(param string) *time.Time {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			return nil
		}
		t, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			verr.AddError(param, "must be a date in YYYY-MM-DD format")
			return nil
		}
		return &t
	}

	rng.Start = parse("start_date")
	rng.End = parse("end_date")

	if rng.Start != nil && rng.End != nil && rng.End.Before(*rng.Start) {
		verr.AddError("end_date", "must not be before start_date")
	}
	if verr.HasErrors() {
		return domain.DateRange{}, verr
	}
	return rng, nil
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrConfiguration):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrHistoryUnavailable):
		slog.Error("transaction history unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": domain.ErrHistoryUnavailable.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
