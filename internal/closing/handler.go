package closing

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jangbu-erp/jangbu-erp/internal/ledger"
	"github.com/jangbu-erp/jangbu-erp/internal/platform/httpx"
	"github.com/jangbu-erp/jangbu-erp/internal/shared"
)

// Handler manages closing endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers closing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.runClose)
	r.Get("/{counterparty}", h.listSnapshots)
	r.Get("/{counterparty}/{period}", h.getSnapshot)
}

type closeRequest struct {
	Period       string `json:"period" validate:"required"`
	Kind         string `json:"kind" validate:"required,oneof=receivable payable"`
	BizUnit      string `json:"biz_unit"`
	Counterparty string `json:"counterparty" validate:"required"`
	ActorID      int64  `json:"actor_id"`
}

type snapshotResponse struct {
	Period       string      `json:"period"`
	Kind         ledger.Kind `json:"kind"`
	BizUnit      string      `json:"biz_unit"`
	Counterparty string      `json:"counterparty"`
	Balance      int64       `json:"balance"`
	EntryCount   int64       `json:"entry_count"`
	TakenAt      string      `json:"taken_at"`
}

func toSnapshotResponse(s Snapshot) snapshotResponse {
	return snapshotResponse{
		Period:       s.Period.String(),
		Kind:         s.Kind,
		BizUnit:      s.BizUnit,
		Counterparty: s.Counterparty,
		Balance:      s.Balance,
		EntryCount:   s.EntryCount,
		TakenAt:      s.TakenAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func kindFromString(raw string) ledger.Kind {
	if strings.ToLower(raw) == "payable" {
		return ledger.KindPayable
	}
	return ledger.KindReceivable
}

func (h *Handler) runClose(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	snap, err := h.service.Close(r.Context(), CloseInput{
		Period:       req.Period,
		Kind:         kindFromString(req.Kind),
		BizUnit:      req.BizUnit,
		Counterparty: req.Counterparty,
		ActorID:      req.ActorID,
	})
	if err != nil {
		h.respondClosingError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSnapshotResponse(snap))
}

func (h *Handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.service.ListSnapshots(r.Context(), chi.URLParam(r, "counterparty"))
	if err != nil {
		h.respondClosingError(w, err)
		return
	}
	out := make([]snapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toSnapshotResponse(snap))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"snapshots": out})
}

func (h *Handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	kind := kindFromString(r.URL.Query().Get("kind"))
	if r.URL.Query().Get("kind") == "" {
		httpx.Problem(w, http.StatusBadRequest, "Missing Parameter", "kind query parameter required")
		return
	}
	scope := ledger.Scope{
		Kind:         kind,
		BizUnit:      r.URL.Query().Get("biz_unit"),
		Counterparty: chi.URLParam(r, "counterparty"),
	}
	snap, err := h.service.GetSnapshot(r.Context(), scope, chi.URLParam(r, "period"))
	if err != nil {
		h.respondClosingError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSnapshotResponse(snap))
}

func (h *Handler) respondClosingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAlreadyClosed):
		httpx.Problem(w, http.StatusConflict, "Already Closed", err.Error())
	case errors.Is(err, ErrSnapshotNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidPeriod):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", err.Error())
	case errors.Is(err, shared.ErrLockHeld):
		httpx.Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", err.Error())
	default:
		h.logger.Error("closing failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}
