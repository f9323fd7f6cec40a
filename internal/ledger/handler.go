package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jangbu-erp/jangbu-erp/internal/platform/httpx"
	"github.com/jangbu-erp/jangbu-erp/internal/shared"
)

// Handler exposes the ledger read surface.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{kind}/{counterparty}", h.listEntries)
	r.Get("/{kind}/{counterparty}/balance", h.getBalance)
	r.Get("/{kind}/{counterparty}/statement", h.getStatement)
}

type entryResponse struct {
	Kind         Kind   `json:"kind"`
	BizUnit      string `json:"biz_unit"`
	Counterparty string `json:"counterparty"`
	TxDate       string `json:"tx_date"`
	TxNumber     int64  `json:"tx_number"`
	TxTime       string `json:"tx_time"`
	Amount       int64  `json:"amount"`
	Balance      int64  `json:"balance"`
	Closed       bool   `json:"closed"`
}

func toEntryResponses(entries []Entry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			Kind:         e.Kind,
			BizUnit:      e.BizUnit,
			Counterparty: e.Counterparty,
			TxDate:       e.Date.Format("2006-01-02"),
			TxNumber:     e.Number,
			TxTime:       e.TxTime,
			Amount:       e.Amount,
			Balance:      e.Balance,
			Closed:       e.Closed,
		})
	}
	return out
}

// respondError separates caller mistakes from repository failures: an
// invalid scope is the client's fault, everything else is ours.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrInvalidScope) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Scope", err.Error())
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "ledger query failed")
}

func scopeFromRequest(r *http.Request) (Scope, error) {
	var kind Kind
	switch strings.ToLower(chi.URLParam(r, "kind")) {
	case "receivable":
		kind = KindReceivable
	case "payable":
		kind = KindPayable
	default:
		return Scope{}, errors.New("kind must be receivable or payable")
	}
	return Scope{
		Kind:         kind,
		BizUnit:      r.URL.Query().Get("biz_unit"),
		Counterparty: chi.URLParam(r, "counterparty"),
	}, nil
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Scope", err.Error())
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.service.List(r.Context(), scope, shared.Page{Limit: limit, Offset: offset})
	if err != nil {
		h.respondError(w, "list ledger entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": toEntryResponses(entries)})
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Scope", err.Error())
		return
	}
	balance, err := h.service.Balance(r.Context(), scope)
	if err != nil {
		h.respondError(w, "get ledger balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"counterparty": scope.Counterparty,
		"kind":         scope.Kind,
		"balance":      balance,
	})
}

func (h *Handler) getStatement(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Scope", err.Error())
		return
	}
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Range", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Range", "to must be YYYY-MM-DD")
		return
	}
	stmt, err := h.service.GetStatement(r.Context(), scope, from, to)
	if err != nil {
		h.respondError(w, "ledger statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"scope": map[string]any{
			"kind":         stmt.Scope.Kind,
			"biz_unit":     stmt.Scope.BizUnit,
			"counterparty": stmt.Scope.Counterparty,
		},
		"from":    stmt.From.Format("2006-01-02"),
		"to":      stmt.To.Format("2006-01-02"),
		"opening": stmt.Opening,
		"total":   stmt.Total,
		"closing": stmt.Closing,
		"entries": toEntryResponses(stmt.Entries),
	})
}
