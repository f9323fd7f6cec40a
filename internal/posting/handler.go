package posting

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jangbu-erp/jangbu-erp/internal/ledger"
	"github.com/jangbu-erp/jangbu-erp/internal/platform/httpx"
)

// Handler manages posting endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/postings", h.postTransaction)
	r.Post("/postings/void", h.voidTransaction)
	r.Get("/vouchers", h.getVoucherByReference)
	r.Get("/vouchers/{date}/{number}", h.getVoucherByNumber)
}

type postRequest struct {
	BizUnit      string `json:"biz_unit" validate:"required"`
	Category     string `json:"category"`
	Detail       string `json:"detail"`
	TxDate       string `json:"tx_date" validate:"required,datetime=2006-01-02"`
	TxNumber     int64  `json:"tx_number" validate:"required,gt=0"`
	TxTime       string `json:"tx_time" validate:"required"`
	Direction    string `json:"direction" validate:"required,oneof=inbound outbound"`
	Qty          int64  `json:"qty" validate:"gte=0"`
	UnitPrice    int64  `json:"unit_price" validate:"gte=0"`
	VATAmount    int64  `json:"vat_amount"`
	Counterparty string `json:"counterparty" validate:"required"`
	Memo         string `json:"memo"`
	Active       bool   `json:"active"`
	ActorID      int64  `json:"actor_id"`
}

type voidRequest struct {
	Direction string `json:"direction" validate:"required,oneof=inbound outbound"`
	TxDate    string `json:"tx_date" validate:"required,datetime=2006-01-02"`
	TxNumber  int64  `json:"tx_number" validate:"required,gt=0"`
	Reason    string `json:"reason"`
	ActorID   int64  `json:"actor_id"`
}

type voucherResponse struct {
	Number       int64          `json:"number"`
	Date         string         `json:"date"`
	Reference    string         `json:"reference"`
	Direction    Direction      `json:"direction"`
	BizUnit      string         `json:"biz_unit"`
	Counterparty string         `json:"counterparty"`
	Memo         string         `json:"memo,omitempty"`
	Lines        []lineResponse `json:"lines"`
}

type lineResponse struct {
	Account string `json:"account"`
	Debit   int64  `json:"debit"`
	Credit  int64  `json:"credit"`
}

func toVoucherResponse(v Voucher) voucherResponse {
	out := voucherResponse{
		Number:       v.Number,
		Date:         v.Date.Format("2006-01-02"),
		Reference:    v.Reference,
		Direction:    v.Direction,
		BizUnit:      v.BizUnit,
		Counterparty: v.Counterparty,
		Memo:         v.Memo,
		Lines:        make([]lineResponse, 0, len(v.Lines)),
	}
	for _, line := range v.Lines {
		out.Lines = append(out.Lines, lineResponse{Account: line.Account, Debit: line.Debit, Credit: line.Credit})
	}
	return out
}

func parseDirection(raw string) Direction {
	if raw == "inbound" {
		return DirectionInbound
	}
	return DirectionOutbound
}

func (h *Handler) postTransaction(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.TxDate)
	txn := InventoryTransaction{
		BizUnit:      req.BizUnit,
		Category:     req.Category,
		Detail:       req.Detail,
		Date:         date,
		Number:       req.TxNumber,
		Time:         req.TxTime,
		Direction:    parseDirection(req.Direction),
		Qty:          req.Qty,
		UnitPrice:    req.UnitPrice,
		VATAmount:    req.VATAmount,
		Counterparty: req.Counterparty,
		Memo:         req.Memo,
		Active:       req.Active,
	}
	voucher, err := h.service.Post(r.Context(), txn, req.ActorID)
	if err != nil {
		h.respondPostingError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toVoucherResponse(voucher))
}

func (h *Handler) voidTransaction(w http.ResponseWriter, r *http.Request) {
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.TxDate)
	err := h.service.Void(r.Context(), VoidInput{
		Direction: parseDirection(req.Direction),
		Date:      date,
		Number:    req.TxNumber,
		ActorID:   req.ActorID,
		Reason:    req.Reason,
	})
	if err != nil {
		h.respondPostingError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getVoucherByReference(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		httpx.Problem(w, http.StatusBadRequest, "Missing Parameter", "ref query parameter required")
		return
	}
	if _, err := ParseReference(ref); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Reference", err.Error())
		return
	}
	voucher, err := h.service.GetVoucherByReference(r.Context(), ref)
	if err != nil {
		h.respondPostingError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVoucherResponse(voucher))
}

func (h *Handler) getVoucherByNumber(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
		return
	}
	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 64)
	if err != nil || number <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Number", "number must be a positive integer")
		return
	}
	voucher, err := h.service.GetVoucherByNumber(r.Context(), date, number)
	if err != nil {
		h.respondPostingError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVoucherResponse(voucher))
}

func (h *Handler) respondPostingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInactiveTransaction),
		errors.Is(err, ErrMissingCounterparty),
		errors.Is(err, ErrNegativeAmount),
		errors.Is(err, ErrUnknownDirection):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, ErrVoucherNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrClosedPeriod):
		httpx.Problem(w, http.StatusConflict, "Period Closed", err.Error())
	case errors.Is(err, ErrTransientConflict):
		httpx.Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", err.Error())
	case errors.Is(err, ErrUnbalancedVoucher):
		h.logger.Error("posting integrity fault", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Posting Fault", err.Error())
	default:
		h.logger.Error("posting failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}
