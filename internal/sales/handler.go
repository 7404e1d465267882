package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/savdo-pos/savdo-pos/internal/catalog"
	"github.com/savdo-pos/savdo-pos/internal/debts"
	"github.com/savdo-pos/savdo-pos/internal/inventory"
	"github.com/savdo-pos/savdo-pos/internal/platform/httpx"
	"github.com/savdo-pos/savdo-pos/internal/shared"
)

// Handler exposes the sale lifecycle endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createDraft)
	r.Get("/{id}", h.get)
	r.Post("/{id}/complete", h.complete)
	r.Post("/{id}/cancel", h.cancel)
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateDraftInput{ActorID: shared.ActorFromContext(r.Context())}
	for _, item := range req.Items {
		input.Items = append(input.Items, DraftItemInput{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			CustomUnitPrice: item.CustomUnitPrice,
			DiscountAmount:  item.DiscountAmount,
		})
	}

	sale, err := h.service.CreateDraft(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	var req completeSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CompleteInput{SaleID: id, ActorID: shared.ActorFromContext(r.Context())}
	for _, t := range req.Tenders {
		input.Tenders = append(input.Tenders, Tender{Method: PaymentMethod(t.Method), Amount: t.Amount})
	}
	if req.Debtor != nil {
		input.Debtor = &Debtor{Name: req.Debtor.Name, Phone: req.Debtor.Phone}
	}

	sale, err := h.service.Complete(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	var req cancelSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Cancel(r.Context(), id, req.Reason, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) saleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, catalog.ErrNotFound), errors.Is(err, inventory.ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrUnbalancedPayment):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unbalanced Payment", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidDiscount), errors.Is(err, ErrUnknownMethod),
		errors.Is(err, ErrDebtorRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Request", err.Error())
	case errors.Is(err, debts.ErrDuplicateDebt):
		httpx.Problem(w, http.StatusConflict, "Duplicate Debt", err.Error())
	default:
		httpx.RespondError(w, h.logger, err)
	}
}
