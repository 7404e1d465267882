package returns

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/savdo-pos/savdo-pos/internal/inventory"
	"github.com/savdo-pos/savdo-pos/internal/platform/httpx"
	"github.com/savdo-pos/savdo-pos/internal/shared"
)

// Handler exposes return processing endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers return routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
}

type returnItemRequest struct {
	SaleItemID int64 `json:"sale_item_id" validate:"required,gt=0"`
	Quantity   int64 `json:"quantity" validate:"required,gt=0"`
}

type createReturnRequest struct {
	SaleID int64               `json:"sale_id" validate:"required,gt=0"`
	Items  []returnItemRequest `json:"items" validate:"required,min=1,dive"`
	Reason string              `json:"reason" validate:"required,min=3,max=500"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createReturnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateInput{SaleID: req.SaleID, Reason: req.Reason, ActorID: shared.ActorFromContext(r.Context())}
	for _, item := range req.Items {
		input.Items = append(input.Items, ItemInput{SaleItemID: item.SaleItemID, Quantity: item.Quantity})
	}

	ret, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.returnID(w, r)
	if !ok {
		return
	}
	ret, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ret)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.returnID(w, r)
	if !ok {
		return
	}
	ret, err := h.service.Approve(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ret)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.returnID(w, r)
	if !ok {
		return
	}
	ret, err := h.service.Reject(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ret)
}

func (h *Handler) returnID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "return id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSaleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrOverReturn):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Over Return", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrEmptyItems), errors.Is(err, ErrSaleItemUnknown):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Request", err.Error())
	case errors.Is(err, inventory.ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		httpx.RespondError(w, h.logger, err)
	}
}
