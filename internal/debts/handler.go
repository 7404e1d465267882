package debts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/savdo-pos/savdo-pos/internal/platform/httpx"
	"github.com/savdo-pos/savdo-pos/internal/shared"
)

// Handler exposes debt collection endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers debt routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listOpen)
	r.Get("/{id}", h.get)
	r.Post("/{id}/payments", h.recordPayment)
	r.Post("/{id}/cancel", h.cancel)
}

type paymentRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Method string `json:"method" validate:"required,oneof=CASH CARD"`
	Note   string `json:"note" validate:"max=500"`
}

func (h *Handler) listOpen(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListOpen(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"debts": list})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.debtID(w, r)
	if !ok {
		return
	}
	debt, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, debt)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.debtID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	debt, err := h.service.RecordPayment(r.Context(), PaymentInput{
		DebtID:  id,
		Amount:  req.Amount,
		Method:  req.Method,
		Note:    req.Note,
		ActorID: shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, debt)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.debtID(w, r)
	if !ok {
		return
	}
	debt, err := h.service.Cancel(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, debt)
}

func (h *Handler) debtID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "debt id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadySettled):
		httpx.Problem(w, http.StatusConflict, "Already Settled", err.Error())
	case errors.Is(err, ErrOverPayment):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Over Payment", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidMethod):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Request", err.Error())
	default:
		httpx.RespondError(w, h.logger, err)
	}
}
