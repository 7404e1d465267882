package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/savdo-pos/savdo-pos/internal/platform/httpx"
)

// Handler exposes catalog administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Post("/categories", h.createCategory)
}

type createProductRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	SKU           string `json:"sku" validate:"required,max=64"`
	CategoryID    int64  `json:"category_id" validate:"required,gt=0"`
	SalePrice     int64  `json:"sale_price" validate:"gte=0"`
	PurchasePrice int64  `json:"purchase_price" validate:"gte=0"`
	InitialStock  int64  `json:"initial_stock" validate:"gte=0"`
	Unit          string `json:"unit" validate:"required,max=20"`
}

type updateProductRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,max=200"`
	CategoryID    *int64  `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	SalePrice     *int64  `json:"sale_price,omitempty" validate:"omitempty,gte=0"`
	PurchasePrice *int64  `json:"purchase_price,omitempty" validate:"omitempty,gte=0"`
	Unit          *string `json:"unit,omitempty" validate:"omitempty,max=20"`
	Active        *bool   `json:"active,omitempty"`
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.CreateProduct(r.Context(), CreateProductInput{
		Name:          req.Name,
		SKU:           req.SKU,
		CategoryID:    req.CategoryID,
		SalePrice:     req.SalePrice,
		PurchasePrice: req.PurchasePrice,
		InitialStock:  req.InitialStock,
		Unit:          req.Unit,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return
	}
	var req updateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), id, UpdateProductInput{
		Name:          req.Name,
		CategoryID:    req.CategoryID,
		SalePrice:     req.SalePrice,
		PurchasePrice: req.PurchasePrice,
		Unit:          req.Unit,
		Active:        req.Active,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.CreateCategory(r.Context(), req.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateSKU), errors.Is(err, ErrDuplicateName):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidPrice):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Price", err.Error())
	default:
		httpx.RespondError(w, h.logger, err)
	}
}
