package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-stock/internal/platform/httpx"
)

// Handler wires HTTP endpoints for sales invoices.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers invoice routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Delete("/{id}", h.handleDelete)
	})
}

type itemPayload struct {
	ItemID      string  `json:"itemId"`
	ItemGroupID string  `json:"itemGroupId"`
	ItemName    string  `json:"itemName"`
	ItemSKU     string  `json:"itemSku"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
}

type invoicePayload struct {
	Number    string        `json:"number" validate:"required"`
	Date      time.Time     `json:"date" validate:"required"`
	Role      string        `json:"role"`
	Warehouse string        `json:"warehouse"`
	Category  string        `json:"category"`
	Items     []itemPayload `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload invoicePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items := make([]Item, 0, len(payload.Items))
	for _, p := range payload.Items {
		item := Item{ItemName: p.ItemName, ItemSKU: p.ItemSKU, Quantity: p.Quantity}
		if p.ItemID != "" {
			id, err := uuid.Parse(p.ItemID)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "itemId must be a UUID")
				return
			}
			item.ItemID = id
		}
		if p.ItemGroupID != "" {
			id, err := uuid.Parse(p.ItemGroupID)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "itemGroupId must be a UUID")
				return
			}
			item.ItemGroupID = id
		}
		items = append(items, item)
	}
	result, err := h.service.Create(r.Context(), CreateInput{
		Number:    payload.Number,
		Date:      payload.Date,
		Role:      payload.Role,
		Warehouse: payload.Warehouse,
		Category:  Category(payload.Category),
		Items:     items,
	})
	if err != nil {
		h.respondError(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	invoices, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.respondError(w, "delete invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidCategory), errors.Is(err, ErrNoWarehouse), errors.Is(err, ErrNoItems):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
