package transfer

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

// Handler wires HTTP endpoints for transfer orders.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers transfer order routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/transfer-orders", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Post("/{id}/status", h.handleTransition)
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

type orderPayload struct {
	Number               string        `json:"number" validate:"required"`
	Date                 time.Time     `json:"date" validate:"required"`
	SourceWarehouse      string        `json:"sourceWarehouse" validate:"required"`
	DestinationWarehouse string        `json:"destinationWarehouse" validate:"required"`
	Status               string        `json:"status"`
	Items                []itemPayload `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload orderPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items, err := payloadItems(payload.Items)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.Create(r.Context(), CreateInput{
		Number:               payload.Number,
		Date:                 payload.Date,
		SourceWarehouse:      payload.SourceWarehouse,
		DestinationWarehouse: payload.DestinationWarehouse,
		Status:               Status(payload.Status),
		Items:                items,
	})
	if err != nil {
		h.respondError(w, r, "create transfer order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	orders, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, r, "list transfer orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get transfer order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var payload orderPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items, err := payloadItems(payload.Items)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.Update(r.Context(), id, UpdateInput{
		Number:               payload.Number,
		Date:                 payload.Date,
		SourceWarehouse:      payload.SourceWarehouse,
		DestinationWarehouse: payload.DestinationWarehouse,
		Items:                items,
	})
	if err != nil {
		h.respondError(w, r, "update transfer order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type transitionPayload struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var payload transitionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Transition(r.Context(), id, Status(payload.Status))
	if err != nil {
		h.respondError(w, r, "transition transfer order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "delete transfer order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrAlreadyTransferred), errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrSameWarehouse), errors.Is(err, ErrNoItems):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func payloadItems(payloads []itemPayload) ([]Item, error) {
	items := make([]Item, 0, len(payloads))
	for _, p := range payloads {
		item := Item{ItemName: p.ItemName, ItemSKU: p.ItemSKU, Quantity: p.Quantity}
		if p.ItemID != "" {
			id, err := uuid.Parse(p.ItemID)
			if err != nil {
				return nil, errors.New("itemId must be a UUID")
			}
			item.ItemID = id
		}
		if p.ItemGroupID != "" {
			id, err := uuid.Parse(p.ItemGroupID)
			if err != nil {
				return nil, errors.New("itemGroupId must be a UUID")
			}
			item.ItemGroupID = id
		}
		items = append(items, item)
	}
	return items, nil
}
