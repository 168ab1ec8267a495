package purchase

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

// Handler wires HTTP endpoints for purchase receives.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers purchase receive routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/receives", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

type itemPayload struct {
	ItemID      string  `json:"itemId"`
	ItemGroupID string  `json:"itemGroupId"`
	ItemName    string  `json:"itemName"`
	ItemSKU     string  `json:"itemSku"`
	Ordered     float64 `json:"ordered" validate:"gte=0"`
	Received    float64 `json:"received" validate:"gte=0"`
}

type receivePayload struct {
	Number    string        `json:"number" validate:"required"`
	Date      time.Time     `json:"date" validate:"required"`
	Warehouse string        `json:"warehouse" validate:"required"`
	Status    string        `json:"status"`
	Items     []itemPayload `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	payload, items, ok := h.decode(w, r)
	if !ok {
		return
	}
	result, err := h.service.Create(r.Context(), CreateInput{
		Number:    payload.Number,
		Date:      payload.Date,
		Warehouse: payload.Warehouse,
		Status:    Status(payload.Status),
		Items:     items,
	})
	if err != nil {
		h.respondError(w, "create receive", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	receives, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, "list receives", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receives": receives})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.receiveID(w, r)
	if !ok {
		return
	}
	receive, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get receive", err)
		return
	}
	httpx.JSON(w, http.StatusOK, receive)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.receiveID(w, r)
	if !ok {
		return
	}
	payload, items, decoded := h.decode(w, r)
	if !decoded {
		return
	}
	status := Status(payload.Status)
	if status == "" {
		status = StatusDraft
	}
	result, err := h.service.Update(r.Context(), id, UpdateInput{
		Number:    payload.Number,
		Date:      payload.Date,
		Warehouse: payload.Warehouse,
		Status:    status,
		Items:     items,
	})
	if err != nil {
		h.respondError(w, "update receive", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.receiveID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.respondError(w, "delete receive", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (receivePayload, []Item, bool) {
	var payload receivePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return payload, nil, false
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return payload, nil, false
	}
	items := make([]Item, 0, len(payload.Items))
	for _, p := range payload.Items {
		item := Item{ItemName: p.ItemName, ItemSKU: p.ItemSKU, Ordered: p.Ordered, Received: p.Received}
		if p.ItemID != "" {
			id, err := uuid.Parse(p.ItemID)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "itemId must be a UUID")
				return payload, nil, false
			}
			item.ItemID = id
		}
		if p.ItemGroupID != "" {
			id, err := uuid.Parse(p.ItemGroupID)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "itemGroupId must be a UUID")
				return payload, nil, false
			}
			item.ItemGroupID = id
		}
		items = append(items, item)
	}
	return payload, items, true
}

func (h *Handler) receiveID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "receive id must be a UUID")
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
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNoItems):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
