package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-stock/internal/ledger"
	"github.com/meridian-retail/meridian-stock/internal/platform/httpx"
	"github.com/meridian-retail/meridian-stock/internal/warehouse"
)

// Handler wires HTTP endpoints for the catalog and the read-only stock view.
type Handler struct {
	logger    *slog.Logger
	repo      *Repository
	resolver  *warehouse.Resolver
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository, resolver *warehouse.Resolver) *Handler {
	return &Handler{logger: logger, repo: repo, resolver: resolver, validator: validator.New()}
}

// MountRoutes registers catalog and stock routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/item-groups", h.handleCreateGroup)
	r.Post("/item-groups/{groupID}/items", h.handleCreateGroupItem)
	r.Post("/items", h.handleCreateItem)
	r.Get("/stock/{itemID}", h.handleStock)
}

type groupPayload struct {
	Name string `json:"name" validate:"required"`
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var payload groupPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group := ItemGroup{ID: uuid.New(), Name: payload.Name, Status: GroupStatusActive}
	if err := h.repo.CreateGroup(r.Context(), group); err != nil {
		h.logger.Error("create item group", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

type itemPayload struct {
	Name         string  `json:"name" validate:"required"`
	SKU          string  `json:"sku"`
	ReorderPoint float64 `json:"reorderPoint" validate:"gte=0"`
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item := StandaloneItem{
		ID:           uuid.New(),
		Name:         payload.Name,
		SKU:          payload.SKU,
		ReorderPoint: payload.ReorderPoint,
		Status:       "active",
	}
	if err := h.repo.CreateStandaloneItem(r.Context(), item); err != nil {
		h.logger.Error("create item", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleCreateGroupItem(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "group id must be a UUID")
		return
	}
	var payload itemPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item := GroupItem{
		ID:           uuid.New(),
		GroupID:      groupID,
		Name:         payload.Name,
		SKU:          payload.SKU,
		ReorderPoint: payload.ReorderPoint,
	}
	if err := h.repo.CreateGroupItem(r.Context(), item); err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("create group item", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

// handleStock lists an item's stock entries. With ?warehouse= it returns only
// the entry the resolver matches to that label.
func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "item id must be a UUID")
		return
	}
	entries, err := h.repo.ListStockEntries(r.Context(), itemID)
	if err != nil {
		h.logger.Error("list stock entries", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if label := r.URL.Query().Get("warehouse"); label != "" {
		canonical := h.resolver.Canonicalize(label)
		var matched []ledger.WarehouseStockEntry
		for _, entry := range entries {
			if h.resolver.Same(entry.Warehouse, canonical) {
				matched = append(matched, entry)
			}
		}
		entries = matched
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"itemId": itemID, "entries": entries})
}
