package httppresentation

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	appinventory "github.com/Zhima-Mochi/kitchenledger/internal/application/inventory"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"

	"github.com/shopspring/decimal"
)

var errInvalidForce = errors.New("force must be a boolean")

type inventoryItemResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Status       dominv.Status   `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func newInventoryItemResponse(it *dominv.Item) inventoryItemResponse {
	return inventoryItemResponse{
		ID:           it.ID,
		Name:         it.Name,
		Unit:         it.Unit,
		Quantity:     it.Quantity,
		MinimumStock: it.MinimumStock,
		UnitPrice:    it.UnitPrice,
		Status:       it.Status,
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
	}
}

type movementResponse struct {
	ID        string                `json:"id"`
	OrderID   string                `json:"order_id,omitempty"`
	Reason    dominv.MovementReason `json:"reason"`
	Delta     decimal.Decimal       `json:"delta"`
	Balance   decimal.Decimal       `json:"balance"`
	CreatedAt time.Time             `json:"created_at"`
}

type createInventoryRequest struct {
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

func (h *Handler) handleCreateInventory(w http.ResponseWriter, r *http.Request) {
	var req createInventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := h.svc.Inventory.CreateItem(r.Context(), appinventory.CreateItemInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newInventoryItemResponse(item))
}

func (h *Handler) handleListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Inventory.ListItems(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]inventoryItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, newInventoryItemResponse(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Inventory.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInventoryItemResponse(item))
}

// adjustInventoryRequest carries only the fields being changed.
type adjustInventoryRequest struct {
	Name         *string          `json:"name"`
	Unit         *string          `json:"unit"`
	Quantity     *decimal.Decimal `json:"quantity"`
	MinimumStock *decimal.Decimal `json:"minimum_stock"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
}

func (h *Handler) handleAdjustInventory(w http.ResponseWriter, r *http.Request) {
	var req adjustInventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := h.svc.Inventory.AdjustItem(r.Context(), r.PathValue("id"), dominv.Changes(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInventoryItemResponse(item))
}

type restockRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) handleRestockInventory(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := h.svc.Inventory.Restock(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInventoryItemResponse(item))
}

// handleDeleteInventory tombstones an item; ?force=true detaches it from recipes that still use it.
func (h *Handler) handleDeleteInventory(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errInvalidForce)
			return
		}
		force = v
	}
	if err := h.svc.Inventory.DeleteItem(r.Context(), r.PathValue("id"), force); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleInventoryMovements(w http.ResponseWriter, r *http.Request) {
	moves, err := h.svc.Inventory.Movements(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(moves))
	for _, m := range moves {
		out = append(out, movementResponse{
			ID:        m.ID,
			OrderID:   m.OrderID,
			Reason:    m.Reason,
			Delta:     m.Delta,
			Balance:   m.Balance,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
