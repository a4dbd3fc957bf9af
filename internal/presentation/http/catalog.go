package httppresentation

import (
	"net/http"
	"time"

	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	domcatalog "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"

	"github.com/shopspring/decimal"
)

type menuItemResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	CategoryID string          `json:"category_id,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Cost       decimal.Decimal `json:"cost"`
	Sellable   bool            `json:"sellable"`
	CreatedAt  time.Time       `json:"created_at"`
}

type recipeResponse struct {
	ID          string          `json:"id"`
	MenuItemID  string          `json:"menu_item_id"`
	InventoryID string          `json:"inventory_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
}

func newRecipeResponse(rc *domcatalog.Recipe) recipeResponse {
	return recipeResponse{
		ID:          rc.ID,
		MenuItemID:  rc.MenuItemID,
		InventoryID: rc.InventoryID,
		Quantity:    rc.Quantity,
		Unit:        rc.Unit,
	}
}

type createMenuItemRequest struct {
	Name       string          `json:"name"`
	CategoryID string          `json:"category_id"`
	Price      decimal.Decimal `json:"price"`
}

func (h *Handler) handleCreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req createMenuItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := h.svc.Catalog.CreateMenuItem(r.Context(), appcatalog.CreateMenuItemInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, menuItemResponse{
		ID:         item.ID,
		Name:       item.Name,
		CategoryID: item.CategoryID,
		Price:      item.Price,
		Cost:       item.Cost,
		Sellable:   item.Sellable,
		CreatedAt:  item.CreatedAt,
	})
}

// handleCheckAvailability reads ?quantity=, default 1.
func (h *Handler) handleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	qty, err := queryInt(r, "quantity", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := h.svc.Catalog.CheckAvailability(r.Context(), r.PathValue("id"), qty)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type createRecipeRequest struct {
	MenuItemID  string          `json:"menu_item_id"`
	InventoryID string          `json:"inventory_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
}

func (h *Handler) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req createRecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recipe, err := h.svc.Catalog.CreateRecipe(r.Context(), appcatalog.CreateRecipeInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecipeResponse(recipe))
}

type updateRecipeRequest struct {
	Quantity *decimal.Decimal `json:"quantity"`
	Unit     *string          `json:"unit"`
}

func (h *Handler) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	var req updateRecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recipe, err := h.svc.Catalog.UpdateRecipe(r.Context(), appcatalog.UpdateRecipeInput{
		ID:       r.PathValue("id"),
		Quantity: req.Quantity,
		Unit:     req.Unit,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecipeResponse(recipe))
}

func (h *Handler) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Catalog.DeleteRecipe(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
