package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	catalogService          = "catalog-service"
	useCaseMenuItemCreate   = "catalog.menu_item.create"
	useCaseRecipeCreate     = "catalog.recipe.create"
	useCaseRecipeUpdate     = "catalog.recipe.update"
	useCaseRecipeDelete     = "catalog.recipe.delete"
	useCaseAvailabilityRead = "catalog.availability"
)

// Service manages menu items and recipe edges. Every mutation recomputes the
// derived fields of the menu items it touches before committing.
type Service struct {
	uow  uow.UnitOfWork
	calc *Calculator
	ids  application.IDGenerator
	obs  application.Instruments
}

func NewService(u uow.UnitOfWork, calc *Calculator, ids application.IDGenerator, tel observability.Observability) *Service {
	if calc == nil {
		calc = NewCalculator()
	}
	return &Service{
		uow:  u,
		calc: calc,
		ids:  ids,
		obs:  application.NewInstruments(tel, catalogService),
	}
}

type CreateMenuItemInput struct {
	Name       string
	CategoryID string
	Price      decimal.Decimal
}

func (s *Service) CreateMenuItem(ctx context.Context, in CreateMenuItemInput) (_ *domain.MenuItem, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseMenuItemCreate, "CreateMenuItem")
	defer func() { probe.End(err) }()

	item, err := domain.NewMenuItem(s.ids.NewID(), in.Name, in.CategoryID, in.Price)
	if err != nil {
		probe.Fail("INVALID_MENU_ITEM")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, err)
	}

	var created *domain.MenuItem
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		if err := tx.Catalog().InsertMenuItem(ctx, item); err != nil {
			return err
		}
		if err := s.calc.RecomputeAffected(ctx, tx, []string{item.ID}); err != nil {
			return err
		}
		var err error
		created, err = tx.Catalog().GetMenuItem(ctx, item.ID)
		return err
	})
	if err != nil {
		probe.Fail("MENU_ITEM_INSERT_FAILED")
		return nil, err
	}
	probe.Annotate(observability.F("menu_item_id", created.ID))
	return created, nil
}

type CreateRecipeInput struct {
	MenuItemID  string
	InventoryID string
	Quantity    decimal.Decimal
	// Unit defaults to the ingredient's unit.
	Unit string
}

func (s *Service) CreateRecipe(ctx context.Context, in CreateRecipeInput) (_ *domain.Recipe, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseRecipeCreate, "CreateRecipe",
		attribute.String("menu_item.id", in.MenuItemID),
		attribute.String("inventory.id", in.InventoryID),
	)
	defer func() { probe.End(err) }()

	if in.MenuItemID == "" || in.InventoryID == "" {
		probe.Fail("IDS_REQUIRED")
		return nil, application.NewValidation("menu item id and inventory id are required")
	}

	var recipe *domain.Recipe
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		if _, err := tx.Catalog().GetMenuItem(ctx, in.MenuItemID); err != nil {
			return err
		}
		ingredient, err := tx.Inventory().Get(ctx, in.InventoryID)
		if err != nil {
			return err
		}
		unit := strings.TrimSpace(in.Unit)
		if unit == "" {
			unit = ingredient.Unit
		}
		if unit != ingredient.Unit {
			return domain.ErrUnitMismatch
		}
		_, err = tx.Catalog().FindRecipe(ctx, in.MenuItemID, in.InventoryID)
		switch {
		case err == nil:
			return domain.ErrRecipeExists
		case !errors.Is(err, domain.ErrRecipeNotFound):
			return err
		}

		recipe, err = domain.NewRecipe(s.ids.NewID(), in.MenuItemID, in.InventoryID, in.Quantity, unit)
		if err != nil {
			return err
		}
		if err := tx.Catalog().InsertRecipe(ctx, recipe); err != nil {
			return err
		}
		return s.calc.RecomputeAffected(ctx, tx, []string{in.MenuItemID})
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	probe.Annotate(observability.F("recipe_id", recipe.ID))
	return recipe, nil
}

type UpdateRecipeInput struct {
	ID       string
	Quantity *decimal.Decimal
	Unit     *string
}

func (s *Service) UpdateRecipe(ctx context.Context, in UpdateRecipeInput) (_ *domain.Recipe, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseRecipeUpdate, "UpdateRecipe", attribute.String("recipe.id", in.ID))
	defer func() { probe.End(err) }()

	var recipe *domain.Recipe
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		recipe, err = tx.Catalog().GetRecipe(ctx, in.ID)
		if err != nil {
			return err
		}
		if in.Quantity != nil {
			if !in.Quantity.IsPositive() {
				return domain.ErrInvalidRecipeAmount
			}
			recipe.Quantity = *in.Quantity
		}
		if in.Unit != nil {
			ingredient, err := tx.Inventory().Get(ctx, recipe.InventoryID)
			if err != nil {
				return err
			}
			if *in.Unit != ingredient.Unit {
				return domain.ErrUnitMismatch
			}
			recipe.Unit = *in.Unit
		}
		if err := tx.Catalog().UpdateRecipe(ctx, recipe); err != nil {
			return err
		}
		return s.calc.RecomputeAffected(ctx, tx, []string{recipe.MenuItemID})
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	return recipe, nil
}

func (s *Service) DeleteRecipe(ctx context.Context, id string) (err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseRecipeDelete, "DeleteRecipe", attribute.String("recipe.id", id))
	defer func() { probe.End(err) }()

	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		recipe, err := tx.Catalog().GetRecipe(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Catalog().DeleteRecipe(ctx, id); err != nil {
			return err
		}
		return s.calc.RecomputeAffected(ctx, tx, []string{recipe.MenuItemID})
	})
	if err != nil {
		probe.Fail(failureStatus(err))
	}
	return err
}

// IngredientCheck compares one recipe edge against the ledger.
type IngredientCheck struct {
	InventoryID string          `json:"inventory_id"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit"`
	Required    decimal.Decimal `json:"required"`
	Available   decimal.Decimal `json:"available"`
	Sufficient  bool            `json:"sufficient"`
}

type Availability struct {
	MenuItemID  string            `json:"menu_item_id"`
	Name        string            `json:"name"`
	Quantity    int               `json:"quantity"`
	Sellable    bool              `json:"sellable"`
	Cost        decimal.Decimal   `json:"cost"`
	Ingredients []IngredientCheck `json:"ingredients"`
}

// CheckAvailability reports whether quantity units of a menu item could be
// ordered right now, ingredient by ingredient. It changes nothing.
func (s *Service) CheckAvailability(ctx context.Context, menuItemID string, quantity int) (_ *Availability, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseAvailabilityRead, "CheckAvailability", attribute.String("menu_item.id", menuItemID))
	defer func() { probe.End(err) }()

	if quantity <= 0 {
		probe.Fail("QUANTITY_INVALID")
		return nil, application.NewValidation("quantity must be greater than zero")
	}

	var out *Availability
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		item, err := tx.Catalog().GetMenuItem(ctx, menuItemID)
		if err != nil {
			return err
		}
		req, err := s.calc.RequirementsFor(ctx, tx, menuItemID, quantity)
		if err != nil {
			return err
		}
		out = &Availability{MenuItemID: item.ID, Name: item.Name, Quantity: quantity, Cost: item.Cost}
		out.Sellable = len(req) > 0
		for _, id := range req.IDs() {
			check := IngredientCheck{InventoryID: id, Required: req[id]}
			ingredient, err := tx.Inventory().Get(ctx, id)
			switch {
			case err == nil:
				check.Name = ingredient.Name
				check.Unit = ingredient.Unit
				check.Available = ingredient.Quantity
				check.Sufficient = !ingredient.Quantity.LessThan(check.Required)
			case errors.Is(err, dominv.ErrNotFound):
			default:
				return err
			}
			if !check.Sufficient {
				out.Sellable = false
			}
			out.Ingredients = append(out.Ingredients, check)
		}
		return nil
	})
	if err != nil {
		probe.Fail(failureStatus(err))
		return nil, err
	}
	return out, nil
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrMenuItemNotFound):
		return "MENU_ITEM_NOT_FOUND"
	case errors.Is(err, domain.ErrRecipeNotFound):
		return "RECIPE_NOT_FOUND"
	case errors.Is(err, dominv.ErrNotFound):
		return "INVENTORY_NOT_FOUND"
	case errors.Is(err, domain.ErrRecipeExists):
		return "RECIPE_EXISTS"
	case errors.Is(err, domain.ErrUnitMismatch):
		return "UNIT_MISMATCH"
	case errors.Is(err, domain.ErrInvalidRecipeAmount):
		return "QUANTITY_INVALID"
	default:
		return "UNIT_OF_WORK_FAILED"
	}
}
