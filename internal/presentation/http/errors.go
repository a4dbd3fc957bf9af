package httppresentation

import (
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"
	apppayment "github.com/Zhima-Mochi/kitchenledger/internal/application/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/application/pricing"
	domcatalog "github.com/Zhima-Mochi/kitchenledger/internal/domain/catalog"
	domcustomer "github.com/Zhima-Mochi/kitchenledger/internal/domain/customer"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
)

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case isAny(err,
		domorder.ErrNotFound,
		domcustomer.ErrNotFound,
		domcatalog.ErrMenuItemNotFound,
		domcatalog.ErrRecipeNotFound,
		dominv.ErrNotFound,
		dompay.ErrNotFound,
	):
		return http.StatusNotFound
	case isAny(err,
		application.ErrValidation,
		pricing.ErrPriceMismatch,
		dominv.ErrInvalidQuantity,
		dominv.ErrNegativeValue,
		dominv.ErrNameRequired,
		dominv.ErrUnitRequired,
		domcatalog.ErrInvalidPrice,
		domcatalog.ErrNameRequired,
		domcatalog.ErrInvalidRecipeAmount,
		domorder.ErrInvalidQuantity,
		domorder.ErrEmpty,
		dompay.ErrInvalidAmount,
		dompay.ErrReferenceRequired,
	):
		return http.StatusBadRequest
	case isAny(err,
		dominv.ErrInsufficientStock,
		dominv.ErrUnavailable,
		dominv.ErrDuplicateName,
		dominv.ErrInUse,
		domcatalog.ErrUnsellable,
		domcatalog.ErrRecipeExists,
		domcatalog.ErrUnitMismatch,
		domorder.ErrConflict,
		domorder.ErrInvalidStateTransition,
		domorder.ErrNotEditable,
		dompay.ErrConflict,
	):
		return http.StatusConflict
	case errors.Is(err, dompay.ErrVerificationFailed):
		return http.StatusPaymentRequired
	case isAny(err, apporder.ErrPaymentInitialization, apppayment.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
