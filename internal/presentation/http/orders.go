package httppresentation

import (
	"errors"
	"net/http"

	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"
	domorder "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"

	"github.com/shopspring/decimal"
)

type orderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID      string             `json:"customer_id"`
	IdempotencyKey  string             `json:"idempotency_key"`
	Items           []orderItemRequest `json:"items"`
	TotalPrice      decimal.Decimal    `json:"total_price"`
	DeliveryAddress string             `json:"delivery_address"`
}

type createOrderResponse struct {
	Order    *apporder.OrderView `json:"order"`
	Payment  *dompay.Initiation  `json:"payment,omitempty"`
	Replayed bool                `json:"replayed"`
	Error    string              `json:"error,omitempty"`
}

func toRequested(items []orderItemRequest) []apporder.RequestedItem {
	if items == nil {
		return nil
	}
	out := make([]apporder.RequestedItem, 0, len(items))
	for _, it := range items {
		out = append(out, apporder.RequestedItem{MenuItemID: it.MenuItemID, Quantity: it.Quantity})
	}
	return out
}

// handleCreateOrder answers 201 for a new order and 200 for a replay. When the
// order committed but the checkout could not be opened, the order is still
// returned, with 502.
func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key := req.IdempotencyKey
	if hdr := r.Header.Get(headerIdempotencyKey); hdr != "" {
		key = hdr
	}

	result, err := h.svc.Orders.Create.Execute(r.Context(), apporder.CreateOrderInput{
		IdempotencyKey:  key,
		CustomerID:      req.CustomerID,
		Items:           toRequested(req.Items),
		ClientTotal:     req.TotalPrice,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil && (result == nil || !errors.Is(err, apporder.ErrPaymentInitialization)) {
		writeDomainError(w, err)
		return
	}

	body := createOrderResponse{Order: result.Order, Payment: result.Payment, Replayed: result.Replayed}
	status := http.StatusCreated
	switch {
	case err != nil:
		body.Error = err.Error()
		status = http.StatusBadGateway
	case result.Replayed:
		status = http.StatusOK
	}
	writeJSON(w, status, body)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Orders.Get.Execute(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	Status          *domorder.Status   `json:"status"`
	DeliveryAddress *string            `json:"delivery_address"`
}

func (h *Handler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := h.svc.Orders.Update.Execute(r.Context(), apporder.UpdateOrderInput{
		OrderID:         r.PathValue("id"),
		Items:           toRequested(req.Items),
		Status:          req.Status,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Orders.Cancel.Execute(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	views, err := h.svc.Orders.List.Execute(r.Context(), apporder.ListOrdersInput{
		CustomerID: r.PathValue("id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if views == nil {
		views = []*apporder.OrderView{}
	}
	writeJSON(w, http.StatusOK, views)
}

type transactionResponse struct {
	Reference string          `json:"reference"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    dompay.Status   `json:"status"`
	Error     string          `json:"error,omitempty"`
}

// handleVerifyPayment settles a transaction. A declined payment is still a
// settled transaction and is returned with 402.
func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	txn, err := h.svc.Payments.Verify(r.Context(), r.PathValue("reference"))
	if txn == nil {
		writeDomainError(w, err)
		return
	}
	body := transactionResponse{
		Reference: txn.Reference,
		OrderID:   txn.OrderID,
		Amount:    txn.Amount,
		Currency:  txn.Currency,
		Status:    txn.Status,
	}
	status := http.StatusOK
	if err != nil {
		body.Error = err.Error()
		status = statusFor(err)
	}
	writeJSON(w, status, body)
}
