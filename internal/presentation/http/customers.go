package httppresentation

import (
	"net/http"
	"time"

	appcustomer "github.com/Zhima-Mochi/kitchenledger/internal/application/customer"
	domcustomer "github.com/Zhima-Mochi/kitchenledger/internal/domain/customer"
)

type customerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type customerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newCustomerResponse(c *domcustomer.Customer) customerResponse {
	return customerResponse{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, CreatedAt: c.CreatedAt}
}

func (h *Handler) handleRegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.svc.Customers.Register(r.Context(), appcustomer.RegisterInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCustomerResponse(c))
}

func (h *Handler) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Customers.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCustomerResponse(c))
}
