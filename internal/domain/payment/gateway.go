package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Charge is what a gateway needs to open a checkout.
type Charge struct {
	Reference   string
	Email       string
	Amount      decimal.Decimal
	Currency    string
	CallbackURL string
}

// Initiation is the gateway's answer to a charge: where the customer pays.
type Initiation struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// Verification is the gateway's verdict on a reference.
type Verification struct {
	Reference     string
	Successful    bool
	GatewayStatus string
	Amount        decimal.Decimal
}

// Gateway abstracts an external payment provider.
type Gateway interface {
	Initialize(ctx context.Context, charge Charge) (Initiation, error)
	Verify(ctx context.Context, reference string) (Verification, error)
}
