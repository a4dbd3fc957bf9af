package sandboxpay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownReference = errors.New("sandbox: unknown reference")
	ErrDeclined         = errors.New("sandbox: initialization declined")
)

// Gateway simulates a hosted-checkout provider for local runs. Each
// reference is settled once, at its first verification, with probability
// successRate; later verifications repeat the verdict.
type Gateway struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	failInit    bool
	checkoutURL string
	charges     map[string]*charge
}

type charge struct {
	amount  decimal.Decimal
	settled bool
	paid    bool
}

var _ dompay.Gateway = (*Gateway)(nil)

type Option func(*Gateway)

// WithRand makes outcomes reproducible in tests.
func WithRand(r *rand.Rand) Option {
	return func(g *Gateway) { g.random = r }
}

// WithFailingInitialize makes every Initialize call fail.
func WithFailingInitialize() Option {
	return func(g *Gateway) { g.failInit = true }
}

func New(successRate float64, opts ...Option) *Gateway {
	g := &Gateway{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
		checkoutURL: "https://sandbox.kitchenledger.local/checkout/",
		charges:     make(map[string]*charge),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Initialize(ctx context.Context, c dompay.Charge) (dompay.Initiation, error) {
	if err := ctx.Err(); err != nil {
		return dompay.Initiation{}, err
	}
	if c.Reference == "" {
		return dompay.Initiation{}, dompay.ErrReferenceRequired
	}
	if !c.Amount.IsPositive() {
		return dompay.Initiation{}, dompay.ErrInvalidAmount
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failInit {
		return dompay.Initiation{}, fmt.Errorf("%w: %s", ErrDeclined, c.Reference)
	}
	if _, ok := g.charges[c.Reference]; !ok {
		g.charges[c.Reference] = &charge{amount: c.Amount}
	}
	return dompay.Initiation{
		Reference:        c.Reference,
		AuthorizationURL: g.checkoutURL + url.PathEscape(c.Reference),
		AccessCode:       uuid.NewString()[:12],
	}, nil
}

func (g *Gateway) Verify(ctx context.Context, reference string) (dompay.Verification, error) {
	if err := ctx.Err(); err != nil {
		return dompay.Verification{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.charges[reference]
	if !ok {
		return dompay.Verification{}, fmt.Errorf("%w: %s", ErrUnknownReference, reference)
	}
	if !ch.settled {
		ch.settled = true
		ch.paid = g.random.Float64() < g.successRate
	}

	status := "failed"
	if ch.paid {
		status = "success"
	}
	return dompay.Verification{
		Reference:     reference,
		Successful:    ch.paid,
		GatewayStatus: status,
		Amount:        ch.amount,
	}, nil
}

func (g *Gateway) SuccessRate() float64 { return g.successRate }
