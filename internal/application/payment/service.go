package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	paymentService        = "payment-service"
	useCasePaymentInit    = "payment.initialize"
	useCasePaymentVerify  = "payment.verify"
	gatewayPeer           = "payment_gateway"
	referenceSuffixLength = 8
)

// ErrGateway wraps every failure reported by the external gateway.
var ErrGateway = errors.New("payment: gateway failure")

// Service bridges committed orders to the payment gateway. It never runs
// inside an order's unit of work.
type Service struct {
	uow         uow.UnitOfWork
	gateway     dompay.Gateway
	ids         application.IDGenerator
	currency    string
	callbackURL string
	publisher   domoutbox.Publisher
	obs         application.Instruments
}

// Options tunes the bridge. Publisher is optional and receives
// payment.settled after every stored verification.
type Options struct {
	Currency    string
	CallbackURL string
	Publisher   domoutbox.Publisher
}

func NewService(u uow.UnitOfWork, gateway dompay.Gateway, ids application.IDGenerator, opts Options, tel observability.Observability) *Service {
	if opts.Currency == "" {
		opts.Currency = "NGN"
	}
	return &Service{
		uow:         u,
		gateway:     gateway,
		ids:         ids,
		currency:    opts.Currency,
		callbackURL: opts.CallbackURL,
		publisher:   opts.Publisher,
		obs:         application.NewInstruments(tel, paymentService),
	}
}

func (s *Service) Currency() string { return s.currency }

// NewReference builds a transaction reference from the order id and a short random suffix.
func (s *Service) NewReference(orderID string) string {
	suffix := strings.ReplaceAll(s.ids.NewID(), "-", "")
	if len(suffix) > referenceSuffixLength {
		suffix = suffix[:referenceSuffixLength]
	}
	return orderID + "-" + suffix
}

type InitiateInput struct {
	Reference string
	Email     string
	Amount    decimal.Decimal
}

// Initiate asks the gateway for a checkout. Success is stored on the
// transaction so replays can return it; failure marks the transaction failed.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (_ *dompay.Initiation, err error) {
	ctx, probe := s.obs.Begin(ctx, useCasePaymentInit, "InitializePayment",
		attribute.String("payment.reference", in.Reference),
		attribute.String("payment.amount", in.Amount.String()),
	)
	defer func() { probe.End(err) }()

	start := time.Now()
	initiation, gwErr := s.gateway.Initialize(ctx, dompay.Charge{
		Reference:   in.Reference,
		Email:       in.Email,
		Amount:      in.Amount,
		Currency:    s.currency,
		CallbackURL: s.callbackURL,
	})
	if gwErr != nil {
		s.obs.ObserveExternal(gatewayPeer, "initialize", "error", start)
		probe.Fail("GATEWAY_INITIALIZE_FAILED")
		probe.Logger().Warn("payment_initialize_failed",
			observability.F("reference", in.Reference),
			observability.F("error", gwErr.Error()),
		)
		if markErr := s.setStatus(ctx, in.Reference, dompay.StatusFailed); markErr != nil {
			probe.Annotate(observability.F("mark_failed_error", markErr.Error()))
		}
		return nil, fmt.Errorf("%w: %w", ErrGateway, gwErr)
	}
	s.obs.ObserveExternal(gatewayPeer, "initialize", "success", start)

	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		t, err := tx.Transactions().GetByReference(ctx, in.Reference)
		if err != nil {
			return err
		}
		t.RecordInitiation(initiation)
		return tx.Transactions().Update(ctx, t)
	})
	if err != nil {
		probe.Fail("TRANSACTION_UPDATE_FAILED")
		return nil, err
	}
	probe.Span().AddEvent("payment.initialized",
		trace.WithAttributes(attribute.String("payment.reference", initiation.Reference)),
	)
	return &initiation, nil
}

// Verify asks the gateway for the outcome of a reference and settles the
// transaction. A completed transaction is returned unchanged, and a gateway
// error leaves the stored row untouched.
func (s *Service) Verify(ctx context.Context, reference string) (_ *dompay.Transaction, err error) {
	ctx, probe := s.obs.Begin(ctx, useCasePaymentVerify, "VerifyPayment", attribute.String("payment.reference", reference))
	defer func() { probe.End(err) }()

	if strings.TrimSpace(reference) == "" {
		probe.Fail("REFERENCE_REQUIRED")
		return nil, application.NewValidation("reference is required")
	}

	var existing *dompay.Transaction
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		existing, err = tx.Transactions().GetByReference(ctx, reference)
		return err
	})
	if err != nil {
		probe.Fail("TRANSACTION_NOT_FOUND")
		return nil, err
	}

	if existing.Status == dompay.StatusCompleted {
		probe.Status = "ALREADY_COMPLETED"
		probe.Annotate(observability.F("reference", reference))
		return existing, nil
	}

	start := time.Now()
	verdict, gwErr := s.gateway.Verify(ctx, reference)
	if gwErr != nil {
		s.obs.ObserveExternal(gatewayPeer, "verify", "error", start)
		probe.Fail("GATEWAY_VERIFY_FAILED")
		probe.Logger().Warn("payment_verify_failed",
			observability.F("reference", reference),
			observability.F("error", gwErr.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrGateway, gwErr)
	}
	s.obs.ObserveExternal(gatewayPeer, "verify", "success", start)

	var settled *dompay.Transaction
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		t, err := tx.Transactions().GetByReference(ctx, existing.Reference)
		if err != nil {
			return err
		}
		if t.Status != dompay.StatusCompleted {
			if verdict.Successful {
				t.MarkCompleted()
			} else {
				t.MarkFailed()
			}
		}
		settled = t
		return tx.Transactions().Update(ctx, t)
	})
	if err != nil {
		probe.Fail("TRANSACTION_UPDATE_FAILED")
		return nil, err
	}

	probe.Annotate(
		observability.F("reference", reference),
		observability.F("payment_status", string(settled.Status)),
	)
	if pubErr := s.obs.PublishAll(ctx, s.publisher, dompay.NewSettledEvent(settled)); pubErr != nil {
		probe.Annotate(observability.F("event_publish_error", pubErr.Error()))
	}
	if settled.Status != dompay.StatusCompleted {
		probe.Fail("PAYMENT_NOT_SUCCESSFUL")
		return settled, fmt.Errorf("%w: gateway status %q", dompay.ErrVerificationFailed, verdict.GatewayStatus)
	}
	return settled, nil
}

// Transactions lists the payment attempts of an order.
func (s *Service) Transactions(ctx context.Context, orderID string) ([]*dompay.Transaction, error) {
	var out []*dompay.Transaction
	err := s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		out, err = tx.Transactions().ListByOrder(ctx, orderID)
		return err
	})
	return out, err
}

func (s *Service) setStatus(ctx context.Context, reference string, status dompay.Status) error {
	return s.uow.Do(context.WithoutCancel(ctx), func(ctx context.Context, tx uow.Tx) error {
		t, err := tx.Transactions().GetByReference(ctx, reference)
		if err != nil {
			return err
		}
		if status == dompay.StatusFailed {
			t.MarkFailed()
		} else {
			t.MarkCompleted()
		}
		return tx.Transactions().Update(ctx, t)
	})
}
