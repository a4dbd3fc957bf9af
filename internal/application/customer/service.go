package customer

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/Zhima-Mochi/kitchenledger/internal/application"
	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/customer"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	customerService       = "customer-service"
	useCaseCustomerCreate = "customer.register"
	useCaseCustomerGet    = "customer.get"
)

type Service struct {
	uow uow.UnitOfWork
	ids application.IDGenerator
	obs application.Instruments
}

func NewService(u uow.UnitOfWork, ids application.IDGenerator, tel observability.Observability) *Service {
	return &Service{uow: u, ids: ids, obs: application.NewInstruments(tel, customerService)}
}

type RegisterInput struct {
	Name  string
	Email string
	Phone string
}

// Register stores a customer. The email is what the payment gateway receives.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *domain.Customer, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseCustomerCreate, "RegisterCustomer")
	defer func() { probe.End(err) }()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		probe.Fail("VALIDATION_FAILED")
		return nil, application.NewValidation("name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		probe.Fail("VALIDATION_FAILED")
		return nil, application.NewValidation("email is invalid")
	}

	c := &domain.Customer{
		ID:        s.ids.NewID(),
		Name:      name,
		Email:     addr.Address,
		Phone:     strings.TrimSpace(in.Phone),
		CreatedAt: time.Now().UTC(),
	}
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		return tx.Customers().Insert(ctx, c)
	})
	if err != nil {
		probe.Fail("UNIT_OF_WORK_FAILED")
		return nil, err
	}
	probe.Annotate(observability.F("customer_id", c.ID))
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (_ *domain.Customer, err error) {
	ctx, probe := s.obs.Begin(ctx, useCaseCustomerGet, "GetCustomer", attribute.String("customer.id", id))
	defer func() { probe.End(err) }()

	var c *domain.Customer
	err = s.uow.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		c, err = tx.Customers().Get(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			probe.Fail("CUSTOMER_NOT_FOUND")
		}
		return nil, err
	}
	return c, nil
}
