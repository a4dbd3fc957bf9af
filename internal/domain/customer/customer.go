package customer

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("customer: not found")

type Customer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

type Repository interface {
	Get(ctx context.Context, id string) (*Customer, error)
	Insert(ctx context.Context, c *Customer) error
}
