package application

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every input validation failure.
var ErrValidation = errors.New("validation")

func NewValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// IDGenerator issues identifiers for new entities.
type IDGenerator interface {
	NewID() string
}
