package order

import "fmt"

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	OnDispatch(o *Order) (OrderState, error)
	OnComplete(o *Order) (OrderState, error)
	OnCancel(o *Order) (OrderState, error)
}

func stateFor(s Status) (OrderState, error) {
	switch s {
	case StatusPending:
		return pendingState{}, nil
	case StatusOutForDelivery:
		return outForDeliveryState{}, nil
	case StatusCompleted:
		return completedState{}, nil
	case StatusCancelled:
		return cancelledState{}, nil
	}
	return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidStateTransition, s)
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnDispatch(*Order) (OrderState, error) { return outForDeliveryState{}, nil }

func (pendingState) OnComplete(*Order) (OrderState, error) { return completedState{}, nil }

func (pendingState) OnCancel(*Order) (OrderState, error) { return cancelledState{}, nil }

type outForDeliveryState struct{}

func (outForDeliveryState) Status() Status { return StatusOutForDelivery }

func (outForDeliveryState) OnDispatch(*Order) (OrderState, error) {
	return outForDeliveryState{}, nil
}

func (outForDeliveryState) OnComplete(*Order) (OrderState, error) { return completedState{}, nil }

func (outForDeliveryState) OnCancel(*Order) (OrderState, error) { return cancelledState{}, nil }

type completedState struct{}

func (completedState) Status() Status { return StatusCompleted }

func (completedState) OnDispatch(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) OnComplete(*Order) (OrderState, error) { return completedState{}, nil }

func (completedState) OnCancel(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnDispatch(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnComplete(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCancel(*Order) (OrderState, error) { return cancelledState{}, nil }
