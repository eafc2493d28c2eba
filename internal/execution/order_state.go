package execution

import (
	"fmt"

	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/model"
)

// OrderState is the lifecycle position of one order decision.
type OrderState string

const (
	StateValidating  OrderState = "validating"
	StateDispatching OrderState = "dispatching"
	StateFilled      OrderState = "filled"
	StateRejected    OrderState = "rejected"
	StateErrored     OrderState = "errored"
)

func (s OrderState) Terminal() bool {
	return s == StateFilled || s == StateRejected || s == StateErrored
}

var terminalStatus = map[OrderState]model.OrderStatus{
	StateFilled:   model.OrderStatusFilled,
	StateRejected: model.OrderStatusRejected,
	StateErrored:  model.OrderStatusErrored,
}

var transitions = map[OrderState][]OrderState{
	StateValidating:  {StateDispatching, StateRejected, StateErrored},
	StateDispatching: {StateFilled, StateErrored},
}

// OrderTracker enforces Validating -> Dispatching -> {Filled, Rejected, Errored}.
type OrderTracker struct {
	state OrderState
}

func NewOrderTracker() *OrderTracker {
	return &OrderTracker{state: StateValidating}
}

func (t *OrderTracker) State() OrderState { return t.state }

// Status is the recorded status of a finished order, "" while in flight.
func (t *OrderTracker) Status() model.OrderStatus { return terminalStatus[t.state] }

func (t *OrderTracker) Transition(to OrderState) error {
	if t.state.Terminal() {
		return fmt.Errorf("%w: %s -> %s", domain.ErrOrderTerminal, t.state, to)
	}
	for _, allowed := range transitions[t.state] {
		if allowed == to {
			t.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal order transition %s -> %s", t.state, to)
}
