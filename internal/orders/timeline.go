package orders

import "storefront-service/internal/domain"

// StepState is how a tracking step is drawn.
type StepState string

const (
	StepDone     StepState = "done"
	StepCurrent  StepState = "current"
	StepUpcoming StepState = "upcoming"
)

type Step struct {
	Status domain.OrderStatus `json:"status"`
	Label  string             `json:"label"`
	State  StepState          `json:"state"`
}

// Timeline is the four-step tracking bar of an order.
type Timeline struct {
	Steps     []Step `json:"steps"`
	Cancelled bool   `json:"cancelled"`
}

var trackingSteps = []struct {
	status domain.OrderStatus
	label  string
}{
	{domain.OrderPending, "Order Placed"},
	{domain.OrderConfirmed, "Confirmed"},
	{domain.OrderShipped, "Shipped"},
	{domain.OrderDelivered, "Delivered"},
}

// TimelineFor builds the tracking steps for status. A delivered order has
// every step done; a cancelled one has no current step.
func TimelineFor(status domain.OrderStatus) Timeline {
	current := -1
	for i, st := range trackingSteps {
		if st.status == status {
			current = i
		}
	}

	t := Timeline{Steps: make([]Step, len(trackingSteps)), Cancelled: status == domain.OrderCancelled}
	for i, st := range trackingSteps {
		state := StepUpcoming
		switch {
		case current < 0:
		case i < current, status == domain.OrderDelivered:
			state = StepDone
		case i == current:
			state = StepCurrent
		}
		t.Steps[i] = Step{Status: st.status, Label: st.label, State: state}
	}
	return t
}
