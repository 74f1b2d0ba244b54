package domain

import "github.com/pyrosafe/fieldops/internal/statemachine"

const (
	EventSend          statemachine.Event = "send"
	EventView          statemachine.Event = "view"
	EventRecordPartial statemachine.Event = "record_partial"
	EventSettle        statemachine.Event = "settle"
	EventCancel        statemachine.Event = "cancel"
	EventRefund        statemachine.Event = "refund"
)

// payableStates are the states that accept a payment. The settle and
// record_partial events are derived from amount_paid by the service,
// never requested directly by callers.
var payableStates = []InvoiceStatus{
	StatusDraft,
	StatusSent,
	StatusViewed,
	StatusPartial,
}

func Payable(status InvoiceStatus) bool {
	for _, s := range payableStates {
		if s == status {
			return true
		}
	}
	return false
}

func buildTransitions() []statemachine.Transition {
	transitions := []statemachine.Transition{
		{From: statemachine.State(StatusDraft), Event: EventSend, To: statemachine.State(StatusSent)},
		// Resending an already-sent invoice is a no-op transition.
		{From: statemachine.State(StatusSent), Event: EventSend, To: statemachine.State(StatusSent)},
		{From: statemachine.State(StatusSent), Event: EventView, To: statemachine.State(StatusViewed)},
		{From: statemachine.State(StatusPaid), Event: EventRefund, To: statemachine.State(StatusRefunded)},
	}
	for _, s := range payableStates {
		transitions = append(transitions,
			statemachine.Transition{From: statemachine.State(s), Event: EventRecordPartial, To: statemachine.State(StatusPartial)},
			statemachine.Transition{From: statemachine.State(s), Event: EventSettle, To: statemachine.State(StatusPaid)},
			statemachine.Transition{From: statemachine.State(s), Event: EventCancel, To: statemachine.State(StatusCancelled)},
		)
	}
	return transitions
}

var lifecycle = statemachine.New("invoice",
	statemachine.State(StatusDraft),
	[]statemachine.State{
		statemachine.State(StatusCancelled),
		statemachine.State(StatusRefunded),
	},
	buildTransitions(),
)

// Lifecycle returns the invoice state machine.
func Lifecycle() *statemachine.Machine { return lifecycle }

var statusLabels = map[InvoiceStatus]string{
	StatusDraft:     "Draft",
	StatusSent:      "Sent",
	StatusViewed:    "Viewed",
	StatusPartial:   "Partially Paid",
	StatusPaid:      "Paid",
	StatusCancelled: "Cancelled",
	StatusRefunded:  "Refunded",
}

func Label(status InvoiceStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}
