package domain

import "github.com/pyrosafe/fieldops/internal/statemachine"

const (
	EventSend    statemachine.Event = "send"
	EventView    statemachine.Event = "view"
	EventAccept  statemachine.Event = "accept"
	EventDecline statemachine.Event = "decline"
	EventExpire  statemachine.Event = "expire"
)

// Acceptance and decline are legal from both sent and viewed: a customer
// can respond to an emailed quote without the portal ever recording a view.
var lifecycle = statemachine.New("quote",
	statemachine.State(StatusDraft),
	[]statemachine.State{
		statemachine.State(StatusAccepted),
		statemachine.State(StatusDeclined),
		statemachine.State(StatusExpired),
	},
	[]statemachine.Transition{
		{From: statemachine.State(StatusDraft), Event: EventSend, To: statemachine.State(StatusSent)},
		{From: statemachine.State(StatusSent), Event: EventView, To: statemachine.State(StatusViewed)},
		{From: statemachine.State(StatusSent), Event: EventAccept, To: statemachine.State(StatusAccepted)},
		{From: statemachine.State(StatusViewed), Event: EventAccept, To: statemachine.State(StatusAccepted)},
		{From: statemachine.State(StatusSent), Event: EventDecline, To: statemachine.State(StatusDeclined)},
		{From: statemachine.State(StatusViewed), Event: EventDecline, To: statemachine.State(StatusDeclined)},
		{From: statemachine.State(StatusSent), Event: EventExpire, To: statemachine.State(StatusExpired)},
		{From: statemachine.State(StatusViewed), Event: EventExpire, To: statemachine.State(StatusExpired)},
	},
)

// Lifecycle returns the quote state machine.
func Lifecycle() *statemachine.Machine { return lifecycle }

var statusLabels = map[QuoteStatus]string{
	StatusDraft:    "Draft",
	StatusSent:     "Sent",
	StatusViewed:   "Viewed",
	StatusAccepted: "Accepted",
	StatusDeclined: "Declined",
	StatusExpired:  "Expired",
}

func Label(status QuoteStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}
