package domain

import "github.com/pyrosafe/fieldops/internal/statemachine"

const (
	EventQuote             statemachine.Event = "quote"
	EventApprove           statemachine.Event = "approve"
	EventReady             statemachine.Event = "ready"
	EventSchedule          statemachine.Event = "schedule"
	EventStart             statemachine.Event = "start"
	EventRequestInspection statemachine.Event = "request_inspection"
	EventPassInspection    statemachine.Event = "pass_inspection"
	EventFailInspection    statemachine.Event = "fail_inspection"
	EventRework            statemachine.Event = "rework"
	EventComplete          statemachine.Event = "complete"
	EventHold              statemachine.Event = "hold"
	EventResume            statemachine.Event = "resume"
	EventInvoice           statemachine.Event = "invoice"
	EventPay               statemachine.Event = "pay"
	EventClose             statemachine.Event = "close"
	EventCancel            statemachine.Event = "cancel"
)

// activeStates are the states a hold can interrupt. Resume restores the
// interrupted state, which the transition table cannot express; the
// service resolves the resume target from the job's previous_status.
var activeStates = []JobStatus{
	StatusPending,
	StatusScheduled,
	StatusInProgress,
	StatusAwaitingInspection,
	StatusCorrectionsRequired,
}

func Holdable(status JobStatus) bool {
	for _, s := range activeStates {
		if s == status {
			return true
		}
	}
	return false
}

var nonTerminalStates = []JobStatus{
	StatusLead,
	StatusQuoted,
	StatusApproved,
	StatusPending,
	StatusScheduled,
	StatusInProgress,
	StatusAwaitingInspection,
	StatusCorrectionsRequired,
	StatusPassed,
	StatusOnHold,
	StatusCompleted,
	StatusInvoiced,
	StatusPaid,
}

func buildTransitions() []statemachine.Transition {
	transitions := []statemachine.Transition{
		{From: statemachine.State(StatusLead), Event: EventQuote, To: statemachine.State(StatusQuoted)},
		{From: statemachine.State(StatusQuoted), Event: EventApprove, To: statemachine.State(StatusApproved)},
		{From: statemachine.State(StatusApproved), Event: EventReady, To: statemachine.State(StatusPending)},
		{From: statemachine.State(StatusPending), Event: EventSchedule, To: statemachine.State(StatusScheduled)},
		{From: statemachine.State(StatusScheduled), Event: EventStart, To: statemachine.State(StatusInProgress)},
		{From: statemachine.State(StatusInProgress), Event: EventRequestInspection, To: statemachine.State(StatusAwaitingInspection)},
		{From: statemachine.State(StatusAwaitingInspection), Event: EventPassInspection, To: statemachine.State(StatusPassed)},
		{From: statemachine.State(StatusAwaitingInspection), Event: EventFailInspection, To: statemachine.State(StatusCorrectionsRequired)},
		{From: statemachine.State(StatusCorrectionsRequired), Event: EventRework, To: statemachine.State(StatusInProgress)},
		{From: statemachine.State(StatusInProgress), Event: EventComplete, To: statemachine.State(StatusCompleted)},
		{From: statemachine.State(StatusPassed), Event: EventComplete, To: statemachine.State(StatusCompleted)},
		{From: statemachine.State(StatusCompleted), Event: EventInvoice, To: statemachine.State(StatusInvoiced)},
		{From: statemachine.State(StatusInvoiced), Event: EventPay, To: statemachine.State(StatusPaid)},
		{From: statemachine.State(StatusPaid), Event: EventClose, To: statemachine.State(StatusClosed)},
	}
	for _, s := range activeStates {
		transitions = append(transitions, statemachine.Transition{
			From: statemachine.State(s), Event: EventHold, To: statemachine.State(StatusOnHold),
		})
	}
	for _, s := range nonTerminalStates {
		transitions = append(transitions, statemachine.Transition{
			From: statemachine.State(s), Event: EventCancel, To: statemachine.State(StatusCancelled),
		})
	}
	return transitions
}

var lifecycle = statemachine.New("job",
	statemachine.State(StatusLead),
	[]statemachine.State{
		statemachine.State(StatusClosed),
		statemachine.State(StatusCancelled),
	},
	buildTransitions(),
)

// Lifecycle returns the job state machine. Resume is intentionally not
// in the table; see Service.Transition.
func Lifecycle() *statemachine.Machine { return lifecycle }

var statusLabels = map[JobStatus]string{
	StatusLead:                "Lead",
	StatusQuoted:              "Quoted",
	StatusApproved:            "Approved",
	StatusPending:             "Pending",
	StatusScheduled:           "Scheduled",
	StatusInProgress:          "In Progress",
	StatusAwaitingInspection:  "Awaiting Inspection",
	StatusCorrectionsRequired: "Corrections Required",
	StatusPassed:              "Inspection Passed",
	StatusOnHold:              "On Hold",
	StatusCompleted:           "Completed",
	StatusInvoiced:            "Invoiced",
	StatusPaid:                "Paid",
	StatusClosed:              "Closed",
	StatusCancelled:           "Cancelled",
}

func Label(status JobStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}
