package domain

import "github.com/pyrosafe/fieldops/internal/statemachine"

const (
	EventQuote    statemachine.Event = "quote"
	EventRelease  statemachine.Event = "release"
	EventApprove  statemachine.Event = "approve"
	EventStart    statemachine.Event = "start"
	EventComplete statemachine.Event = "complete"
)

var lifecycle = statemachine.New("deficiency",
	statemachine.State(StatusOpen),
	[]statemachine.State{statemachine.State(StatusCompleted)},
	[]statemachine.Transition{
		{From: statemachine.State(StatusOpen), Event: EventQuote, To: statemachine.State(StatusQuoted)},
		{From: statemachine.State(StatusQuoted), Event: EventRelease, To: statemachine.State(StatusOpen)},
		{From: statemachine.State(StatusQuoted), Event: EventApprove, To: statemachine.State(StatusApproved)},
		{From: statemachine.State(StatusApproved), Event: EventStart, To: statemachine.State(StatusInProgress)},
		{From: statemachine.State(StatusInProgress), Event: EventComplete, To: statemachine.State(StatusCompleted)},
	},
)

// Lifecycle returns the deficiency state machine.
func Lifecycle() *statemachine.Machine { return lifecycle }

var severityLabels = map[Severity]string{
	SeverityMinor:    "Minor",
	SeverityMajor:    "Major",
	SeverityCritical: "Critical",
}

var statusLabels = map[DeficiencyStatus]string{
	StatusOpen:       "Open",
	StatusQuoted:     "Quoted",
	StatusApproved:   "Approved",
	StatusInProgress: "In Progress",
	StatusCompleted:  "Completed",
}

func SeverityLabel(severity Severity) string {
	if label, ok := severityLabels[severity]; ok {
		return label
	}
	return string(severity)
}

func Label(status DeficiencyStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

func ValidSeverity(severity Severity) bool {
	_, ok := severityLabels[severity]
	return ok
}
