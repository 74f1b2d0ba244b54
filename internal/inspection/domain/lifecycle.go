package domain

import "github.com/pyrosafe/fieldops/internal/statemachine"

const (
	EventStart    statemachine.Event = "start"
	EventComplete statemachine.Event = "complete"
	EventCancel   statemachine.Event = "cancel"
)

var lifecycle = statemachine.New("inspection",
	statemachine.State(StatusScheduled),
	[]statemachine.State{
		statemachine.State(StatusCompleted),
		statemachine.State(StatusCancelled),
	},
	[]statemachine.Transition{
		{From: statemachine.State(StatusScheduled), Event: EventStart, To: statemachine.State(StatusInProgress)},
		{From: statemachine.State(StatusInProgress), Event: EventComplete, To: statemachine.State(StatusCompleted)},
		{From: statemachine.State(StatusScheduled), Event: EventCancel, To: statemachine.State(StatusCancelled)},
		{From: statemachine.State(StatusInProgress), Event: EventCancel, To: statemachine.State(StatusCancelled)},
	},
)

// Lifecycle returns the inspection state machine.
func Lifecycle() *statemachine.Machine { return lifecycle }

var statusLabels = map[InspectionStatus]string{
	StatusScheduled:  "Scheduled",
	StatusInProgress: "In Progress",
	StatusCompleted:  "Completed",
	StatusCancelled:  "Cancelled",
}

// Label returns the presentation label for a status. Consumers derive
// labels from state instead of re-declaring them.
func Label(status InspectionStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}
