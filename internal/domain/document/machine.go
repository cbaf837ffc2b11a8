package document

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// Workflow event names. Restore is special-cased: its destination is the
// state recorded when the document was made obsolete, which fsm event tables
// cannot express statically.
const (
	EventRelease       = "release"
	EventStartRevision = "start_revision"
	EventApprove       = "approve"
	EventCancel        = "cancel"
	EventObsolete      = "obsolete"
	EventRestore       = "restore"
)

func newWorkflow(current State) *fsm.FSM {
	return fsm.NewFSM(
		string(current),
		fsm.Events{
			{Name: EventRelease, Src: []string{string(StateWIP)}, Dst: string(StateReleased)},
			{Name: EventStartRevision, Src: []string{string(StateReleased)}, Dst: string(StateInRevision)},
			{Name: EventApprove, Src: []string{string(StateInRevision)}, Dst: string(StateReleased)},
			{Name: EventCancel, Src: []string{string(StateInRevision)}, Dst: string(StateReleased)},
			{Name: EventObsolete, Src: []string{string(StateWIP), string(StateReleased), string(StateInRevision)}, Dst: string(StateObsolete)},
		},
		fsm.Callbacks{},
	)
}

// transition validates that event is legal from the document's current state
// and returns the destination state. The document itself is not mutated;
// callers commit the new state only after dependent steps succeed.
func transition(ctx context.Context, doc *Document, event string) (State, error) {
	if event == EventRestore {
		if doc.State != StateObsolete {
			return "", fmt.Errorf("%w: %s requires state %s, document %s is %s",
				ErrInvalidTransition, event, StateObsolete, doc.Code, doc.State)
		}
		return restoreTarget(doc), nil
	}

	m := newWorkflow(doc.State)
	if err := m.Event(ctx, event); err != nil {
		return "", fmt.Errorf("%w: %s from state %s: %v", ErrInvalidTransition, event, doc.State, err)
	}
	return State(m.Current()), nil
}

// restoreTarget returns the state a restore returns to: the recorded prior
// state when available, otherwise Released if a released file exists, else WIP.
func restoreTarget(doc *Document) State {
	switch doc.ObsPrev {
	case StateWIP, StateReleased, StateInRevision:
		return doc.ObsPrev
	}
	if doc.ModelPath != "" {
		return StateReleased
	}
	return StateWIP
}
