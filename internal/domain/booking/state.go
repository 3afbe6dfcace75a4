package booking

import (
	"fmt"
	"strings"

	"staykeeper/internal/domain/shared/errs"
)

// Status is the coarse lifecycle reported to guests and hosts.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusDispute   Status = "dispute"
)

// ParseStatus accepts a status filter; the empty string means any status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case "", StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusDispute:
		return s, nil
	}
	return "", errs.Validationf("booking: unknown status %q", raw)
}

// Stage tracks where the stay itself is.
type Stage string

const (
	StageAwaitingHost  Stage = "awaiting_host"
	StageAwaitingGuest Stage = "awaiting_guest"
	StageConfirmed     Stage = "confirmed"
	StageCheckedIn     Stage = "checked_in"
	StageCheckedOut    Stage = "checked_out"
)

// State enumerates every legal (status, stage) pair. Combinations that are not
// listed here cannot be represented by a Booking.
type State uint8

const (
	StateUnknown State = iota
	StateAwaitingHost
	StateConfirmed
	StateCheckedIn
	StateCompleted
	StateCancelledAwaitingHost
	StateCancelledConfirmed
	StateCancelledCheckedIn
	StateDisputeConfirmed
	StateDisputeCheckedIn
	StateDisputeCheckedOut
)

type statePair struct {
	status Status
	stage  Stage
}

var statePairs = map[State]statePair{
	StateAwaitingHost:          {StatusPending, StageAwaitingHost},
	StateConfirmed:             {StatusConfirmed, StageConfirmed},
	StateCheckedIn:             {StatusConfirmed, StageCheckedIn},
	StateCompleted:             {StatusCompleted, StageCheckedOut},
	StateCancelledAwaitingHost: {StatusCancelled, StageAwaitingHost},
	StateCancelledConfirmed:    {StatusCancelled, StageConfirmed},
	StateCancelledCheckedIn:    {StatusCancelled, StageCheckedIn},
	StateDisputeConfirmed:      {StatusDispute, StageConfirmed},
	StateDisputeCheckedIn:      {StatusDispute, StageCheckedIn},
	StateDisputeCheckedOut:     {StatusDispute, StageCheckedOut},
}

var pairStates = func() map[statePair]State {
	out := make(map[statePair]State, len(statePairs))
	for s, p := range statePairs {
		out[p] = s
	}
	return out
}()

// StateOf decodes a stored (status, stage) pair.
func StateOf(status Status, stage Stage) (State, error) {
	s, ok := pairStates[statePair{status, stage}]
	if !ok {
		return StateUnknown, errs.Validationf("booking: illegal state %s/%s", status, stage)
	}
	return s, nil
}

func (s State) Status() Status { return statePairs[s].status }
func (s State) Stage() Stage   { return statePairs[s].stage }

func (s State) String() string {
	p, ok := statePairs[s]
	if !ok {
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
	return string(p.status) + "/" + string(p.stage)
}

// Terminal states accept no further transitions from the engine.
func (s State) Terminal() bool {
	switch s.Status() {
	case StatusCancelled, StatusCompleted, StatusDispute:
		return true
	}
	return false
}

// Occupies reports whether a booking in this state blocks its dates.
func (s State) Occupies() bool {
	switch s.Status() {
	case StatusPending, StatusConfirmed:
		return true
	}
	return false
}

// OccupyingStatuses lists the statuses that block dates, for store queries.
func OccupyingStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed}
}

func cancelledFrom(s State) State {
	switch s {
	case StateAwaitingHost:
		return StateCancelledAwaitingHost
	case StateConfirmed:
		return StateCancelledConfirmed
	case StateCheckedIn:
		return StateCancelledCheckedIn
	}
	return StateUnknown
}
