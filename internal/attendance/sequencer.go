package attendance

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Transition is an accepted state change produced by the sequencer.
type Transition struct {
	Type EventType
	// DurationHours is set on check-out when the paired check-in was found.
	DurationHours *float64
	// CheckInAt is the timestamp of the paired check-in, zero otherwise.
	CheckInAt time.Time
}

// Sequencer derives the next attendance event type for an identity and
// enforces the alternation invariant: check-ins and check-outs for one
// identity must strictly alternate, starting with a check-in.
//
// The sequencer is pure computation; it never persists. Callers must hold
// the identity's serialization lock (see IdentityLocker) across the
// read-last-event / Next / append sequence, otherwise two concurrent
// requests can both observe the same last event and both be accepted.
type Sequencer struct{}

// NewSequencer creates a sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next computes the transition for an identity given its most recent event
// (nil for a never-seen identity, i.e. the OUT state). When requestedType
// is non-empty it overrides the derived type but is still validated
// against the invariant; two consecutive events of the same type are
// rejected as a hard integrity rule.
//
// On check-out the duration since lastCheckIn is computed; callers pass
// the nearest prior check-in, which is normally the last event itself. A
// missing check-in is a recoverable data-quality condition: the check-out
// is accepted with no duration.
func (s *Sequencer) Next(lastEvent *AttendanceEvent, lastCheckIn *AttendanceEvent, requestedType EventType, now time.Time) (Transition, error) {
	lastType := CheckOut // OUT state for an identity with no events
	if lastEvent != nil {
		lastType = lastEvent.Type
	}

	next := lastType.Complement()
	if requestedType != "" {
		if !requestedType.Valid() {
			return Transition{}, goerr.Wrap(ErrSequence, "unknown attendance type",
				goerr.V("attempted_type", string(requestedType)))
		}
		next = requestedType
	}

	if next == lastType {
		return Transition{}, goerr.Wrap(ErrSequence, "event type repeats current state",
			goerr.V("current_state", string(lastType)),
			goerr.V("attempted_type", string(next)))
	}

	t := Transition{Type: next}
	if next == CheckOut && lastCheckIn != nil && lastCheckIn.Type == CheckIn {
		hours := now.Sub(lastCheckIn.Timestamp).Hours()
		t.DurationHours = &hours
		t.CheckInAt = lastCheckIn.Timestamp
	}
	return t, nil
}
