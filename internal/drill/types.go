package drill

import (
	"github.com/verte-zerg/pronounce/internal/model"
	"github.com/verte-zerg/pronounce/internal/similarity"
)

// State is the session-level state.
type State int

// Session states.
const (
	StateIdle State = iota
	StateActive
	StateComplete
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Phase is the step of the word being drilled.
type Phase int

// Word phases.
const (
	PhasePresenting Phase = iota
	PhasePlaying
	PhaseListening
	PhaseJudging
	PhaseRetry
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhasePresenting:
		return "presenting"
	case PhasePlaying:
		return "playing"
	case PhaseListening:
		return "listening"
	case PhaseJudging:
		return "judging"
	case PhaseRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Feedback describes one judged attempt.
type Feedback struct {
	Transcript string
	Score      float64
	Matched    bool
	Grade      similarity.Grade
	// SoundsAlike is set when a missed attempt shares a phonetic code with
	// the target, which usually means a homophone was recognized.
	SoundsAlike bool
	// TimedOut is set when the attempt was silence.
	TimedOut bool
	// Attempt is the 1-based number of this attempt.
	Attempt int
	// Remaining is the number of attempts left after a miss.
	Remaining int
}

// Message returns the user-facing feedback text.
func (f Feedback) Message() string {
	if f.TimedOut {
		return "No speech detected. Try again."
	}
	if f.SoundsAlike && !f.Matched {
		return f.Grade.Message() + " That sounded like a homophone; stress the target sound."
	}
	return f.Grade.Message()
}

// NoticeKind identifies an Engine notification.
type NoticeKind int

// Engine notification kinds.
const (
	NoticeState NoticeKind = iota
	NoticeWord
	NoticePhase
	NoticeFeedback
	NoticeRecorded
	NoticeTimeout
	NoticeError
	NoticeCompleted
)

// Notice is published to Engine subscribers. Only the fields relevant to
// Kind are set.
type Notice struct {
	Kind     NoticeKind
	State    State
	Phase    Phase
	Index    int
	Total    int
	Word     model.WordRecord
	Feedback *Feedback
	Result   *model.AttemptResult
	Summary  *model.SessionSummary
	Message  string
}
