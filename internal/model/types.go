// Package model defines shared data structures.
package model

import "time"

// Config defines practice settings.
type Config struct {
	Words         int
	MaxAttempts   int
	ListenTimeout time.Duration
	FocusWeak     bool
	WeakTop       int
	WeakFactor    float64
	WeakWindow    int
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Since       *time.Time
	Last        int
	CurveWindow int
}

// SoundCategory groups example words sharing one phonetic sound.
type SoundCategory struct {
	Sound        string
	Hint         string
	ExampleWords []string
}

// WordKind tells where a word record came from.
type WordKind string

// Word record kinds.
const (
	KindPronunciation WordKind = "pronunciation"
	KindGeneral       WordKind = "general"
	KindStutter       WordKind = "stutter"
	KindPractice      WordKind = "practice"
)

// WordRecord is a word scheduled for practice.
type WordRecord struct {
	Word  string   `json:"word"`
	Sound string   `json:"sound"`
	Hint  string   `json:"pronunciationHint"`
	Kind  WordKind `json:"type"`
}

// ItemStatus is the classification of one transcript word.
type ItemStatus int

// Transcript item statuses.
const (
	StatusNeutral ItemStatus = iota
	StatusCorrect
	StatusIncorrect
	StatusStutter
	StatusInterim
)

// String returns the lowercase status name.
func (s ItemStatus) String() string {
	switch s {
	case StatusNeutral:
		return "neutral"
	case StatusCorrect:
		return "correct"
	case StatusIncorrect:
		return "incorrect"
	case StatusStutter:
		return "stutter"
	case StatusInterim:
		return "interim"
	default:
		return "unknown"
	}
}

// TranscriptItem is one word of the running transcript.
type TranscriptItem struct {
	Word   string
	Status ItemStatus
}

// AttemptResult records how one drilled word went.
type AttemptResult struct {
	Word           string `json:"word"`
	Sound          string `json:"sound"`
	AttemptsNeeded int    `json:"attemptsNeeded"`
	Spoken         bool   `json:"hasSpoken"`
}

// SessionSummary aggregates a completed drilling session.
type SessionSummary struct {
	TotalWords   int
	PerfectWords int
	SuccessRate  float64
	Results      []AttemptResult
	Plan         *PracticePlan
}

// PracticePlan is a multi-day review schedule.
type PracticePlan struct {
	Days     int       `json:"days"`
	Schedule []DayPlan `json:"schedule"`
}

// DayPlan lists the sounds to review on one day.
type DayPlan struct {
	Day    int          `json:"day"`
	Sounds []SoundWords `json:"sounds"`
}

// SoundWords groups review words under their sound.
type SoundWords struct {
	Sound string   `json:"sound"`
	Words []string `json:"words"`
}

// StoredPlan is the persisted current plan.
type StoredPlan struct {
	PracticePlan
	StartDate time.Time `json:"startDate"`
}

// SessionSnapshot is the persisted state of the last drilling session.
type SessionSnapshot struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	WordList     []WordRecord    `json:"difficultList"`
	CurrentIndex int             `json:"currentWordIndex"`
	Results      []AttemptResult `json:"results"`
	Completed    bool            `json:"completed"`
}

// DrillStats captures a completed drilling session for history.
type DrillStats struct {
	SessionID    string
	StartedAt    time.Time
	EndedAt      time.Time
	TotalWords   int
	PerfectWords int
	SuccessRate  float64
}

// DrillAggregate summarizes a stored drill for reporting.
type DrillAggregate struct {
	DrillID      int64
	EndedAt      time.Time
	TotalWords   int
	PerfectWords int
	SuccessRate  float64
}

// SoundAggregate aggregates attempt stats per sound across drills.
type SoundAggregate struct {
	Sound    string
	Words    int
	Perfect  int
	Attempts int
	Unspoken int
}
