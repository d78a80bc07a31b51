package domain

import "time"

// State is the lifecycle state of one competition round.
type State string

const (
	StateIdle           State = "IDLE"
	StateQuestionActive State = "QUESTION_ACTIVE"
	StateLocked         State = "LOCKED"
	StateGrading        State = "GRADING"
	StateReveal         State = "REVEAL"
)

// QuestionKind distinguishes auto-graded from adjudicated questions.
type QuestionKind string

const (
	ClosedForm QuestionKind = "CLOSED_FORM"
	OpenForm   QuestionKind = "OPEN_FORM"
)

// ContestantStatus tracks connectivity for a contestant.
type ContestantStatus string

const (
	StatusOnline       ContestantStatus = "ONLINE"
	StatusOffline      ContestantStatus = "OFFLINE"
	StatusDisqualified ContestantStatus = "DISQUALIFIED"
)

// RevealMode selects how the post-grading reveal sequence advances.
type RevealMode string

const (
	RevealAuto   RevealMode = "AUTO"
	RevealManual RevealMode = "MANUAL"
)

// Question is immutable once a round starts. Index/Total are the ordinal
// position within the active question set, computed at start time.
type Question struct {
	ID           string       `json:"id"`
	Prompt       string       `json:"prompt"`
	MediaURL     string       `json:"mediaUrl,omitempty"`
	Kind         QuestionKind `json:"kind"`
	Choices      []string     `json:"choices,omitempty"`
	AcceptedKeys []string     `json:"acceptedKeys,omitempty"`
	Points       int          `json:"points"`
	Duration     int          `json:"duration"` // seconds
	Category     string       `json:"category,omitempty"`
	Index        int          `json:"index"`
	Total        int          `json:"total"`
}

// CanonicalAnswer is the single accepted answer shown during reveal.
func (q Question) CanonicalAnswer() string {
	if len(q.AcceptedKeys) == 0 {
		return ""
	}
	return q.AcceptedKeys[0]
}

// Contestant is a registered player identified by table number.
type Contestant struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	TableNo   int              `json:"tableNo"`
	Score     int              `json:"score"`
	Status    ContestantStatus `json:"status"`
	SessionID string           `json:"-"`
}

// Answer is one contestant's submission for one question. Correct and Points
// stay nil until graded. An empty Text represents "no submission".
type Answer struct {
	ID             string `json:"id"`
	QuestionID     string `json:"questionId"`
	ContestantID   string `json:"contestantId"`
	ContestantName string `json:"contestantName"`
	TableNo        int    `json:"tableNo"`
	Text           string `json:"text"`
	TimeRemaining  int    `json:"timeRemaining"`
	Correct        *bool  `json:"correct"`
	Points         *int   `json:"points"`
}

// AnswerGroups is the advisory pre-adjudication partition of open-form
// answers. Every answer lands in exactly one group.
type AnswerGroups struct {
	Correct   []Answer `json:"correct"`
	Incorrect []Answer `json:"incorrect"`
	Empty     []Answer `json:"empty"`
}

// LeaderboardEntry is an ordered scoreboard row: score descending, name
// ascending on ties.
type LeaderboardEntry struct {
	ContestantID string `json:"contestantId"`
	Name         string `json:"name"`
	TableNo      int    `json:"tableNo"`
	Score        int    `json:"score"`
}

// Competition is the externally managed competition record.
type Competition struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Snapshot is the externally visible state of one competition's game engine.
type Snapshot struct {
	CompetitionID string    `json:"competitionId"`
	State         State     `json:"state"`
	Question      *Question `json:"currentQuestion"`
	TimeRemaining int       `json:"timeRemaining"`
	Answered      []string  `json:"answeredContestants"`
	RevealStep    int       `json:"revealStep"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
