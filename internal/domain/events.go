package domain

import "time"

// Audience is one of the four broadcast scopes a client connects as.
type Audience string

const (
	AudienceModerator   Audience = "moderator"
	AudienceContestant  Audience = "contestant"
	AudienceAdjudicator Audience = "adjudicator"
	AudienceSpectator   Audience = "spectator"
)

// Audiences lists every broadcast scope, in routing order.
var Audiences = []Audience{
	AudienceModerator,
	AudienceContestant,
	AudienceAdjudicator,
	AudienceSpectator,
}

// Event is one outbound message routed to an audience scope.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Outbound event types. One domain occurrence may fan out as several events
// with audience-specific payload shapes.
const (
	EventStateChanged       = "state-changed"
	EventQuestionStarted    = "question-started"
	EventCountdownTick      = "countdown-tick"
	EventSubmissionStatus   = "submission-status"
	EventReviewData         = "review-data"
	EventGradingStatus      = "grading-status"
	EventResults            = "results"
	EventRevealStepUpdate   = "reveal-step-update"
	EventCompetitionReset   = "competition-reset"
	EventContestantsUpdated = "contestants-updated"
	EventLeaderboardUpdated = "leaderboard-updated"
	EventQuote              = "quote"
	EventInit               = "init"
	EventHeartbeatAck       = "heartbeat-ack"
)

// MaskedQuestion is the spectator view of an active question: no prompt, no
// choices, just enough to build suspense on the big screen.
type MaskedQuestion struct {
	Category string `json:"category"`
	Points   int    `json:"points"`
	Duration int    `json:"duration"`
	Quote    string `json:"quote,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
}

// CountdownTick synchronizes the authoritative countdown to every client.
type CountdownTick struct {
	TimeRemaining int       `json:"timeRemaining"`
	ServerTime    time.Time `json:"serverTime"`
}

// SubmissionStatus flags a contestant as having answered, without revealing
// content.
type SubmissionStatus struct {
	ContestantID string `json:"contestantId"`
	Status       string `json:"status"`
}

// ReviewData is the adjudicator-only grading worksheet for an open-form round.
type ReviewData struct {
	QuestionID   string       `json:"questionId"`
	Prompt       string       `json:"prompt"`
	AcceptedKeys []string     `json:"acceptedKeys"`
	Points       int          `json:"points"`
	Groups       AnswerGroups `json:"groups"`
}

// GradingStatus is the human-readable phase message shown to spectators while
// adjudication runs.
type GradingStatus struct {
	Message string `json:"message"`
}

// ResultQuestion is the question content included in the results payload.
type ResultQuestion struct {
	Prompt        string `json:"prompt"`
	CorrectAnswer string `json:"correctAnswer"`
	Points        int    `json:"points"`
	MediaURL      string `json:"mediaUrl,omitempty"`
}

// Results carries the full reveal payload to every audience.
type Results struct {
	Question    ResultQuestion     `json:"question"`
	Answers     []Answer           `json:"answers"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Mode        RevealMode         `json:"mode"`
}

// RevealStepIndex is the spectator view of reveal progress.
type RevealStepIndex struct {
	Step int `json:"step"`
}

// RevealStepStatus is the moderator view of reveal progress.
type RevealStepStatus struct {
	Step int    `json:"step"`
	Name string `json:"name"`
	Done bool   `json:"done"`
}

// Quote wraps a rotating motivational quote for the spectator screen.
type Quote struct {
	Text string `json:"text"`
}
