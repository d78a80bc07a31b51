package domain

// Reveal step ordinals. The sequence is a progress cursor over the
// post-grading presentation; it is never persisted beyond the round.
const (
	RevealStepSuspense = iota
	RevealStepMedia
	RevealStepQuestion
	RevealStepAnswers
	RevealStepCorrectAnswer
	RevealStepLeaderboardDelta
	RevealStepFullLeaderboard
	RevealStepDone
)

var revealStepNames = [...]string{
	"suspense",
	"media",
	"question",
	"answers",
	"correct-answer",
	"leaderboard-delta",
	"full-leaderboard",
	"done",
}

// RevealStepName maps a step cursor to its phase name. Out-of-range cursors
// report "done".
func RevealStepName(step int) string {
	if step < 0 {
		return revealStepNames[0]
	}
	if step >= len(revealStepNames) {
		return revealStepNames[RevealStepDone]
	}
	return revealStepNames[step]
}

// RevealComplete reports whether the sequence has shown everything that
// matters; the moderator sees a completion flag from the full-leaderboard
// step onward.
func RevealComplete(step int) bool {
	return step >= RevealStepFullLeaderboard
}
