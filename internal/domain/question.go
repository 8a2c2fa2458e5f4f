package domain

import "time"

// QuestionKind discriminates the response/answer union. Each kind has its
// own comparator in the scoring package.
type QuestionKind string

const (
	SingleChoice QuestionKind = "single_choice"
	MultiChoice  QuestionKind = "multi_choice"
	FreeText     QuestionKind = "free_text"
)

// Option represents a selectable answer for a choice question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is one pool item. For choice kinds the accepted answer is the
// set of options flagged Correct; for free text it is AcceptedTexts.
type Question struct {
	ID            string       `json:"id"`
	TopicID       string       `json:"topicId"`
	Kind          QuestionKind `json:"kind"`
	Prompt        string       `json:"prompt"`
	Options       []Option     `json:"options,omitempty"`
	AcceptedTexts []string     `json:"acceptedTexts,omitempty"`
	Points        int          `json:"points"` // defaults to 1 if zero
	Active        bool         `json:"active"`
	Reviewed      bool         `json:"reviewed"`
}

// MaxPoints returns the score awarded for a correct answer.
func (q Question) MaxPoints() int {
	if q.Points > 0 {
		return q.Points
	}
	return 1
}

// AcceptedValue returns the canonical correct answer for feedback display.
// The boolean is false when the question carries no answer key at all.
func (q Question) AcceptedValue() (ResponseValue, bool) {
	switch q.Kind {
	case FreeText:
		if len(q.AcceptedTexts) == 0 {
			return ResponseValue{}, false
		}
		return ResponseValue{Kind: FreeText, Text: q.AcceptedTexts[0]}, true
	case SingleChoice, MultiChoice:
		ids := q.CorrectOptionIDs()
		if len(ids) == 0 {
			return ResponseValue{}, false
		}
		return ResponseValue{Kind: q.Kind, OptionIDs: ids}, true
	}
	return ResponseValue{}, false
}

// CorrectOptionIDs lists the options flagged correct, in declaration order.
func (q Question) CorrectOptionIDs() []string {
	var ids []string
	for _, opt := range q.Options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// ResponseValue is the tagged union a learner submits. Exactly one of the
// payload fields is meaningful depending on Kind.
type ResponseValue struct {
	Kind      QuestionKind `json:"kind"`
	Text      string       `json:"text,omitempty"`
	OptionIDs []string     `json:"optionIds,omitempty"`
}

// PoolFilter narrows Question Pool lookups.
type PoolFilter struct {
	Active   bool
	Reviewed bool
	TopicIDs []string
}

// QuestionOutcome is what a submit call reports back for one question.
type QuestionOutcome struct {
	ResponseID    string         `json:"responseId"`
	Correct       bool           `json:"correct"`
	Score         int            `json:"score"`
	MaxScore      int            `json:"maxScore"`
	Accepted      *ResponseValue `json:"accepted,omitempty"`
	CurrentStreak int            `json:"currentStreak"`
	LongestStreak int            `json:"longestStreak"`
	LivesLeft     *int           `json:"livesRemaining,omitempty"`
	SessionEnded  bool           `json:"sessionEnded"`
	EndReason     string         `json:"endReason,omitempty"`
}

// Response is the learner's literal submission, append-only.
type Response struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"sessionId"`
	QuestionID  string        `json:"questionId"`
	LearnerID   string        `json:"learnerId"`
	Value       ResponseValue `json:"value"`
	FreeText    string        `json:"freeText,omitempty"`
	Correct     bool          `json:"correct"`
	Score       int           `json:"score"`
	MaxScore    int           `json:"maxScore"`
	StartedAt   time.Time     `json:"startedAt"`
	SubmittedAt time.Time     `json:"submittedAt"`
	DurationMs  int64         `json:"durationMs"`
	HintsUsed   int           `json:"hintsUsed"`
	Confidence  int           `json:"confidence,omitempty"` // 1..5, 0 = not reported
}
