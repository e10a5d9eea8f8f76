package domain

import "time"

// Question is a normalized multiple-choice question.
// CorrectOptionIndex always indexes into Options.
type Question struct {
	ID                 int      `json:"id"`
	Text               string   `json:"question"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctAnswer"`
	Explanation        string   `json:"explanation"`
}

// CacheRecord is the persisted question set plus the time it was fetched.
type CacheRecord struct {
	Questions        []Question
	FetchedAtEpochMs int64
}

// Age reports how old the record is relative to now.
func (r CacheRecord) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-r.FetchedAtEpochMs) * time.Millisecond
}

// RawQuestion mirrors one entry of the trivia API results array.
type RawQuestion struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// QuestionBatch is the decoded body of a question-list request.
type QuestionBatch struct {
	ResponseCode int           `json:"response_code"`
	Results      []RawQuestion `json:"results"`
}

// QuestionQuery parameterizes a question-list request.
type QuestionQuery struct {
	Amount     int
	Category   int
	Difficulty string
	Type       string
}

// Trivia API response codes.
const (
	ResponseSuccess          = 0
	ResponseNoResults        = 1
	ResponseInvalidParameter = 2
	ResponseTokenNotFound    = 3
	ResponseTokenEmpty       = 4
	ResponseRateLimit        = 5
)

var responseMessages = map[int]string{
	ResponseNoResults:        "No questions available for the selected category.",
	ResponseInvalidParameter: "Invalid parameters in API request.",
	ResponseTokenNotFound:    "Session token not found. Fetching new token.",
	ResponseTokenEmpty:       "Session token exhausted. Resetting token.",
	ResponseRateLimit:        "Rate limit exceeded. Please try again later.",
}

// ResponseMessage returns the user-facing message for a non-zero response code.
func ResponseMessage(code int) string {
	if msg, ok := responseMessages[code]; ok {
		return msg
	}
	return "Unknown API error."
}

// Phase is the quiz session lifecycle state.
type Phase string

const (
	PhaseNotStarted     Phase = "notStarted"
	PhaseActive         Phase = "active"
	PhaseAwaitingSubmit Phase = "awaitingSubmit"
	PhaseShowingResult  Phase = "showingResult"
	PhaseCompleted      Phase = "completed"
)

// QuizState is a read-only snapshot of a quiz session.
type QuizState struct {
	SessionID       string     `json:"sessionId"`
	Questions       []Question `json:"questions"`
	CurrentIndex    int        `json:"currentIndex"`
	SelectedOption  *int       `json:"selectedOption"`
	Score           int        `json:"score"`
	TimeRemaining   int        `json:"timeRemaining"`
	Phase           Phase      `json:"phase"`
	Loading         bool       `json:"loading"`
	Error           string     `json:"error,omitempty"`
	ShowExplanation bool       `json:"showExplanation"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// CurrentQuestion returns the question at CurrentIndex, if any.
func (s QuizState) CurrentQuestion() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// ScoreReport is the final result handed to the email collaborator.
type ScoreReport struct {
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Percentage int       `json:"percentage"`
	ToEmail    string    `json:"to_email,omitempty"`
	SentAt     time.Time `json:"date"`
}

// Percentage rounds score/total to a whole percent; zero totals yield 0.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return (score*200 + total) / (2 * total)
}
