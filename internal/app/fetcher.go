package app

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"trivia-quiz/internal/domain"
)

const (
	defaultCacheDuration  = 24 * time.Hour
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 3 * time.Second

	noExplanation = "No explanation provided by the API."

	msgAPIUnavailable   = "API unavailable. Using mock data."
	msgRetriesExhausted = "Failed to load API questions after multiple attempts. Using mock data."
)

// QuestionSource calls the trivia question-list endpoint.
// Non-OK HTTP statuses are reported as *domain.StatusError.
type QuestionSource interface {
	Questions(ctx context.Context, query domain.QuestionQuery, token string) (domain.QuestionBatch, error)
}

// Outcome tags how a fetch terminated.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFallback Outcome = "fallback"
	OutcomeError    Outcome = "error"
)

// Source names where delivered questions came from.
type Source string

const (
	SourceCache   Source = "cache"
	SourceNetwork Source = "network"
	SourceMock    Source = "mock"
)

// FetchResult is the terminal result of one Fetch call. Fallback and Error
// results still carry the mock question set so a quiz remains playable.
type FetchResult struct {
	Outcome   Outcome
	Source    Source
	Questions []domain.Question
	Message   string
	Attempts  int
}

// FetcherConfig holds the request parameters and retry policy.
type FetcherConfig struct {
	Query          domain.QuestionQuery
	CacheDuration  time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// DefaultFetcherConfig mirrors the public trivia widget: 30 medium general-knowledge questions.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Query: domain.QuestionQuery{
			Amount:     30,
			Category:   9,
			Difficulty: "medium",
			Type:       "multiple",
		},
		CacheDuration:  defaultCacheDuration,
		MaxRetries:     defaultMaxRetries,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
}

// Fetcher runs the cache → token → API → retry/fallback pipeline.
type Fetcher struct {
	cache    *CacheStore
	tokens   *TokenManager
	api      QuestionSource
	cfg      FetcherConfig
	clock    func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	shuffler Shuffler
}

// FetcherOption customizes a Fetcher, mostly for tests.
type FetcherOption func(*Fetcher)

// WithClock overrides the time source used for cache staleness and timestamps.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.clock = now }
}

// WithSleep overrides the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) FetcherOption {
	return func(f *Fetcher) { f.sleep = sleep }
}

// WithShuffler overrides the random source used for question and option order.
func WithShuffler(s Shuffler) FetcherOption {
	return func(f *Fetcher) { f.shuffler = s }
}

func NewFetcher(cache *CacheStore, tokens *TokenManager, api QuestionSource, cfg FetcherConfig, opts ...FetcherOption) *Fetcher {
	defaults := DefaultFetcherConfig()
	if cfg.CacheDuration <= 0 {
		cfg.CacheDuration = defaults.CacheDuration
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if cfg.Query.Amount <= 0 {
		cfg.Query.Amount = defaults.Query.Amount
	}

	f := &Fetcher{
		cache:    cache,
		tokens:   tokens,
		api:      api,
		cfg:      cfg,
		clock:    time.Now,
		sleep:    sleepContext,
		shuffler: DefaultShuffler,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns a freshly shuffled question set. The error is non-nil only when
// ctx ends before a terminal result is reached.
func (f *Fetcher) Fetch(ctx context.Context) (FetchResult, error) {
	if record, ok := f.cache.Read(ctx); ok && record.Age(f.clock()) < f.cfg.CacheDuration {
		return FetchResult{
			Outcome:   OutcomeSuccess,
			Source:    SourceCache,
			Questions: Shuffle(record.Questions, f.shuffler),
		}, nil
	}

	policy := backoff.WithMaxRetries(&linearBackOff{base: f.cfg.RetryBaseDelay}, uint64(f.cfg.MaxRetries))
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return FetchResult{Attempts: attempt - 1}, err
		}

		token := f.tokens.Token(ctx)
		batch, err := f.api.Questions(ctx, f.cfg.Query, token)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return FetchResult{Attempts: attempt}, ctxErr
			}
			var statusErr *domain.StatusError
			if errors.As(err, &statusErr) && !statusErr.RateLimited() {
				log.Printf("trivia api unavailable (%v), switching to mock data", err)
				return f.mockResult(OutcomeFallback, attempt, msgAPIUnavailable), nil
			}
			delay := policy.NextBackOff()
			if delay == backoff.Stop {
				if statusErr != nil {
					log.Printf("trivia api still rate limited after %d attempts, switching to mock data", attempt)
					return f.mockResult(OutcomeFallback, attempt, msgAPIUnavailable), nil
				}
				log.Printf("fetch questions failed after %d attempts: %v", attempt, err)
				return f.mockResult(OutcomeFallback, attempt, msgRetriesExhausted), nil
			}
			log.Printf("fetch questions attempt %d failed: %v, retrying in %v", attempt, err, delay)
			if err := f.sleep(ctx, delay); err != nil {
				return FetchResult{Attempts: attempt}, err
			}
			continue
		}

		switch batch.ResponseCode {
		case domain.ResponseSuccess:
			if len(batch.Results) == 0 {
				break
			}
			questions := NormalizeQuestions(batch.Results, f.shuffler)
			record := domain.CacheRecord{Questions: questions, FetchedAtEpochMs: f.clock().UnixMilli()}
			if err := f.cache.Write(ctx, record); err != nil {
				log.Printf("write question cache: %v", err)
			}
			return FetchResult{
				Outcome:   OutcomeSuccess,
				Source:    SourceNetwork,
				Questions: Shuffle(questions, f.shuffler),
				Attempts:  attempt,
			}, nil
		case domain.ResponseTokenNotFound, domain.ResponseTokenEmpty:
			f.tokens.Invalidate(ctx)
			if policy.NextBackOff() != backoff.Stop {
				log.Printf("trivia api response_code=%d, retrying with a new token", batch.ResponseCode)
				continue
			}
		}

		code := batch.ResponseCode
		if code == domain.ResponseSuccess {
			code = domain.ResponseNoResults
		}
		msg := domain.ResponseMessage(code)
		log.Printf("trivia api response_code=%d: %s", batch.ResponseCode, msg)
		return f.mockResult(OutcomeError, attempt, msg), nil
	}
}

func (f *Fetcher) mockResult(outcome Outcome, attempts int, msg string) FetchResult {
	return FetchResult{
		Outcome:   outcome,
		Source:    SourceMock,
		Questions: Shuffle(MockQuestions(), f.shuffler),
		Message:   msg,
		Attempts:  attempts,
	}
}

// NormalizeQuestions converts API results into questions with IDs set to their position.
func NormalizeQuestions(raw []domain.RawQuestion, shuffler Shuffler) []domain.Question {
	questions := make([]domain.Question, 0, len(raw))
	for i, item := range raw {
		questions = append(questions, NormalizeQuestion(i, item, shuffler))
	}
	return questions
}

// NormalizeQuestion decodes and shuffles the choices. The correct index is taken
// from the same permutation, so duplicate option texts cannot misplace it.
func NormalizeQuestion(id int, raw domain.RawQuestion, shuffler Shuffler) domain.Question {
	type choice struct {
		text      string
		isCorrect bool
	}

	choices := make([]choice, 0, len(raw.IncorrectAnswers)+1)
	choices = append(choices, choice{text: DecodeHTML(raw.CorrectAnswer), isCorrect: true})
	for _, incorrect := range raw.IncorrectAnswers {
		choices = append(choices, choice{text: DecodeHTML(incorrect)})
	}
	choices = Shuffle(choices, shuffler)

	options := make([]string, len(choices))
	correctIndex := 0
	for i, c := range choices {
		options[i] = c.text
		if c.isCorrect {
			correctIndex = i
		}
	}

	return domain.Question{
		ID:                 id,
		Text:               DecodeHTML(raw.Question),
		Options:            options,
		CorrectOptionIndex: correctIndex,
		Explanation:        noExplanation,
	}
}

// linearBackOff waits base, 2×base, 3×base, ...
type linearBackOff struct {
	base    time.Duration
	attempt int64
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
