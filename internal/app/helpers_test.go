package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"trivia-quiz/internal/app"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/infra/memory"
)

type apiReply struct {
	batch domain.QuestionBatch
	err   error
}

// scriptedAPI replays replies in order and repeats the last one.
type scriptedAPI struct {
	mu      sync.Mutex
	replies []apiReply
	tokens  []string
}

func (a *scriptedAPI) Questions(_ context.Context, _ domain.QuestionQuery, token string) (domain.QuestionBatch, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens = append(a.tokens, token)
	reply := a.replies[len(a.replies)-1]
	if idx := len(a.tokens) - 1; idx < len(a.replies) {
		reply = a.replies[idx]
	}
	return reply.batch, reply.err
}

func (a *scriptedAPI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tokens)
}

type countingTokens struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingTokens) RequestToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("tok-%d", s.calls), nil
}

type sleepRecorder struct {
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

type fetchFixture struct {
	kv      *memory.KVStore
	cache   *app.CacheStore
	tokens  *countingTokens
	api     *scriptedAPI
	sleeps  *sleepRecorder
	now     time.Time
	fetcher *app.Fetcher
}

func newFetchFixture(replies ...apiReply) *fetchFixture {
	f := &fetchFixture{
		kv:     memory.NewKVStore(),
		tokens: &countingTokens{},
		api:    &scriptedAPI{replies: replies},
		sleeps: &sleepRecorder{},
		now:    time.Date(2024, 11, 22, 12, 0, 0, 0, time.UTC),
	}
	f.cache = app.NewCacheStore(f.kv)
	f.fetcher = app.NewFetcher(
		f.cache,
		app.NewTokenManager(f.kv, f.tokens),
		f.api,
		app.DefaultFetcherConfig(),
		app.WithClock(func() time.Time { return f.now }),
		app.WithSleep(f.sleeps.sleep),
		app.WithShuffler(rand.New(rand.NewSource(7))),
	)
	return f
}

func okBatch(raw ...domain.RawQuestion) apiReply {
	return apiReply{batch: domain.QuestionBatch{ResponseCode: domain.ResponseSuccess, Results: raw}}
}

func codeBatch(code int) apiReply {
	return apiReply{batch: domain.QuestionBatch{ResponseCode: code}}
}

func statusReply(code int) apiReply {
	return apiReply{err: &domain.StatusError{StatusCode: code}}
}

func networkReply() apiReply {
	return apiReply{err: errors.New("dial tcp: connection refused")}
}

func parisQuestion() domain.RawQuestion {
	return domain.RawQuestion{
		Type:             "multiple",
		Question:         "What is the capital of France?",
		CorrectAnswer:    "Paris",
		IncorrectAnswers: []string{"London", "Berlin", "Madrid"},
	}
}

func sampleQuestions(n int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			ID:                 i,
			Text:               fmt.Sprintf("Question %d", i),
			Options:            []string{"a", "b", "c", "d"},
			CorrectOptionIndex: i % 4,
		}
	}
	return questions
}

func questionIDs(questions []domain.Question) map[int]bool {
	ids := make(map[int]bool, len(questions))
	for _, q := range questions {
		ids[q.ID] = true
	}
	return ids
}

func newSeededShuffler(seed int64) app.Shuffler {
	return rand.New(rand.NewSource(seed))
}
