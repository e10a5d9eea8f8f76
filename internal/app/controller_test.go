package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"trivia-quiz/internal/app"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/infra/memory"
)

type loaderFunc func(ctx context.Context) (app.FetchResult, error)

func (f loaderFunc) Fetch(ctx context.Context) (app.FetchResult, error) { return f(ctx) }

func fixedLoader(questions []domain.Question, msg string) loaderFunc {
	return func(context.Context) (app.FetchResult, error) {
		return app.FetchResult{Outcome: app.OutcomeSuccess, Questions: questions, Message: msg}, nil
	}
}

type countingClearer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingClearer) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

// identityShuffler keeps order so tests can predict the current question.
type identityShuffler struct{}

func (identityShuffler) Shuffle(int, func(i, j int)) {}

type scheduledCall struct {
	delay   time.Duration
	fire    func()
	stopped bool
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []*scheduledCall
}

func (s *fakeScheduler) schedule(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := &scheduledCall{delay: d, fire: f}
	s.calls = append(s.calls, call)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		call.stopped = true
		return true
	}
}

func (s *fakeScheduler) last() *scheduledCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

type controllerFixture struct {
	kv        *memory.KVStore
	clearer   *countingClearer
	scheduler *fakeScheduler
	ctrl      *app.Controller
}

func newControllerFixture(t *testing.T, loader app.QuestionLoader) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		kv:        memory.NewKVStore(),
		clearer:   &countingClearer{},
		scheduler: &fakeScheduler{},
	}
	reporter := app.NewScoreReporter(nil, f.kv, app.EmailSettings{})
	f.ctrl = app.NewController("session-1", loader, f.clearer, reporter, app.ControllerConfig{},
		app.WithScheduler(f.scheduler.schedule),
		app.WithSessionShuffler(identityShuffler{}),
	)
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *controllerFixture) loadAndStart(t *testing.T) {
	t.Helper()
	if err := f.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := f.ctrl.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func TestControllerStartRequiresQuestions(t *testing.T) {
	f := newControllerFixture(t, fixedLoader(nil, ""))

	if err := f.ctrl.Start(); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	if err := f.ctrl.SelectOption(0); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase before start, got %v", err)
	}
}

func TestControllerScoresCorrectAnswer(t *testing.T) {
	f := newControllerFixture(t, fixedLoader(sampleQuestions(3), ""))
	f.loadAndStart(t)

	state := f.ctrl.Snapshot()
	if state.Phase != domain.PhaseActive || state.TimeRemaining != 20 || state.CurrentIndex != 0 {
		t.Fatalf("unexpected initial state %+v", state)
	}

	if err := f.ctrl.SelectOption(2); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := f.ctrl.SelectOption(0); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if got := f.ctrl.Snapshot(); got.Phase != domain.PhaseAwaitingSubmit || *got.SelectedOption != 0 {
		t.Fatalf("expected awaiting submit with option 0, got %+v", got)
	}
	if err := f.ctrl.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	state = f.ctrl.Snapshot()
	if state.Phase != domain.PhaseShowingResult || state.Score != 1 {
		t.Fatalf("expected scored result, got phase=%s score=%d", state.Phase, state.Score)
	}
	if err := f.ctrl.SelectOption(1); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("selection after submit should fail, got %v", err)
	}

	if err := f.ctrl.ToggleExplanation(); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !f.ctrl.Snapshot().ShowExplanation {
		t.Fatalf("expected explanation shown")
	}

	if err := f.ctrl.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	state = f.ctrl.Snapshot()
	if state.CurrentIndex != 1 || state.Phase != domain.PhaseActive || state.SelectedOption != nil || state.ShowExplanation || state.TimeRemaining != 20 {
		t.Fatalf("expected fresh second question, got %+v", state)
	}

	if err := f.ctrl.SelectOption(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := f.ctrl.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := f.ctrl.Snapshot().Score; got != 1 {
		t.Fatalf("wrong answer must not score, got %d", got)
	}
}

func TestControllerSubmitWithoutSelectionIsNoop(t *testing.T) {
	f := newControllerFixture(t, fixedLoader(sampleQuestions(2), ""))
	f.loadAndStart(t)

	if err := f.ctrl.Submit(); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if phase := f.ctrl.Snapshot().Phase; phase != domain.PhaseActive {
		t.Fatalf("expected still active, got %s", phase)
	}
	if err := f.ctrl.SelectOption(4); !errors.Is(err, domain.ErrOptionOutOfRange) {
		t.Fatalf("expected ErrOptionOutOfRange, got %v", err)
	}
	if err := f.ctrl.SelectOption(-1); !errors.Is(err, domain.ErrOptionOutOfRange) {
		t.Fatalf("expected ErrOptionOutOfRange, got %v", err)
	}
}

func TestControllerTimeUpSubmitsSelection(t *testing.T) {
	f := newControllerFixture(t, fixedLoader(sampleQuestions(2), ""))
	f.loadAndStart(t)

	if err := f.ctrl.SelectOption(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	for i := 0; i < 19; i++ {
		f.ctrl.Tick()
	}
	if state := f.ctrl.Snapshot(); state.TimeRemaining != 1 || state.Phase != domain.PhaseAwaitingSubmit {
		t.Fatalf("expected 1s left, got %+v", state)
	}
	f.ctrl.Tick()

	state := f.ctrl.Snapshot()
	if state.Phase != domain.PhaseShowingResult || state.Score != 1 || state.TimeRemaining != 0 {
		t.Fatalf("expected implicit submit, got %+v", state)
	}
	if f.scheduler.last() != nil {
		t.Fatalf("implicit submit must not schedule an auto-advance")
	}
	f.ctrl.Tick()
	if got := f.ctrl.Snapshot(); got.Phase != domain.PhaseShowingResult || got.TimeRemaining != 0 {
		t.Fatalf("ticks after the result must be ignored, got %+v", got)
	}
}

func TestControllerTimeUpWithoutSelectionAutoAdvances(t *testing.T) {
	f := newControllerFixture(t, fixedLoader(sampleQuestions(2), ""))
	f.loadAndStart(t)

	for i := 0; i < 20; i++ {
		f.ctrl.Tick()
	}
	state := f.ctrl.Snapshot()
	if state.Phase != domain.PhaseShowingResult || state.Score != 0 {
		t.Fatalf("expected unanswered result, got %+v", state)
	}
	call := f.scheduler.last()
	if call == nil || call.delay != 2*time.Second {
		t.Fatalf("expected auto-advance after 2s, got %+v", call)
	}

	call.fire()
	state = f.ctrl.Snapshot()
	if state.CurrentIndex != 1 || state.Phase != domain.PhaseActive || state.Score != 0 {
		t.Fatalf("expected advance to second question, got %+v", state)
	}
}

func TestControllerManualNextCancelsAutoAdvance(t *testing.T) {
	f := newControllerFixture(t, fixedLoader(sampleQuestions(3), ""))
	f.loadAndStart(t)

	for i := 0; i < 20; i++ {
		f.ctrl.Tick()
	}
	call := f.scheduler.last()
	if err := f.ctrl.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if !call.stopped {
		t.Fatalf("expected pending auto-advance to be stopped")
	}

	// A timer that already fired must not skip the new question.
	call.fire()
	if idx := f.ctrl.Snapshot().CurrentIndex; idx != 1 {
		t.Fatalf("expected to stay on question 1, got %d", idx)
	}
}

func TestControllerCompletesAndFreezes(t *testing.T) {
	f := newControllerFixture(t, fixedLoader(sampleQuestions(1), ""))
	f.loadAndStart(t)

	if err := f.ctrl.SelectOption(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := f.ctrl.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.ctrl.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	state := f.ctrl.Snapshot()
	if state.Phase != domain.PhaseCompleted || state.Score != 1 {
		t.Fatalf("expected completed with score 1, got %+v", state)
	}

	if err := f.ctrl.Start(); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("start after completion should fail, got %v", err)
	}
	if err := f.ctrl.Next(); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("next after completion should fail, got %v", err)
	}
	f.ctrl.Tick()
	if got := f.ctrl.Snapshot(); got.Phase != domain.PhaseCompleted || got.Score != 1 {
		t.Fatalf("completed state changed: %+v", got)
	}
}

func TestControllerReportSavesLastScore(t *testing.T) {
	f := newControllerFixture(t, fixedLoader(sampleQuestions(2), ""))
	ctx := context.Background()

	if _, err := f.ctrl.Report(ctx, "Ada"); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("report before completion should fail, got %v", err)
	}

	f.loadAndStart(t)
	for i := 0; i < 2; i++ {
		if err := f.ctrl.SelectOption(i); err != nil {
			t.Fatalf("select: %v", err)
		}
		if err := f.ctrl.Submit(); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if err := f.ctrl.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
	}

	msg, err := f.ctrl.Report(ctx, "  Ada ")
	if !errors.Is(err, domain.ErrEmailNotConfigured) {
		t.Fatalf("expected ErrEmailNotConfigured, got %v", err)
	}
	if !strings.Contains(msg, "Score saved locally.") {
		t.Fatalf("unexpected message %q", msg)
	}

	raw, err := f.kv.Get(ctx, app.KeyLastScore)
	if err != nil {
		t.Fatalf("expected last score saved: %v", err)
	}
	var report domain.ScoreReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Name != "Ada" || report.Score != 2 || report.Total != 2 || report.Percentage != 100 {
		t.Fatalf("unexpected saved report %+v", report)
	}
}

func TestControllerResetClearsCacheAndReloads(t *testing.T) {
	loads := 0
	loader := loaderFunc(func(context.Context) (app.FetchResult, error) {
		loads++
		return app.FetchResult{Questions: sampleQuestions(loads + 1)}, nil
	})
	f := newControllerFixture(t, loader)
	f.loadAndStart(t)
	if err := f.ctrl.SelectOption(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := f.ctrl.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := f.ctrl.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	state := f.ctrl.Snapshot()
	if f.clearer.calls != 1 || loads != 2 {
		t.Fatalf("expected one cache clear and a reload, got clears=%d loads=%d", f.clearer.calls, loads)
	}
	if state.Phase != domain.PhaseNotStarted || state.Score != 0 || state.SelectedOption != nil || len(state.Questions) != 3 {
		t.Fatalf("expected a fresh session, got %+v", state)
	}
	if err := f.ctrl.Start(); err != nil {
		t.Fatalf("start after reset: %v", err)
	}
}

func TestControllerDiscardsStaleLoad(t *testing.T) {
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex
	loader := loaderFunc(func(ctx context.Context) (app.FetchResult, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(started)
			<-ctx.Done()
			return app.FetchResult{Questions: sampleQuestions(9)}, nil
		}
		return app.FetchResult{Questions: sampleQuestions(2)}, nil
	})
	f := newControllerFixture(t, loader)

	firstErr := make(chan error, 1)
	go func() { firstErr <- f.ctrl.Load(context.Background()) }()
	<-started

	if err := f.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if err := <-firstErr; !errors.Is(err, domain.ErrStaleFetch) {
		t.Fatalf("expected first load to be stale, got %v", err)
	}
	state := f.ctrl.Snapshot()
	if len(state.Questions) != 2 || state.Loading {
		t.Fatalf("expected the newer question set, got %d questions loading=%v", len(state.Questions), state.Loading)
	}
}

func TestControllerLoadSurfacesFallbackMessage(t *testing.T) {
	f := newControllerFixture(t, fixedLoader(sampleQuestions(2), "API unavailable. Using mock data."))
	if err := f.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	state := f.ctrl.Snapshot()
	if state.Error != "API unavailable. Using mock data." || len(state.Questions) != 2 {
		t.Fatalf("expected playable questions with message, got %+v", state)
	}
	if err := f.ctrl.Start(); err != nil {
		t.Fatalf("fallback questions must be playable: %v", err)
	}
}

func TestControllerStartWhileLoadingFails(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	loader := loaderFunc(func(context.Context) (app.FetchResult, error) {
		close(started)
		<-release
		return app.FetchResult{Questions: sampleQuestions(1)}, nil
	})
	f := newControllerFixture(t, loader)

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Load(context.Background()) }()
	<-started
	if err := f.ctrl.Start(); !errors.Is(err, domain.ErrLoading) {
		t.Fatalf("expected ErrLoading, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestControllerSubscribeReceivesUpdates(t *testing.T) {
	f := newControllerFixture(t, fixedLoader(sampleQuestions(2), ""))
	updates, cancel := f.ctrl.Subscribe()
	defer cancel()

	initial := <-updates
	if initial.SessionID != "session-1" || initial.Phase != domain.PhaseNotStarted {
		t.Fatalf("unexpected initial snapshot %+v", initial)
	}

	f.loadAndStart(t)
	deadline := time.After(time.Second)
	for {
		select {
		case state := <-updates:
			if state.Phase == domain.PhaseActive {
				return
			}
		case <-deadline:
			t.Fatalf("did not observe active phase")
		}
	}
}
