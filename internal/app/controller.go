package app

import (
	"context"
	"log"
	"sync"
	"time"

	"trivia-quiz/internal/domain"
)

const (
	defaultQuestionTime = 20 * time.Second
	defaultGraceDelay   = 2 * time.Second
)

// QuestionLoader produces a terminal question set; *Fetcher implements it.
type QuestionLoader interface {
	Fetch(ctx context.Context) (FetchResult, error)
}

// CacheClearer drops the cached question set; *CacheStore implements it.
type CacheClearer interface {
	Clear(ctx context.Context) error
}

// Scheduler runs f after d and returns a function that cancels it.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// ControllerConfig holds the countdown settings.
type ControllerConfig struct {
	QuestionTime time.Duration
	GraceDelay   time.Duration
}

// ControllerOption customizes a Controller, mostly for tests.
type ControllerOption func(*Controller)

// WithScheduler replaces time.AfterFunc for the time-up grace delay.
func WithScheduler(s Scheduler) ControllerOption {
	return func(c *Controller) { c.schedule = s }
}

// WithSessionClock sets the clock used for snapshot timestamps.
func WithSessionClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithSessionShuffler sets the random source used by Start.
func WithSessionShuffler(s Shuffler) ControllerOption {
	return func(c *Controller) { c.shuffler = s }
}

// Controller owns one player's quiz state. All mutations go through its methods.
type Controller struct {
	loader   QuestionLoader
	cache    CacheClearer
	reporter *ScoreReporter
	shuffler Shuffler
	schedule Scheduler
	now      func() time.Time

	questionSeconds int
	graceDelay      time.Duration

	mu          sync.RWMutex
	state       domain.QuizState
	generation  uint64
	cancelLoad  context.CancelFunc
	turn        uint64
	stopAdvance func() bool
	subscribers map[chan domain.QuizState]struct{}
}

func NewController(id string, loader QuestionLoader, cache CacheClearer, reporter *ScoreReporter, cfg ControllerConfig, opts ...ControllerOption) *Controller {
	if cfg.QuestionTime <= 0 {
		cfg.QuestionTime = defaultQuestionTime
	}
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = defaultGraceDelay
	}
	c := &Controller{
		loader:          loader,
		cache:           cache,
		reporter:        reporter,
		shuffler:        DefaultShuffler,
		schedule:        afterFunc,
		now:             time.Now,
		questionSeconds: int(cfg.QuestionTime / time.Second),
		graceDelay:      cfg.GraceDelay,
		subscribers:     make(map[chan domain.QuizState]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.questionSeconds < 1 {
		c.questionSeconds = 1
	}
	c.state = domain.QuizState{
		SessionID:     id,
		Phase:         domain.PhaseNotStarted,
		TimeRemaining: c.questionSeconds,
	}
	return c
}

// Load fetches questions under a new generation. A newer Load or Reset cancels
// this one and its result is discarded with domain.ErrStaleFetch.
func (c *Controller) Load(ctx context.Context) error {
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	c.generation++
	gen := c.generation
	c.cancelLoad = cancel
	c.state.Loading = true
	c.state.Error = ""
	c.broadcastLocked()
	c.mu.Unlock()

	result, err := c.loader.Fetch(loadCtx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return domain.ErrStaleFetch
	}
	c.cancelLoad = nil
	c.state.Loading = false
	if err != nil {
		c.state.Error = "Loading questions was interrupted."
		c.broadcastLocked()
		return err
	}
	c.state.Questions = result.Questions
	c.state.Error = result.Message
	c.broadcastLocked()
	return nil
}

// Start begins a new run over the loaded questions in a fresh order.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Loading {
		return domain.ErrLoading
	}
	if len(c.state.Questions) == 0 {
		return domain.ErrNoQuestions
	}
	if c.state.Phase != domain.PhaseNotStarted {
		return domain.ErrInvalidPhase
	}

	c.cancelAdvanceLocked()
	c.turn++
	c.state.Questions = Shuffle(c.state.Questions, c.shuffler)
	c.state.CurrentIndex = 0
	c.state.SelectedOption = nil
	c.state.Score = 0
	c.state.TimeRemaining = c.questionSeconds
	c.state.ShowExplanation = false
	c.state.Phase = domain.PhaseActive
	c.broadcastLocked()
	return nil
}

// SelectOption records the player's choice without ending the turn.
func (c *Controller) SelectOption(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.answeringLocked() {
		return domain.ErrInvalidPhase
	}
	question, _ := c.state.CurrentQuestion()
	if i < 0 || i >= len(question.Options) {
		return domain.ErrOptionOutOfRange
	}
	selected := i
	c.state.SelectedOption = &selected
	c.state.Phase = domain.PhaseAwaitingSubmit
	c.broadcastLocked()
	return nil
}

// Submit scores the selected option. Without a selection it does nothing.
func (c *Controller) Submit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.SelectedOption == nil {
		return nil
	}
	if c.state.Phase != domain.PhaseAwaitingSubmit {
		return domain.ErrInvalidPhase
	}
	c.submitLocked()
	c.broadcastLocked()
	return nil
}

// Tick advances the countdown by one second.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.answeringLocked() {
		return
	}
	if c.state.TimeRemaining > 0 {
		c.state.TimeRemaining--
	}
	if c.state.TimeRemaining == 0 {
		c.timeUpLocked()
	}
	c.broadcastLocked()
}

// Next moves past a shown result, completing the quiz after the last question.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != domain.PhaseShowingResult {
		return domain.ErrInvalidPhase
	}
	c.nextLocked()
	c.broadcastLocked()
	return nil
}

// ToggleExplanation flips explanation visibility while a result is shown.
func (c *Controller) ToggleExplanation() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != domain.PhaseShowingResult {
		return domain.ErrInvalidPhase
	}
	c.state.ShowExplanation = !c.state.ShowExplanation
	c.broadcastLocked()
	return nil
}

// Reset clears the session and the question cache, then loads a fresh set.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.cancelAdvanceLocked()
	c.turn++
	c.generation++
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	c.state = domain.QuizState{
		SessionID:     c.state.SessionID,
		Phase:         domain.PhaseNotStarted,
		TimeRemaining: c.questionSeconds,
	}
	c.broadcastLocked()
	c.mu.Unlock()

	if err := c.cache.Clear(ctx); err != nil {
		log.Printf("clear question cache: %v", err)
	}
	return c.Load(ctx)
}

// Report submits the final score of a completed quiz.
func (c *Controller) Report(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	if c.state.Phase != domain.PhaseCompleted {
		c.mu.RUnlock()
		return "", domain.ErrInvalidPhase
	}
	report := domain.ScoreReport{
		Name:  name,
		Score: c.state.Score,
		Total: len(c.state.Questions),
	}
	c.mu.RUnlock()

	return c.reporter.Submit(ctx, report)
}

// RunTimer calls Tick every interval until ctx ends.
func (c *Controller) RunTimer(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Tick()
		case <-ctx.Done():
			return
		}
	}
}

// Close stops pending work and closes all subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelAdvanceLocked()
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() domain.QuizState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel of state snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (c *Controller) Subscribe() (<-chan domain.QuizState, func()) {
	ch := make(chan domain.QuizState, 8)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	initial := c.snapshotLocked()
	c.mu.Unlock()

	ch <- initial

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Controller) answeringLocked() bool {
	return c.state.Phase == domain.PhaseActive || c.state.Phase == domain.PhaseAwaitingSubmit
}

func (c *Controller) submitLocked() {
	c.state.Phase = domain.PhaseShowingResult
	question, ok := c.state.CurrentQuestion()
	if ok && c.state.SelectedOption != nil && *c.state.SelectedOption == question.CorrectOptionIndex {
		c.state.Score++
	}
}

func (c *Controller) timeUpLocked() {
	if c.state.SelectedOption != nil {
		c.submitLocked()
		return
	}
	c.state.Phase = domain.PhaseShowingResult
	turn := c.turn
	c.stopAdvance = c.schedule(c.graceDelay, func() {
		c.autoAdvance(turn)
	})
}

func (c *Controller) autoAdvance(turn uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if turn != c.turn || c.state.Phase != domain.PhaseShowingResult {
		return
	}
	c.stopAdvance = nil
	c.nextLocked()
	c.broadcastLocked()
}

func (c *Controller) nextLocked() {
	c.cancelAdvanceLocked()
	c.turn++
	if c.state.CurrentIndex < len(c.state.Questions)-1 {
		c.state.CurrentIndex++
		c.state.SelectedOption = nil
		c.state.TimeRemaining = c.questionSeconds
		c.state.ShowExplanation = false
		c.state.Phase = domain.PhaseActive
		return
	}
	c.state.Phase = domain.PhaseCompleted
}

func (c *Controller) cancelAdvanceLocked() {
	if c.stopAdvance != nil {
		c.stopAdvance()
		c.stopAdvance = nil
	}
}

func (c *Controller) broadcastLocked() {
	c.state.UpdatedAt = c.now()
	snapshot := c.snapshotLocked()
	for ch := range c.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Drop the oldest queued state so a slow reader only misses intermediate updates.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (c *Controller) snapshotLocked() domain.QuizState {
	snapshot := c.state
	snapshot.Questions = append([]domain.Question(nil), c.state.Questions...)
	if c.state.SelectedOption != nil {
		selected := *c.state.SelectedOption
		snapshot.SelectedOption = &selected
	}
	return snapshot
}
