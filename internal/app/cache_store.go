package app

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"

	"trivia-quiz/internal/domain"
)

// Storage keys shared by the cache store, token manager and score reporter.
const (
	KeyQuestions    = "quizQuestions"
	KeyCacheTime    = "quizCacheTime"
	KeySessionToken = "quizSessionToken"
	KeyLastScore    = "lastQuizScore"
)

// KeyValueStore abstracts durable string storage (in-memory, Redis, Postgres).
// Get returns domain.ErrKeyNotFound for absent keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheStore persists the last fetched question set. Staleness is decided by callers.
type CacheStore struct {
	kv KeyValueStore
}

func NewCacheStore(kv KeyValueStore) *CacheStore {
	return &CacheStore{kv: kv}
}

// Read returns the cached record, or false when it is absent or unreadable.
func (c *CacheStore) Read(ctx context.Context) (domain.CacheRecord, bool) {
	rawQuestions, err := c.kv.Get(ctx, KeyQuestions)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			log.Printf("cache read %s: %v", KeyQuestions, err)
		}
		return domain.CacheRecord{}, false
	}
	rawTime, err := c.kv.Get(ctx, KeyCacheTime)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			log.Printf("cache read %s: %v", KeyCacheTime, err)
		}
		return domain.CacheRecord{}, false
	}

	fetchedAt, err := strconv.ParseInt(rawTime, 10, 64)
	if err != nil {
		log.Printf("cache timestamp %q is not a number: %v", rawTime, err)
		return domain.CacheRecord{}, false
	}
	var questions []domain.Question
	if err := json.Unmarshal([]byte(rawQuestions), &questions); err != nil {
		log.Printf("cached questions are corrupt: %v", err)
		return domain.CacheRecord{}, false
	}
	return domain.CacheRecord{Questions: questions, FetchedAtEpochMs: fetchedAt}, true
}

// Write stores the question payload, then the timestamp.
func (c *CacheStore) Write(ctx context.Context, record domain.CacheRecord) error {
	data, err := json.Marshal(record.Questions)
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, KeyQuestions, string(data)); err != nil {
		return err
	}
	return c.kv.Set(ctx, KeyCacheTime, strconv.FormatInt(record.FetchedAtEpochMs, 10))
}

// Clear drops both cache keys; the session token is left alone.
func (c *CacheStore) Clear(ctx context.Context) error {
	var result error
	for _, key := range []string{KeyQuestions, KeyCacheTime} {
		if err := c.kv.Delete(ctx, key); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
