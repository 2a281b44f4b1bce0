package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long an abandoned wizard is kept.
const DefaultTTL = 30 * time.Minute

// ErrNotFound is returned for unknown or expired wizards.
var ErrNotFound = errors.New("sign-up wizard not found or expired")

// Store persists wizard state between requests
type Store interface {
	Load(ctx context.Context, id string) (*SignUp, error)
	Save(ctx context.Context, w *SignUp) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps each wizard as a JSON value with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed wizard store
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "medchain:wizard"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func (s *RedisStore) Load(ctx context.Context, id string) (*SignUp, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load wizard: %w", err)
	}
	var w SignUp
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode wizard: %w", err)
	}
	return &w, nil
}

func (s *RedisStore) Save(ctx context.Context, w *SignUp) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wizard: %w", err)
	}
	return s.client.Set(ctx, s.key(w.ID), data, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// MemoryStore is the single-process fallback when redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	wizards map[string]memoryEntry
}

type memoryEntry struct {
	wizard  SignUp
	expires time.Time
}

// NewMemoryStore creates an in-memory wizard store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, wizards: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*SignUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.wizards[id]
	if !ok || time.Now().After(e.expires) {
		delete(s.wizards, id)
		return nil, ErrNotFound
	}
	w := e.wizard
	return &w, nil
}

func (s *MemoryStore) Save(ctx context.Context, w *SignUp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, e := range s.wizards {
		if now.After(e.expires) {
			delete(s.wizards, id)
		}
	}
	s.wizards[w.ID] = memoryEntry{wizard: *w, expires: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wizards, id)
	return nil
}

// View is the client-facing form state. The password is never echoed back.
type View struct {
	ID       string   `json:"id"`
	Step     Step     `json:"step"`
	Progress int      `json:"progress"`
	Identity Identity `json:"identity"`
	Business Business `json:"business"`
	Labels   Labels   `json:"labels"`
	Strength int      `json:"password_strength"`
}

// View renders w for the client.
func (w *SignUp) View() View {
	id := w.Identity
	id.Password = ""
	return View{
		ID:       w.ID,
		Step:     w.Step,
		Progress: w.Progress(),
		Identity: id,
		Business: w.Business,
		Labels:   LabelsFor(w.Identity.Role),
		Strength: PasswordStrength(w.Identity.Password),
	}
}
