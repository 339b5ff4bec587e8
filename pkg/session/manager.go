package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/verbgate/internal/logging"
	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates pending-choice access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.ChoiceStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithTTL expires pending choices older than ttl. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new session Manager with the given choice store.
func NewManager(store ports.ChoiceStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		now:     time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Load returns the pending choice of a session, or domain.ErrNoPendingChoice.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.PendingChoice, error) {
	var choice *domain.PendingChoice
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		choice, err = m.LoadLocked(ctx, sessionID)
		return err
	})
	return choice, err
}

// Save replaces the pending choice of a session.
func (m *Manager) Save(ctx context.Context, sessionID string, choice *domain.PendingChoice) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.SaveLocked(ctx, sessionID, choice)
	})
}

// Delete removes the pending choice of a session.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.DeleteLocked(ctx, sessionID)
	})
}

// Consume loads and deletes the pending choice in one locked step.
func (m *Manager) Consume(ctx context.Context, sessionID string) (*domain.PendingChoice, error) {
	var choice *domain.PendingChoice
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		choice, err = m.LoadLocked(ctx, sessionID)
		if err != nil {
			return err
		}
		return m.DeleteLocked(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return choice, nil
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// LoadLocked is Load for callers already inside WithLock for sessionID.
func (m *Manager) LoadLocked(ctx context.Context, sessionID string) (*domain.PendingChoice, error) {
	choice, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrNoPendingChoice
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending choice: %w", err)
	}
	if choice.Expired(m.ttl, m.now()) {
		m.logger.Info("Pending choice expired",
			"session_id", sessionID,
			"choice_id", choice.ID,
			"age", m.now().Sub(choice.CreatedAt),
		)
		if err := m.store.Delete(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("failed to delete expired pending choice: %w", err)
		}
		return nil, domain.ErrNoPendingChoice
	}
	return choice, nil
}

// SaveLocked is Save for callers already inside WithLock for sessionID.
func (m *Manager) SaveLocked(ctx context.Context, sessionID string, choice *domain.PendingChoice) error {
	if err := m.store.Save(ctx, sessionID, choice); err != nil {
		return fmt.Errorf("failed to save pending choice: %w", err)
	}
	return nil
}

// DeleteLocked is Delete for callers already inside WithLock for sessionID.
func (m *Manager) DeleteLocked(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete pending choice: %w", err)
	}
	return nil
}

// WithLock executes a function while holding the lock for the session.
// The *Locked methods must only be called from inside fn.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
