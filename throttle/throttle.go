package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxAttempts   = 5
	DefaultWindow        = 15 * time.Minute
	DefaultLockout       = 30 * time.Minute
	DefaultSweepInterval = time.Hour
)

// Result is returned from RecordAttempt. RemainingLockout is only set when
// the attempt was rejected.
type Result struct {
	Allowed          bool
	RemainingLockout time.Duration
}

// Record is the per-identifier attempt state.
type Record struct {
	Identifier   string
	Count        int
	FirstAttempt time.Time
	LockedUntil  *time.Time
}

// Limiter is implemented by the in-process Throttle and by RedisThrottle.
type Limiter interface {
	RecordAttempt(ctx context.Context, identifier string) (Result, error)
	IsLocked(ctx context.Context, identifier string) (bool, error)
	GetLockoutTimeRemaining(ctx context.Context, identifier string) (time.Duration, error)
	Reset(ctx context.Context, identifier string) error
	ResetAll(ctx context.Context) error
}

var _ Limiter = (*Throttle)(nil)

// Throttle counts attempts per identifier inside a sliding window and locks
// the identifier out once the limit is exceeded. State is process local.
type Throttle struct {
	mu            sync.Mutex
	records       map[string]*Record
	maxAttempts   int
	window        time.Duration
	lockout       time.Duration
	sweepInterval time.Duration
	nowTime       func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// Option configures a Throttle.
type Option func(*Throttle)

func WithMaxAttempts(n int) Option {
	return func(t *Throttle) {
		t.maxAttempts = n
	}
}

func WithWindow(d time.Duration) Option {
	return func(t *Throttle) {
		t.window = d
	}
}

func WithLockout(d time.Duration) Option {
	return func(t *Throttle) {
		t.lockout = d
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(t *Throttle) {
		t.sweepInterval = d
	}
}

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(nowFunc func() time.Time) Option {
	return func(t *Throttle) {
		t.nowTime = nowFunc
	}
}

func New(options ...Option) *Throttle {
	t := &Throttle{
		records:       make(map[string]*Record),
		maxAttempts:   DefaultMaxAttempts,
		window:        DefaultWindow,
		lockout:       DefaultLockout,
		sweepInterval: DefaultSweepInterval,
		nowTime:       time.Now,
		stop:          make(chan struct{}),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// RecordAttempt registers an attempt for identifier. A locked identifier is
// rejected without its count being incremented.
func (t *Throttle) RecordAttempt(_ context.Context, identifier string) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowTime()
	record, ok := t.records[identifier]

	if ok && record.LockedUntil != nil {
		if now.Before(*record.LockedUntil) {
			return Result{Allowed: false, RemainingLockout: record.LockedUntil.Sub(now)}, nil
		}
		delete(t.records, identifier)
		ok = false
	}

	if !ok || now.Sub(record.FirstAttempt) > t.window {
		t.records[identifier] = &Record{Identifier: identifier, Count: 1, FirstAttempt: now}
		return Result{Allowed: true}, nil
	}

	record.Count++
	if record.Count > t.maxAttempts {
		lockedUntil := now.Add(t.lockout)
		record.LockedUntil = &lockedUntil
		lockoutsTotal.Inc()
		log.Warn().Str("identifier", identifier).Time("locked_until", lockedUntil).Msg("attempt limit exceeded")
		return Result{Allowed: false, RemainingLockout: t.lockout}, nil
	}

	return Result{Allowed: true}, nil
}

func (t *Throttle) IsLocked(ctx context.Context, identifier string) (bool, error) {
	remaining, err := t.GetLockoutTimeRemaining(ctx, identifier)
	return remaining > 0, err
}

// GetLockoutTimeRemaining returns zero when identifier is not locked.
func (t *Throttle) GetLockoutTimeRemaining(_ context.Context, identifier string) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[identifier]
	if !ok || record.LockedUntil == nil {
		return 0, nil
	}
	now := t.nowTime()
	if !now.Before(*record.LockedUntil) {
		delete(t.records, identifier)
		return 0, nil
	}
	return record.LockedUntil.Sub(now), nil
}

func (t *Throttle) Reset(_ context.Context, identifier string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, identifier)
	return nil
}

func (t *Throttle) ResetAll(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[string]*Record)
	return nil
}

// Get returns a copy of the record for identifier.
func (t *Throttle) Get(identifier string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[identifier]
	if !ok {
		return Record{}, false
	}
	cp := *record
	if record.LockedUntil != nil {
		lockedUntil := *record.LockedUntil
		cp.LockedUntil = &lockedUntil
	}
	return cp, true
}

// Sweep removes records whose first attempt is older than twice the window.
// Records still inside an active lockout are kept.
func (t *Throttle) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowTime()
	removed := 0
	for id, record := range t.records {
		if record.LockedUntil != nil && now.Before(*record.LockedUntil) {
			continue
		}
		if now.Sub(record.FirstAttempt) > 2*t.window {
			delete(t.records, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the configured interval until ctx is done or
// Close is called.
func (t *Throttle) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			case <-ticker.C:
				if n := t.Sweep(); n > 0 {
					log.Debug().Int("removed", n).Msg("throttle sweep")
				}
			}
		}
	}()
}

func (t *Throttle) Close() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
