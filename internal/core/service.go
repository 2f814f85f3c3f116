// Package core exposes the clinic's entity repositories, query helpers and
// integrity rules on top of a domain.PersistentStore.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"clinicdesk/internal/infra/persistence/memory"
	"clinicdesk/pkg/domain"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for mutations and cascades.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics installs the recorder observing every operation.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithClock overrides the clock used to resolve "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service exposes transactional CRUD and query operations over the clinic
// records. Each successful mutation is flushed by the store exactly once.
type Service struct {
	store   PersistentStore
	log     zerolog.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		log:     zerolog.Nop(),
		metrics: noopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store using the
// given rules engine, or DefaultRulesEngine when engine is nil.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = DefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) mutate(ctx context.Context, op string, fn func(Transaction) error) error {
	start := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	for _, v := range res.Violations {
		if v.Severity != domain.SeverityBlock {
			s.log.Warn().Str("op", op).Str("rule", v.Rule).Str("entity", string(v.Entity)).Str("id", v.EntityID).Msg(v.Message)
		}
	}
	if err != nil {
		event := s.log.Debug()
		if errors.Is(err, domain.ErrPersist) {
			event = s.log.Error()
		}
		event.Err(err).Str("op", op).Str("actor", ActorFromContext(ctx)).Msg("operation failed")
	}
	return err
}

func (s *Service) read(ctx context.Context, op string, fn func(TransactionView) error) error {
	start := time.Now()
	err := s.store.View(ctx, fn)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("read failed")
	}
	return err
}

func (s *Service) timed(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("operation failed")
	}
	return err
}

func (s *Service) logged(ctx context.Context, op string, entity domain.EntityType, id string) {
	s.log.Debug().
		Str("op", op).
		Str("entity", string(entity)).
		Str("id", id).
		Str("actor", ActorFromContext(ctx)).
		Msg("committed")
}

func (s *Service) loggedCascade(ctx context.Context, op string, c Cascade) {
	event := s.log.Info().
		Str("op", op).
		Str("entity", string(c.Root)).
		Str("id", c.RootID).
		Str("actor", ActorFromContext(ctx)).
		Int("detached", len(c.Detached))
	for entity, ids := range c.Removed {
		if entity != c.Root {
			event = event.Int(string(entity), len(ids))
		}
	}
	event.Msg("deleted")
}

// deleted runs a cascading delete. A missing record yields (false, nil) and
// nothing is written.
func (s *Service) deleted(ctx context.Context, op string, del func(Transaction) (Cascade, error)) (bool, error) {
	var cascade Cascade
	found := true
	err := s.mutate(ctx, op, func(tx Transaction) error {
		var err error
		cascade, err = del(tx)
		if errors.Is(err, domain.ErrNotFound) {
			found = false
			return nil
		}
		return err
	})
	if err != nil || !found {
		return false, err
	}
	s.loggedCascade(ctx, op, cascade)
	return true, nil
}

// today returns the service date in YYYY-MM-DD.
func (s *Service) today() string {
	return s.now().Format(domain.DateLayout)
}
