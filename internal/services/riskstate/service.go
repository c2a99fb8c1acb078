package riskstateservice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/domain/riskstate"
	"tradecoach/internal/metrics"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// Publisher receives every successful evaluation
type Publisher interface {
	PublishSnapshot(ctx context.Context, date string, state *riskstate.RiskState) error
	PublishRiskEvents(ctx context.Context, date string, detected []riskstate.RiskEvent) error
}

// Service runs one evaluation pass: read, evaluate, persist, publish
type Service struct {
	reader    *Reader
	writer    *Writer
	params    riskstate.Params
	publisher Publisher
	tracker   errors.Tracker
	now       func() time.Time
	log       *logger.Logger
}

// Option configures a Service
type Option func(*serviceOptions)

type serviceOptions struct {
	params    riskstate.Params
	loc       *time.Location
	now       func() time.Time
	publisher Publisher
	tracker   errors.Tracker
	lock      sync.Locker
}

// WithParams overrides the default thresholds
func WithParams(p riskstate.Params) Option {
	return func(o *serviceOptions) { o.params = p }
}

// WithLocation sets the time zone of the trading day
func WithLocation(loc *time.Location) Option {
	return func(o *serviceOptions) { o.loc = loc }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// WithPublisher publishes successful evaluations
func WithPublisher(p Publisher) Option {
	return func(o *serviceOptions) { o.publisher = p }
}

// WithTracker reports evaluation failures
func WithTracker(t errors.Tracker) Option {
	return func(o *serviceOptions) { o.tracker = t }
}

// WithWriteLock shares the lock that serializes read-modify-write sequences on the store,
// so persisting never interleaves with the demo controls
func WithWriteLock(l sync.Locker) Option {
	return func(o *serviceOptions) { o.lock = l }
}

// NewService creates the evaluation service over store
func NewService(store kvstore.Store, log *logger.Logger, opts ...Option) *Service {
	o := serviceOptions{
		params: riskstate.DefaultParams(),
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Service{
		reader:    NewReader(store, o.params, o.loc, log),
		writer:    NewWriter(store, o.lock, log),
		params:    o.params,
		publisher: o.publisher,
		tracker:   o.tracker,
		now:       o.now,
		log:       log.With("component", "riskstate_service"),
	}
}

// Params returns the thresholds in use
func (s *Service) Params() riskstate.Params {
	return s.params
}

// Evaluate computes, stores and publishes a fresh snapshot.
// Any error or panic is converted to an error wrapping ErrEvaluationFailed.
func (s *Service) Evaluate(ctx context.Context) (state *riskstate.RiskState, err error) {
	start := time.Now()
	now := s.now()
	date, _ := s.reader.TradingDay(now)

	defer func() {
		if r := recover(); r != nil {
			state = nil
			err = errors.Wrapf(errors.ErrEvaluationFailed, "panic: %v", r)
		}
		metrics.RecordEvaluation(time.Since(start), err)
		if err != nil {
			s.reportFailure(ctx, date, err)
		}
	}()

	in, fieldErrs, err := s.reader.Load(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrEvaluationFailed, err)
	}
	for _, fe := range fieldErrs {
		metrics.FieldFallbacks.WithLabelValues(fe.Key).Inc()
	}

	res := riskstate.Evaluate(in, s.params)

	stored, err := s.writer.Persist(ctx, in, res)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrEvaluationFailed, err)
	}
	res.State = stored

	for _, e := range res.NewEvents {
		metrics.RiskEvents.WithLabelValues(string(e.Kind)).Inc()
		s.log.Infow("Risk event logged", "kind", e.Kind, "description", e.Description, "level", e.Level)
	}
	metrics.RecordState(string(res.State.Decision.Level), res.State.PersonalRisk.RevengeRiskIndex, res.State.MarketRisk.VixValue)

	s.publish(ctx, in.Date, &res)

	s.log.Debugw("Risk state evaluated",
		"date", in.Date,
		"level", res.State.Decision.Level,
		"vix", res.State.MarketRisk.VixValue,
		"revenge_index", res.State.PersonalRisk.RevengeRiskIndex,
		"fallbacks", len(fieldErrs),
	)

	return &res.State, nil
}

// publish is best effort: the snapshot is already stored, so a broker outage must not fail the evaluation
func (s *Service) publish(ctx context.Context, date string, res *riskstate.Result) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSnapshot(ctx, date, &res.State); err != nil {
		s.log.Warnw("Snapshot not published", "date", date, "error", err)
	}
	if len(res.NewEvents) == 0 {
		return
	}
	if err := s.publisher.PublishRiskEvents(ctx, date, res.NewEvents); err != nil {
		s.log.Warnw("Risk events not published", "date", date, "count", len(res.NewEvents), "error", err)
	}
}

func (s *Service) reportFailure(ctx context.Context, date string, err error) {
	s.log.Errorw("Risk state evaluation failed", "date", date, "error", err)
	if s.tracker == nil {
		return
	}
	ctx = errors.ContextWithTags(ctx, map[string]string{"trading_date": date})
	_ = s.tracker.CaptureError(ctx, err, map[string]string{"component": "riskstate_service"})
}
