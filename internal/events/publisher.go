package events

import (
	"context"
	"time"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/domain/riskstate"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// Default topic names
const (
	TopicSnapshots    = "riskstate.snapshots"
	TopicRiskEvents   = "riskstate.events"
	TopicStoreChanges = "riskstate.store_changes"
)

// MessageProducer is the part of the Kafka producer the publisher needs
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Topics names the Kafka topics used by the publisher
type Topics struct {
	Snapshots    string
	RiskEvents   string
	StoreChanges string
}

// DefaultTopics returns the default topic names
func DefaultTopics() Topics {
	return Topics{
		Snapshots:    TopicSnapshots,
		RiskEvents:   TopicRiskEvents,
		StoreChanges: TopicStoreChanges,
	}
}

// SnapshotPublished carries a full risk state snapshot
type SnapshotPublished struct {
	Date        string              `json:"date"`
	State       riskstate.RiskState `json:"riskState"`
	PublishedAt time.Time           `json:"publishedAt"`
}

// RiskEventRecorded carries one newly logged risk event
type RiskEventRecorded struct {
	Date  string              `json:"date"`
	Event riskstate.RiskEvent `json:"event"`
}

// Publisher publishes risk state events to Kafka
type Publisher struct {
	producer MessageProducer
	topics   Topics
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer MessageProducer, topics Topics, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topics:   topics,
		log:      log.With("component", "event_publisher"),
	}
}

// PublishSnapshot publishes a risk state snapshot keyed by trading day
func (p *Publisher) PublishSnapshot(ctx context.Context, date string, state *riskstate.RiskState) error {
	if state == nil {
		return nil
	}
	event := SnapshotPublished{
		Date:        date,
		State:       *state,
		PublishedAt: time.Now().UTC(),
	}
	return p.publish(ctx, p.topics.Snapshots, date, event)
}

// PublishRiskEvents publishes each new risk event separately
func (p *Publisher) PublishRiskEvents(ctx context.Context, date string, detected []riskstate.RiskEvent) error {
	var errs errors.MultiError
	for _, e := range detected {
		errs.Add(p.publish(ctx, p.topics.RiskEvents, e.ID.String(), RiskEventRecorded{Date: date, Event: e}))
	}
	return errs.ToError()
}

// PublishStoreChange announces a store mutation to other processes
func (p *Publisher) PublishStoreChange(ctx context.Context, change kvstore.Change) error {
	return p.publish(ctx, p.topics.StoreChanges, change.Key, change)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Errorw("Failed to publish event", "topic", topic, "key", key, "error", err)
		return errors.Wrapf(err, "publish to %s", topic)
	}
	return nil
}
