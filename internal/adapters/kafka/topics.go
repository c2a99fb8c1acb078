package kafka

import (
	"tradecoach/internal/adapters/config"
	"tradecoach/internal/events"
)

// Topics maps the configured topic names onto the publisher's topic set
func Topics(cfg config.KafkaConfig) events.Topics {
	t := events.DefaultTopics()
	if cfg.SnapshotTopic != "" {
		t.Snapshots = cfg.SnapshotTopic
	}
	if cfg.EventTopic != "" {
		t.RiskEvents = cfg.EventTopic
	}
	if cfg.StoreChangesTopic != "" {
		t.StoreChanges = cfg.StoreChangesTopic
	}
	return t
}
