package riskstateservice

import (
	"context"
	"encoding/json"
	"sync"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/domain/riskstate"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// Writer persists evaluation results back to the store
type Writer struct {
	store kvstore.Store
	lock  sync.Locker
	log   *logger.Logger
}

// NewWriter creates a writer. lock must be the one every other read-modify-write
// writer of the same store holds; nil means a private lock.
func NewWriter(store kvstore.Store, lock sync.Locker, log *logger.Logger) *Writer {
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &Writer{
		store: store,
		lock:  lock,
		log:   log.With("component", "riskstate_writer"),
	}
}

// Persist appends the new events to the day's log, clears a consumed override flag and
// overwrites the snapshot, in that order. The event log goes first so a re-evaluation
// triggered by the flag reset already sees the new events.
//
// Writes made since the inputs were loaded are kept: the event log and the override
// counter are read again under the write lock. The returned state carries the log as stored.
func (w *Writer) Persist(ctx context.Context, in riskstate.Inputs, res riskstate.Result) (riskstate.RiskState, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	state := res.State

	logged, err := w.appendEvents(ctx, in.Date, res.NewEvents)
	if err != nil {
		return state, err
	}
	state.RiskEventsToday = logged

	if res.OverrideConsumed {
		if err := w.consumeOverride(ctx, in.Date, in.Counters.OverridesUsed); err != nil {
			return state, err
		}
	}

	if err := kvstore.SetJSON(ctx, w.store, kvstore.KeyRiskState, state); err != nil {
		return state, errors.Wrap(err, "save risk state")
	}
	return state, nil
}

// appendEvents adds detected events to the stored list for date and returns its decodable entries.
// Undecodable entries stay in the stored list untouched, and other days are never rewritten.
func (w *Writer) appendEvents(ctx context.Context, date string, detected []riskstate.RiskEvent) ([]riskstate.RiskEvent, error) {
	days := map[string]json.RawMessage{}

	raw, err := w.store.Get(ctx, kvstore.KeyRiskEvents)
	switch {
	case err == nil:
		if obj, decErr := decodeObject(raw); decErr == nil {
			days = obj
		} else {
			w.log.Warnw("Risk event log is undecodable and will be replaced", "error", decErr)
		}
	case errors.Is(err, errors.ErrNotFound):
	default:
		return nil, errors.Wrap(err, "read risk events")
	}

	var entries []json.RawMessage
	if v := days[date]; !isNull(v) {
		list, decErr := decodeArray(v)
		if decErr != nil {
			w.log.Warnw("Risk events of the day are undecodable and will be replaced", "date", date, "error", decErr)
		} else {
			entries = list
		}
	}

	stored := make([]riskstate.RiskEvent, 0, len(entries))
	undecodable := 0
	for _, item := range entries {
		var e riskstate.RiskEvent
		if err := json.Unmarshal(item, &e); err != nil {
			undecodable++
			continue
		}
		stored = append(stored, e)
	}

	merged := riskstate.MergeEvents(stored, detected)
	added := merged[len(stored):]
	if len(added) == 0 {
		return merged, nil
	}

	if undecodable > 0 {
		w.log.Warnw("Keeping undecodable risk events as stored", "date", date, "count", undecodable)
	}
	for _, e := range added {
		encoded, err := json.Marshal(e)
		if err != nil {
			return nil, errors.Wrap(err, "encode risk event")
		}
		entries = append(entries, encoded)
	}

	list, err := json.Marshal(entries)
	if err != nil {
		return nil, errors.Wrap(err, "encode risk events")
	}
	days[date] = list

	if err := kvstore.SetJSON(ctx, w.store, kvstore.KeyRiskEvents, days); err != nil {
		return nil, errors.Wrap(err, "save risk events")
	}
	return merged, nil
}

// consumeOverride lowers the flag unless another override was recorded after the
// evaluation read the counters. A newer override keeps the flag for the next evaluation.
func (w *Writer) consumeOverride(ctx context.Context, date string, seen int) error {
	f := &fields{}

	raw, err := w.store.Get(ctx, kvstore.KeyOverrideUsed)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return nil
	case err != nil:
		return errors.Wrap(err, "read override flag")
	}
	if !f.boolean(kvstore.KeyOverrideUsed, "", raw, false) {
		return nil
	}

	count := 0
	raw, err = w.store.Get(ctx, kvstore.KeyDailyCounter)
	switch {
	case err == nil:
		if days, ok := f.object(kvstore.KeyDailyCounter, raw); ok {
			if today, ok := f.object(kvstore.KeyDailyCounter, days[date]); ok {
				count = f.integer(kvstore.KeyDailyCounter, "overridesUsed", today["overridesUsed"], 0)
			}
		}
	case errors.Is(err, errors.ErrNotFound):
	default:
		return errors.Wrap(err, "read daily counters")
	}

	if count != seen {
		w.log.Infow("Override recorded during evaluation, flag kept", "date", date, "seen", seen, "current", count)
		return nil
	}

	if err := kvstore.SetJSON(ctx, w.store, kvstore.KeyOverrideUsed, false); err != nil {
		return errors.Wrap(err, "clear override flag")
	}
	return nil
}
