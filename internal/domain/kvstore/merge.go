package kvstore

import (
	"context"
	"sync"
)

type mergedNotifier struct {
	notifiers []Notifier
}

// MergeNotifiers fans several notifiers into one. Nil entries are skipped.
func MergeNotifiers(notifiers ...Notifier) Notifier {
	var live []Notifier
	for _, n := range notifiers {
		if n != nil {
			live = append(live, n)
		}
	}
	if len(live) == 1 {
		return live[0]
	}
	return &mergedNotifier{notifiers: live}
}

// Subscribe subscribes to every notifier. The merged channel closes when all sources close.
func (m *mergedNotifier) Subscribe(ctx context.Context) (<-chan Change, error) {
	ctx, cancel := context.WithCancel(ctx)

	sources := make([]<-chan Change, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		ch, err := n.Subscribe(ctx)
		if err != nil {
			cancel()
			return nil, err
		}
		sources = append(sources, ch)
	}

	out := make(chan Change)
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src <-chan Change) {
			defer wg.Done()
			for c := range src {
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}

	go func() {
		wg.Wait()
		cancel()
		close(out)
	}()

	return out, nil
}
