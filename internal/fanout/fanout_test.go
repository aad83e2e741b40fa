package fanout

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ratewatch/internal/storage"
)

type fakeRegistry struct {
	entries []storage.TrackingEntry

	mu       sync.Mutex
	updates  map[string]float64
	notFound bool
}

func (r *fakeRegistry) EntriesDueAt(ctx context.Context, utcCheckTime string) ([]storage.TrackingEntry, error) {
	return r.entries, nil
}

func (r *fakeRegistry) UpdateBaseline(ctx context.Context, userID int64, instrument string, newValue float64) error {
	if r.notFound {
		return storage.ErrEntryNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updates == nil {
		r.updates = make(map[string]float64)
	}
	r.updates[instrument] = newValue
	return nil
}

type fakeValues struct {
	values map[string]float64
}

func (v *fakeValues) Current(code string) (float64, bool) {
	value, ok := v.values[code]
	return value, ok
}

type fakePairs struct {
	value float64
	err   error
}

func (p *fakePairs) FetchPair(ctx context.Context, from, to string) (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.value, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	delay time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (n *fakeNotifier) Send(ctx context.Context, chatID int64, text string) error {
	current := n.inFlight.Add(1)
	defer n.inFlight.Add(-1)
	for {
		max := n.maxInFlight.Load()
		if current <= max || n.maxInFlight.CompareAndSwap(max, current) {
			break
		}
	}

	if n.delay > 0 {
		time.Sleep(n.delay)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return nil
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func entry(userID int64, instrument string, baseline, threshold float64) storage.TrackingEntry {
	return storage.TrackingEntry{
		UserID:       userID,
		ChatID:       userID,
		Instrument:   instrument,
		Baseline:     baseline,
		PercentDelta: threshold,
		CheckTimes:   []string{"12:00"},
	}
}

func TestRunNotifiesAndAdvancesBaseline(t *testing.T) {
	registry := &fakeRegistry{entries: []storage.TrackingEntry{entry(7, "BRENT", 55.0, 0.01)}}
	values := &fakeValues{values: map[string]float64{"BRENT": 56.0}}
	notifier := &fakeNotifier{}

	f := New(registry, values, &fakePairs{}, notifier, nil, nil, 4, noopLogger())
	f.Run(context.Background(), "12:00")

	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	if got := registry.updates["BRENT"]; got != 56.0 {
		t.Fatalf("baseline should advance to 56.0, got %v", got)
	}
}

func TestRunSkipsBelowThreshold(t *testing.T) {
	registry := &fakeRegistry{entries: []storage.TrackingEntry{entry(7, "BRENT", 55.0, 0.01)}}
	values := &fakeValues{values: map[string]float64{"BRENT": 55.3}}
	notifier := &fakeNotifier{}

	f := New(registry, values, &fakePairs{}, notifier, nil, nil, 4, noopLogger())
	f.Run(context.Background(), "12:00")

	if len(notifier.sent) != 0 {
		t.Fatalf("a sub-threshold move should not notify, got %d messages", len(notifier.sent))
	}
	if len(registry.updates) != 0 {
		t.Fatalf("baseline should stay put below threshold, got %v", registry.updates)
	}
}

func TestRunDropsRemovedEntriesQuietly(t *testing.T) {
	registry := &fakeRegistry{
		entries:  []storage.TrackingEntry{entry(7, "BRENT", 55.0, 0.01)},
		notFound: true,
	}
	values := &fakeValues{values: map[string]float64{"BRENT": 56.0}}
	notifier := &fakeNotifier{}

	f := New(registry, values, &fakePairs{}, notifier, nil, nil, 4, noopLogger())
	f.Run(context.Background(), "12:00")

	if len(notifier.sent) != 0 {
		t.Fatal("an entry removed mid-round must not be notified")
	}
}

func TestRunResolvesPairsOnDemand(t *testing.T) {
	registry := &fakeRegistry{entries: []storage.TrackingEntry{entry(7, "USD-EUR", 0.90, 0.01)}}
	values := &fakeValues{}
	notifier := &fakeNotifier{}

	f := New(registry, values, &fakePairs{value: 0.95}, notifier, nil, nil, 4, noopLogger())
	f.Run(context.Background(), "12:00")

	if len(notifier.sent) != 1 {
		t.Fatalf("pair move should notify, got %d messages", len(notifier.sent))
	}
	if got := registry.updates["USD-EUR"]; got != 0.95 {
		t.Fatalf("pair baseline should advance to 0.95, got %v", got)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const workers = 5
	entries := make([]storage.TrackingEntry, 0, 60)
	for i := int64(1); i <= 60; i++ {
		entries = append(entries, entry(i, "BRENT", 55.0, 0.01))
	}

	registry := &fakeRegistry{entries: entries}
	values := &fakeValues{values: map[string]float64{"BRENT": 56.0}}
	notifier := &fakeNotifier{delay: 5 * time.Millisecond}

	f := New(registry, values, &fakePairs{}, notifier, nil, nil, workers, noopLogger())
	f.Run(context.Background(), "12:00")

	if len(notifier.sent) != 60 {
		t.Fatalf("expected 60 notifications, got %d", len(notifier.sent))
	}
	if max := notifier.maxInFlight.Load(); max > workers {
		t.Fatalf("concurrency cap exceeded: %d in flight with %d workers", max, workers)
	}
}
