package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/greenwinther/guess-the-song2/internal/engine"
	"github.com/greenwinther/guess-the-song2/internal/hub"
	"github.com/greenwinther/guess-the-song2/internal/snapshot"
)

var epoch = time.UnixMilli(1_700_000_000_000)

type memStore struct {
	mu      sync.Mutex
	records []snapshot.Record
	saves   int
	failing bool
}

func (m *memStore) Load(context.Context) ([]snapshot.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errors.New("disk gone")
	}
	return append([]snapshot.Record{}, m.records...), nil
}

func (m *memStore) Save(_ context.Context, recs []snapshot.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk gone")
	}
	m.records = append([]snapshot.Record{}, recs...)
	m.saves++
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) setFailing(v bool) {
	m.mu.Lock()
	m.failing = v
	m.mu.Unlock()
}

func (m *memStore) snapshot() ([]snapshot.Record, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]snapshot.Record{}, m.records...), m.saves
}

func newHub(t *testing.T) *hub.Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return hub.NewHub(ctx, hub.Options{Now: func() time.Time { return epoch }, Logger: zaptest.NewLogger(t)})
}

func roomRecord(t *testing.T, code string, createdAt time.Time, connected bool) snapshot.Record {
	t.Helper()
	r := engine.NewRoom(code, "hk", createdAt.UnixMilli(), engine.DefaultTTL)
	r.Join("Host", "h", createdAt.UnixMilli())
	if !connected {
		require.NoError(t, r.MarkDisconnected("h", createdAt.UnixMilli()))
	}
	rec, err := snapshot.Capture(r)
	require.NoError(t, err)
	return rec
}

func TestLoad_SkipsExpiredAndInvalid(t *testing.T) {
	ms := &memStore{records: []snapshot.Record{
		roomRecord(t, "AAA234", epoch.Add(-time.Hour), true),
		roomRecord(t, "BBB234", epoch.Add(-48*time.Hour), true),
		{Code: "junk", Payload: []byte(`{"code":""}`)},
		{Payload: []byte(`not json`)},
		roomRecord(t, "AAA234", epoch, true),
	}}
	h := newHub(t)
	p := New(h, ms, Options{Now: func() time.Time { return epoch }, Logger: zaptest.NewLogger(t)})

	stats, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Loaded: 1, Expired: 1, Invalid: 3}, stats)

	lb, err := h.Get(context.Background(), "AAA234")
	require.NoError(t, err)
	require.NotNil(t, lb)

	view, err := lb.State(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, view.Room.Members, 1)
	assert.False(t, view.Room.Members[0].Connected, "presence resets on restart")
	assert.True(t, view.Room.Members[0].IsHost)
}

func TestLoad_RevivedHostReclaimsOnRejoin(t *testing.T) {
	ms := &memStore{records: []snapshot.Record{roomRecord(t, "AAA234", epoch, true)}}
	h := newHub(t)
	p := New(h, ms, Options{Now: func() time.Time { return epoch }})
	_, err := p.Load(context.Background())
	require.NoError(t, err)

	lb, err := h.Get(context.Background(), "AAA234")
	require.NoError(t, err)
	out, err := lb.Do(context.Background(), "", engine.JoinRoom{Name: "Host", MemberID: "h"})
	require.NoError(t, err)
	assert.Equal(t, "h", out.MemberID)

	view, err := lb.State(context.Background(), "h")
	require.NoError(t, err)
	assert.True(t, view.Room.Privileged)
}

func TestLoad_StoreFailure(t *testing.T) {
	ms := &memStore{failing: true}
	p := New(newHub(t), ms, Options{})
	_, err := p.Load(context.Background())
	assert.Error(t, err)
}

func TestFlush_WritesLiveRooms(t *testing.T) {
	h := newHub(t)
	ms := &memStore{}
	p := New(h, ms, Options{Logger: zaptest.NewLogger(t)})
	_, err := p.Load(context.Background())
	require.NoError(t, err)

	for _, code := range []string{"BBB234", "AAA234"} {
		_, _, err := h.Create(context.Background(), code)
		require.NoError(t, err)
	}
	require.NoError(t, p.Flush(context.Background()))

	recs, saves := ms.snapshot()
	assert.Equal(t, 1, saves)
	require.Len(t, recs, 2)
	assert.Equal(t, "AAA234", recs[0].Code)
}

func TestFlush_RefusesUntilLoaded(t *testing.T) {
	ms := &memStore{records: []snapshot.Record{roomRecord(t, "KEP234", epoch, true)}, failing: true}
	h := newHub(t)
	p := New(h, ms, Options{Now: func() time.Time { return epoch }, Logger: zaptest.NewLogger(t)})

	_, err := p.Load(context.Background())
	require.Error(t, err)
	assert.False(t, p.Loaded())

	ms.setFailing(false)
	assert.ErrorIs(t, p.Flush(context.Background()), ErrNotLoaded)
	recs, saves := ms.snapshot()
	assert.Equal(t, 0, saves)
	require.Len(t, recs, 1, "stored rooms untouched")

	_, err = p.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Flush(context.Background()))
	recs, _ = ms.snapshot()
	require.Len(t, recs, 1)
	assert.Equal(t, "KEP234", recs[0].Code)
}

func TestRun_RetriesLoadBeforeSaving(t *testing.T) {
	ms := &memStore{records: []snapshot.Record{roomRecord(t, "KEP234", epoch, true)}, failing: true}
	h := newHub(t)
	p := New(h, ms, Options{
		SaveInterval: 5 * time.Millisecond,
		GCInterval:   time.Hour,
		Now:          func() time.Time { return epoch },
		Logger:       zaptest.NewLogger(t),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	ms.setFailing(false)
	require.Eventually(t, func() bool {
		_, saves := ms.snapshot()
		return saves > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	lb, err := h.Get(context.Background(), "KEP234")
	require.NoError(t, err)
	assert.NotNil(t, lb, "room restored by the retried load")
	recs, _ := ms.snapshot()
	require.Len(t, recs, 1)
	assert.Equal(t, "KEP234", recs[0].Code)
}

func TestRun_SkipsFinalSaveWhenNeverLoaded(t *testing.T) {
	ms := &memStore{records: []snapshot.Record{roomRecord(t, "KEP234", epoch, true)}, failing: true}
	p := New(newHub(t), ms, Options{SaveInterval: time.Hour, GCInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))

	ms.setFailing(false)
	recs, saves := ms.snapshot()
	assert.Equal(t, 0, saves)
	assert.Len(t, recs, 1)
}

func TestSweep_UsesClock(t *testing.T) {
	h := newHub(t)
	_, _, err := h.Create(context.Background(), "AAA234")
	require.NoError(t, err)

	now := epoch.Add(25 * time.Hour)
	p := New(h, &memStore{}, Options{Now: func() time.Time { return now }})
	removed, err := p.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestRun_RetriesAfterFailureAndFlushesOnStop(t *testing.T) {
	h := newHub(t)
	_, _, err := h.Create(context.Background(), "AAA234")
	require.NoError(t, err)

	ms := &memStore{failing: true}
	p := New(h, ms, Options{
		SaveInterval: 5 * time.Millisecond,
		GCInterval:   time.Hour,
		Logger:       zaptest.NewLogger(t),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	_, saves := ms.snapshot()
	assert.Equal(t, 0, saves)

	ms.setFailing(false)
	require.Eventually(t, func() bool {
		_, saves := ms.snapshot()
		return saves > 0
	}, time.Second, 5*time.Millisecond)

	_, before := ms.snapshot()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("Run did not return")
	}
	recs, after := ms.snapshot()
	assert.Greater(t, after, before, "final flush on stop")
	require.Len(t, recs, 1)
}
