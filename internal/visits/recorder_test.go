package visits

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rampantspark/sitecounter/internal/identity"
)

type fakeObserver struct {
	mu            sync.Mutex
	recorded      []string
	failed        []string
	queryFailures []string
}

func (f *fakeObserver) VisitRecorded(mode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, mode)
}

func (f *fakeObserver) RecordFailed(mode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, mode)
}

func (f *fakeObserver) QueryFailed(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryFailures = append(f.queryFailures, query)
}

func TestRecord_CookieModeFirstVisitOfDay(t *testing.T) {
	store, _ := newTestStore(t, time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	obs := &fakeObserver{}
	rec := NewRecorder(store, obs, discardLogger())
	ctx := context.Background()

	id := identity.Identity{ID: "3f0c2a9e-1111-4222-8333-444455556666", IsNew: true, Mode: identity.ModeCookie}

	first := rec.Record(ctx, id, "/")
	require.True(t, first.OK)
	assert.True(t, first.IsNewToday)
	assert.Equal(t, "3f0c2a9e...", first.Visitor)
	assert.NoError(t, first.Err)

	id.IsNew = false
	second := rec.Record(ctx, id, "/")
	require.True(t, second.OK)
	assert.False(t, second.IsNewToday)

	assert.Equal(t, []string{"cookie", "cookie"}, obs.recorded)
	assert.Empty(t, obs.failed)
	assert.Equal(t, int64(2), countRows(t, store))
}

func TestRecord_NewDayResetsFirstVisit(t *testing.T) {
	store, clock := newTestStore(t, time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC))
	rec := NewRecorder(store, nil, discardLogger())
	ctx := context.Background()
	id := identity.Identity{ID: "visitor-one", Mode: identity.ModeCookie}

	require.True(t, rec.Record(ctx, id, "/").IsNewToday)

	clock.Set(time.Date(2026, 10, 19, 0, 1, 0, 0, time.UTC))
	assert.True(t, rec.Record(ctx, id, "/").IsNewToday)
}

func TestRecord_NetworkMode(t *testing.T) {
	store, _ := newTestStore(t, time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	obs := &fakeObserver{}
	rec := NewRecorder(store, obs, discardLogger())

	id := identity.Identity{ID: "203.0.113.7|curl/8.0", Mode: identity.ModeNetwork}
	for i := 0; i < 2; i++ {
		res := rec.Record(context.Background(), id, "/index.html")
		require.True(t, res.OK)
		assert.False(t, res.IsNewToday, "network mode never reports first visits")
	}

	assert.Equal(t, []string{"network", "network"}, obs.recorded)
	assert.Equal(t, int64(2), counterValue(t, store))
}

func TestRecord_StorageFaultIsAbsorbed(t *testing.T) {
	store, _ := newTestStore(t, time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	obs := &fakeObserver{}
	rec := NewRecorder(store, obs, discardLogger())
	require.NoError(t, store.Close())

	res := rec.Record(context.Background(), identity.Identity{ID: "abc", Mode: identity.ModeCookie}, "/")

	assert.False(t, res.OK)
	assert.False(t, res.IsNewToday)
	var se *StorageError
	assert.True(t, errors.As(res.Err, &se))
	assert.Equal(t, []string{"cookie"}, obs.failed)
	assert.Empty(t, obs.recorded)
}

func TestRecord_NetworkModeLongUserAgent(t *testing.T) {
	store, _ := newTestStore(t, time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	obs := &fakeObserver{}
	rec := NewRecorder(store, obs, discardLogger())
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "Mozilla/5.0 "+strings.Repeat("x", 1100))
	id := identity.NewNetworkResolver(false).Resolve(req)

	res := rec.Record(ctx, id, "/")

	require.True(t, res.OK, "err: %v", res.Err)
	assert.Empty(t, obs.failed)
	assert.Equal(t, int64(1), counterValue(t, store))

	s := NewAggregator(store, nil, discardLogger()).Summary(ctx)
	require.Empty(t, s.Error)
	assert.Equal(t, int64(1), s.TotalVisits)
	assert.Equal(t, int64(1), s.UniqueVisitors)
}
