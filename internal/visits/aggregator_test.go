package visits

import (
	"context"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordAt(t *testing.T, s *Store, visitor string, at time.Time) {
	t.Helper()
	_, err := s.RecordVisit(context.Background(), NewVisit{VisitorID: visitor, Timestamp: at})
	require.NoError(t, err)
}

func TestSummary_EndToEnd(t *testing.T) {
	now := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)
	store, _ := newTestStore(t, now)
	agg := NewAggregator(store, nil, discardLogger())

	for i := 0; i < 3; i++ {
		recordAt(t, store, "a", now.Add(-time.Duration(i)*time.Minute))
	}
	for i := 0; i < 2; i++ {
		recordAt(t, store, "b", now.Add(-time.Duration(i)*time.Minute))
	}

	s := agg.Summary(context.Background())

	assert.Empty(t, s.Error)
	assert.Equal(t, int64(5), s.TodayVisits)
	assert.Equal(t, int64(2), s.TodayUnique)
	assert.Equal(t, int64(5), s.TotalVisits)
	assert.Equal(t, int64(2), s.UniqueVisitors)
	assert.Equal(t, int64(5), s.WeekVisits)
	assert.Equal(t, int64(5), s.MonthVisits)
	assert.Equal(t, int64(5), s.Last24hVisits)
}

func TestSummary_DailyBreakdown(t *testing.T) {
	now := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC) // a Sunday
	store, _ := newTestStore(t, now)
	agg := NewAggregator(store, nil, discardLogger())

	recordAt(t, store, "a", now.AddDate(0, 0, -6))
	recordAt(t, store, "a", now.AddDate(0, 0, -2))
	recordAt(t, store, "b", now.AddDate(0, 0, -2))
	recordAt(t, store, "b", now.AddDate(0, 0, -2))
	recordAt(t, store, "c", now.AddDate(0, 0, -9)) // outside the breakdown

	s := agg.Summary(context.Background())
	require.Empty(t, s.Error)
	require.Len(t, s.Last7Days, 7)

	assert.Equal(t, "2026-10-12", s.Last7Days[0].Date)
	assert.Equal(t, "Mon", s.Last7Days[0].Label)
	assert.Equal(t, int64(1), s.Last7Days[0].Visits)

	assert.Equal(t, "2026-10-16", s.Last7Days[4].Date)
	assert.Equal(t, int64(3), s.Last7Days[4].Visits)
	assert.Equal(t, int64(2), s.Last7Days[4].Unique)

	last := s.Last7Days[6]
	assert.Equal(t, now.Format("2006-01-02"), last.Date)
	assert.Equal(t, "Sun", last.Label)
	assert.Zero(t, last.Visits)

	for i := 1; i < len(s.Last7Days); i++ {
		assert.Less(t, s.Last7Days[i-1].Date, s.Last7Days[i].Date, "breakdown must be oldest first")
	}

	// week counts from the calendar date today-7, month from today-30
	assert.Equal(t, int64(4), s.WeekVisits)
	assert.Equal(t, int64(5), s.MonthVisits)
}

func TestSummary_Last24hIsRolling(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore(t, now)
	agg := NewAggregator(store, nil, discardLogger())

	recordAt(t, store, "a", now.Add(-23*time.Hour))
	recordAt(t, store, "b", now.Add(-25*time.Hour))

	s := agg.Summary(context.Background())
	require.Empty(t, s.Error)
	assert.Equal(t, int64(1), s.Last24hVisits)
	assert.Equal(t, int64(0), s.TodayVisits)
}

func TestSummary_CalendarTodayDiffersFromRolling(t *testing.T) {
	now := time.Date(2026, 10, 18, 0, 30, 0, 0, time.UTC)
	store, _ := newTestStore(t, now)
	agg := NewAggregator(store, nil, discardLogger())

	recordAt(t, store, "a", now.Add(-time.Hour))      // yesterday 23:30
	recordAt(t, store, "b", now.Add(-10*time.Minute)) // today 00:20

	s := agg.Summary(context.Background())
	require.Empty(t, s.Error)
	assert.Equal(t, int64(1), s.TodayVisits)
	assert.Equal(t, int64(2), s.Last24hVisits)
}

func TestSummary_TotalFallsBackToRowCount(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore(t, now)
	agg := NewAggregator(store, nil, discardLogger())

	recordAt(t, store, "a", now)
	recordAt(t, store, "b", now)
	_, err := store.db.Exec(`DELETE FROM total_counts`)
	require.NoError(t, err)

	s := agg.Summary(context.Background())
	require.Empty(t, s.Error)
	assert.Equal(t, int64(2), s.TotalVisits)
}

func TestSummary_StorageFaultIsAbsorbed(t *testing.T) {
	store, _ := newTestStore(t, time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	obs := &fakeObserver{}
	agg := NewAggregator(store, obs, discardLogger())
	require.NoError(t, store.Close())

	s := agg.Summary(context.Background())

	assert.Equal(t, queryErrorMessage, s.Error)
	assert.Zero(t, s.TotalVisits)
	assert.NotNil(t, s.Last7Days)
	assert.Empty(t, s.Last7Days)
	assert.Equal(t, []string{"summary"}, obs.queryFailures)
}

func TestLiveVisitors(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore(t, now)
	agg := NewAggregator(store, nil, discardLogger())

	recordAt(t, store, "a", now.Add(-30*time.Second))
	recordAt(t, store, "b", now.Add(-90*time.Second))
	recordAt(t, store, "a", now.Add(-4*time.Minute))
	recordAt(t, store, "c", now.Add(-6*time.Minute))

	snap := agg.LiveVisitors(context.Background(), 0)

	require.Empty(t, snap.Error)
	assert.Equal(t, DefaultLiveMinutes, snap.WindowMinutes)
	assert.Equal(t, 3, snap.Count)
	assert.Equal(t, int64(2), snap.UniqueVisitors)
	require.Len(t, snap.Visitors, 3)
	assert.Equal(t, "just now", snap.Visitors[0].TimeAgo)
	assert.Equal(t, "1 minute ago", snap.Visitors[1].TimeAgo)
	assert.Equal(t, "4 minutes ago", snap.Visitors[2].TimeAgo)

	wide := agg.LiveVisitors(context.Background(), 10)
	assert.Equal(t, 4, wide.Count)
	assert.Equal(t, int64(3), wide.UniqueVisitors)
}

func TestRecentVisitors_NewestFirst(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore(t, now)
	agg := NewAggregator(store, nil, discardLogger())
	ctx := context.Background()

	var ids []int64
	for _, v := range []string{"v1", "v2", "v3", "v4", "v5"} {
		ins, err := store.RecordVisit(ctx, NewVisit{VisitorID: v})
		require.NoError(t, err)
		ids = append(ids, ins.ID)
	}

	list := agg.RecentVisitors(ctx, 2)

	require.Empty(t, list.Error)
	require.Len(t, list.Visitors, 2)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, ids[4], list.Visitors[0].ID)
	assert.Equal(t, "v5", list.Visitors[0].VisitorID)
	assert.Equal(t, ids[3], list.Visitors[1].ID)
	assert.Equal(t, "just now", list.Visitors[0].TimeAgo)
}

func TestRecentVisitors_Limits(t *testing.T) {
	store, _ := newTestStore(t, time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	agg := NewAggregator(store, nil, discardLogger())

	assert.Equal(t, DefaultRecentLimit, agg.RecentVisitors(context.Background(), 0).Limit)
	assert.Equal(t, MaxRecentLimit, agg.RecentVisitors(context.Background(), MaxRecentLimit+1).Limit)
	assert.Empty(t, agg.RecentVisitors(context.Background(), 5).Visitors)
}

func TestCountByPeriod(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore(t, now)
	agg := NewAggregator(store, nil, discardLogger())

	recordAt(t, store, "a", now.Add(-30*time.Minute))
	recordAt(t, store, "b", now.Add(-3*time.Hour))
	recordAt(t, store, "a", now.Add(-13*time.Hour)) // yesterday 23:00
	recordAt(t, store, "c", now.AddDate(0, 0, -3))
	recordAt(t, store, "d", now.AddDate(0, 0, -40))

	tests := []struct {
		name       string
		period     Period
		wantName   string
		wantTotal  int64
		wantUnique int64
	}{
		{"all time", Period{}, "all_time", 5, 4},
		{"rolling hour", Period{Hours: 1}, "last_1_hours", 1, 1},
		{"rolling 24h crosses midnight", Period{Hours: 24}, "last_24_hours", 3, 2},
		{"calendar days start at midnight", Period{Days: 1}, "last_1_days", 3, 2},
		{"week", Period{Days: 7}, "last_7_days", 4, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := agg.CountByPeriod(context.Background(), tt.period)
			require.Empty(t, got.Error)
			assert.Equal(t, tt.wantName, got.Period)
			assert.Equal(t, tt.wantTotal, got.TotalVisits)
			assert.Equal(t, tt.wantUnique, got.UniqueVisitors)
		})
	}
}

func TestCountByPeriod_RejectsBothWindows(t *testing.T) {
	store, _ := newTestStore(t, time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	agg := NewAggregator(store, nil, discardLogger())

	got := agg.CountByPeriod(context.Background(), Period{Hours: 2, Days: 1})
	assert.Equal(t, ErrInvalidPeriod.Error(), got.Error)
	assert.Zero(t, got.TotalVisits)
}

func TestPeriodValidate(t *testing.T) {
	tests := []struct {
		name    string
		period  Period
		wantErr bool
	}{
		{"neither", Period{}, false},
		{"hours", Period{Hours: 5}, false},
		{"days", Period{Days: 5}, false},
		{"both", Period{Hours: 1, Days: 1}, true},
		{"negative hours", Period{Hours: -1}, true},
		{"negative days", Period{Days: -3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.period.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPeriod)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWindowsAcrossDSTFallBack(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// On 2026-11-01 New York clocks go from 01:59 EDT back to 01:00 EST.
	earlier := time.Date(2026, 11, 1, 5, 30, 0, 0, time.UTC) // 01:30 EDT
	later := time.Date(2026, 11, 1, 6, 10, 0, 0, time.UTC)   // 01:10 EST
	now := time.Date(2026, 11, 1, 6, 20, 0, 0, time.UTC)     // 01:20 EST

	store, err := Open(filepath.Join(t.TempDir(), "visitors.db"), discardLogger(),
		WithClock(func() time.Time { return now }), WithLocation(ny))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	recordAt(t, store, "earlier", earlier)
	recordAt(t, store, "later", later)
	agg := NewAggregator(store, nil, discardLogger())

	recent := agg.RecentVisitors(ctx, 10)
	require.Len(t, recent.Visitors, 2)
	assert.Equal(t, "later", recent.Visitors[0].VisitorID)
	assert.Equal(t, "earlier", recent.Visitors[1].VisitorID)

	live := agg.LiveVisitors(ctx, 15)
	require.Len(t, live.Visitors, 1)
	assert.Equal(t, "later", live.Visitors[0].VisitorID)
	assert.Equal(t, "10 minutes ago", live.Visitors[0].TimeAgo)

	count := agg.CountByPeriod(ctx, Period{Hours: 1})
	assert.Equal(t, int64(2), count.TotalVisits)

	s := agg.Summary(ctx)
	assert.Equal(t, int64(2), s.TodayVisits)
	assert.Equal(t, "2026-11-01", s.Last7Days[6].Date)
}
