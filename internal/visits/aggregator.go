package visits

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Query defaults and bounds.
const (
	DefaultLiveMinutes = 5
	MaxLiveMinutes     = 24 * 60
	DefaultRecentLimit = 20
	MaxRecentLimit     = 500
)

// queryErrorMessage is returned to clients instead of storage details.
const queryErrorMessage = "failed to load visit statistics"

// Aggregator computes read-only statistics over the visit store.
//
// Every query runs in its own read transaction. Failures never surface as
// errors: the result is zero valued and its Error field is set.
type Aggregator struct {
	store    *Store
	observer Observer
	logger   *slog.Logger
}

// NewAggregator creates a new statistics aggregator.
//
// Parameters:
//   - store: the visit store
//   - observer: receives query failures (nil disables)
//   - logger: structured logger instance
//
// Returns a new Aggregator instance.
func NewAggregator(store *Store, observer Observer, logger *slog.Logger) *Aggregator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Aggregator{
		store:    store,
		observer: observer,
		logger:   logger,
	}
}

// Summary returns totals, calendar-day counts, the rolling 24 hour count and
// a seven day breakdown ending today.
//
// "Today", week (today-7 onwards) and month (today-30 onwards) are aligned to
// calendar dates; last_24h is a rolling window from now.
func (a *Aggregator) Summary(ctx context.Context) Summary {
	now := a.store.Now()
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	var zero time.Time

	s := Summary{
		Timestamp: now,
		Last7Days: make([]DailyCount, 0, 7),
	}

	err := a.store.View(ctx, "summary", func(r *Reader) error {
		all, err := r.Count(ctx, zero, zero)
		if err != nil {
			return err
		}
		s.UniqueVisitors = all.Unique

		total, ok, err := r.TotalCounter(ctx)
		if err != nil {
			return err
		}
		if !ok {
			total = all.Visits
		}
		s.TotalVisits = total

		todayCounts, err := r.Count(ctx, today, tomorrow)
		if err != nil {
			return err
		}
		s.TodayVisits, s.TodayUnique = todayCounts.Visits, todayCounts.Unique

		week, err := r.Count(ctx, today.AddDate(0, 0, -7), zero)
		if err != nil {
			return err
		}
		s.WeekVisits = week.Visits

		month, err := r.Count(ctx, today.AddDate(0, 0, -30), zero)
		if err != nil {
			return err
		}
		s.MonthVisits = month.Visits

		last24h, err := r.Count(ctx, now.Add(-24*time.Hour), zero)
		if err != nil {
			return err
		}
		s.Last24hVisits = last24h.Visits

		for i := 6; i >= 0; i-- {
			start := today.AddDate(0, 0, -i)
			c, err := r.Count(ctx, start, start.AddDate(0, 0, 1))
			if err != nil {
				return err
			}
			s.Last7Days = append(s.Last7Days, DailyCount{
				Date:   start.Format(dateLayout),
				Label:  start.Format("Mon"),
				Visits: c.Visits,
				Unique: c.Unique,
			})
		}
		return nil
	})
	if err != nil {
		a.failed("summary", err)
		return Summary{
			Timestamp: now,
			Last7Days: []DailyCount{},
			Error:     queryErrorMessage,
		}
	}
	return s
}

// LiveVisitors returns every visit of the last minutes, newest first, with
// the number of distinct visitors in that window.
//
// Non-positive minutes fall back to DefaultLiveMinutes.
func (a *Aggregator) LiveVisitors(ctx context.Context, minutes int) LiveSnapshot {
	if minutes <= 0 {
		minutes = DefaultLiveMinutes
	}
	now := a.store.Now()
	since := now.Add(-time.Duration(minutes) * time.Minute)

	snap := LiveSnapshot{
		WindowMinutes: minutes,
		Timestamp:     now,
		Visitors:      []VisitView{},
	}

	err := a.store.View(ctx, "live visitors", func(r *Reader) error {
		list, err := r.List(ctx, since, 0)
		if err != nil {
			return err
		}
		counts, err := r.Count(ctx, since, time.Time{})
		if err != nil {
			return err
		}
		snap.Visitors = toViews(list, now)
		snap.Count = len(snap.Visitors)
		snap.UniqueVisitors = counts.Unique
		return nil
	})
	if err != nil {
		a.failed("live_visitors", err)
		return LiveSnapshot{
			WindowMinutes: minutes,
			Timestamp:     now,
			Visitors:      []VisitView{},
			Error:         queryErrorMessage,
		}
	}
	return snap
}

// RecentVisitors returns the limit most recent visits, newest first.
//
// Non-positive limits fall back to DefaultRecentLimit; larger than
// MaxRecentLimit is capped.
func (a *Aggregator) RecentVisitors(ctx context.Context, limit int) RecentList {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	now := a.store.Now()

	list := RecentList{
		Limit:     limit,
		Timestamp: now,
		Visitors:  []VisitView{},
	}

	err := a.store.View(ctx, "recent visitors", func(r *Reader) error {
		visits, err := r.List(ctx, time.Time{}, limit)
		if err != nil {
			return err
		}
		list.Visitors = toViews(visits, now)
		list.Count = len(list.Visitors)
		return nil
	})
	if err != nil {
		a.failed("recent_visitors", err)
		return RecentList{
			Limit:     limit,
			Timestamp: now,
			Visitors:  []VisitView{},
			Error:     queryErrorMessage,
		}
	}
	return list
}

// CountByPeriod returns total and unique counts restricted to p.
//
// Hours is a rolling window ending now; Days starts at the calendar date
// today-Days. With neither set the counts cover all time.
func (a *Aggregator) CountByPeriod(ctx context.Context, p Period) PeriodCount {
	now := a.store.Now()
	result := PeriodCount{
		Period:    p.String(),
		Hours:     p.Hours,
		Days:      p.Days,
		Timestamp: now,
	}
	if err := p.Validate(); err != nil {
		result.Error = err.Error()
		return result
	}

	var from time.Time
	switch {
	case p.Hours > 0:
		from = now.Add(-time.Duration(p.Hours) * time.Hour)
	case p.Days > 0:
		from = startOfDay(now).AddDate(0, 0, -p.Days)
	}

	err := a.store.View(ctx, "count by period", func(r *Reader) error {
		c, err := r.Count(ctx, from, time.Time{})
		if err != nil {
			return err
		}
		result.TotalVisits, result.UniqueVisitors = c.Visits, c.Unique
		return nil
	})
	if err != nil {
		a.failed("count_by_period", err)
		result.TotalVisits, result.UniqueVisitors = 0, 0
		result.Error = queryErrorMessage
	}
	return result
}

func (a *Aggregator) failed(query string, err error) {
	a.observer.QueryFailed(query)
	a.logger.Error("Failed to query visit statistics", "query", query, "error", err)
}

// Validate checks that at most one of Hours and Days is set and that
// neither is negative.
func (p Period) Validate() error {
	if p.Hours < 0 || p.Days < 0 || (p.Hours > 0 && p.Days > 0) {
		return ErrInvalidPeriod
	}
	return nil
}

// String names the period, e.g. "last_24_hours", "last_7_days" or "all_time".
func (p Period) String() string {
	switch {
	case p.Hours > 0 && p.Days > 0:
		return "invalid"
	case p.Hours > 0:
		return fmt.Sprintf("last_%d_hours", p.Hours)
	case p.Days > 0:
		return fmt.Sprintf("last_%d_days", p.Days)
	default:
		return "all_time"
	}
}

func toViews(visits []Visit, now time.Time) []VisitView {
	views := make([]VisitView, 0, len(visits))
	for _, v := range visits {
		views = append(views, VisitView{
			ID:        v.ID,
			VisitorID: v.VisitorID,
			Page:      v.Page,
			Timestamp: v.Timestamp,
			TimeAgo:   RelativeTime(v.Timestamp, now),
		})
	}
	return views
}
