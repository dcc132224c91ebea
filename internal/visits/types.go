// Package visits records anonymous page visits in an embedded SQLite store
// and aggregates them into time-windowed statistics.
package visits

import (
	"time"
)

// Visit is one stored page view.
type Visit struct {
	ID        int64     // Monotonic surrogate key
	VisitorID string    // Opaque visitor identifier
	Timestamp time.Time // Time the visit was recorded
	Page      string    // Requested path, "/" when unknown
}

// NewVisit describes a visit to be inserted.
type NewVisit struct {
	VisitorID  string
	Page       string
	Timestamp  time.Time // Zero means "now" according to the store clock
	CheckToday bool      // Look up whether the visitor was already seen today
}

// Insertion is the outcome of a successful insert.
type Insertion struct {
	ID        int64
	Timestamp time.Time
	SeenToday bool // Only meaningful when NewVisit.CheckToday was set
}

// Counts holds a visit count and the number of distinct visitors behind it.
type Counts struct {
	Visits int64
	Unique int64
}

// RecordResult is the best-effort outcome of recording a visit.
//
// A failed recording is reported here instead of being returned as an error
// so that callers serving pages never have to handle storage faults.
type RecordResult struct {
	OK         bool   // The visit row and counter were committed
	IsNewToday bool   // First visit of this identifier today (cookie mode only)
	Visitor    string // Truncated identifier, safe for logs
	Err        error  // Storage fault when OK is false
}

// DailyCount is one entry of the seven day breakdown.
type DailyCount struct {
	Date   string `json:"date"`
	Label  string `json:"label"`
	Visits int64  `json:"visits"`
	Unique int64  `json:"unique"`
}

// Summary is the aggregated statistics served by /api/stats.
type Summary struct {
	TotalVisits    int64        `json:"total_visits"`
	TodayVisits    int64        `json:"today_visits"`
	TodayUnique    int64        `json:"today_unique"`
	WeekVisits     int64        `json:"week_visits"`
	MonthVisits    int64        `json:"month_visits"`
	UniqueVisitors int64        `json:"unique_visitors"`
	Last24hVisits  int64        `json:"last_24h_visits"`
	Last7Days      []DailyCount `json:"last_7_days"`
	Timestamp      time.Time    `json:"timestamp"`
	Error          string       `json:"error,omitempty"`
}

// VisitView is a visit enriched with a human readable age.
type VisitView struct {
	ID        int64     `json:"id"`
	VisitorID string    `json:"visitor_id"`
	Page      string    `json:"page"`
	Timestamp time.Time `json:"timestamp"`
	TimeAgo   string    `json:"time_ago"`
}

// LiveSnapshot lists the visits inside a rolling window of minutes.
type LiveSnapshot struct {
	WindowMinutes  int         `json:"window_minutes"`
	Count          int         `json:"count"`
	UniqueVisitors int64       `json:"unique_visitors"`
	Visitors       []VisitView `json:"visitors"`
	Timestamp      time.Time   `json:"timestamp"`
	Error          string      `json:"error,omitempty"`
}

// RecentList lists the most recent visits.
type RecentList struct {
	Limit     int         `json:"limit"`
	Count     int         `json:"count"`
	Visitors  []VisitView `json:"visitors"`
	Timestamp time.Time   `json:"timestamp"`
	Error     string      `json:"error,omitempty"`
}

// Period restricts a count to a rolling number of hours or a number of
// calendar days. Hours and Days are mutually exclusive; both zero means
// all time.
type Period struct {
	Hours int
	Days  int
}

// PeriodCount is the result of Aggregator.CountByPeriod.
type PeriodCount struct {
	Period         string    `json:"period"`
	Hours          int       `json:"hours,omitempty"`
	Days           int       `json:"days,omitempty"`
	TotalVisits    int64     `json:"total_visits"`
	UniqueVisitors int64     `json:"unique_visitors"`
	Timestamp      time.Time `json:"timestamp"`
	Error          string    `json:"error,omitempty"`
}

// Observer receives recording and query outcomes, typically for metrics.
type Observer interface {
	VisitRecorded(mode string)
	RecordFailed(mode string)
	QueryFailed(query string)
}

type nopObserver struct{}

func (nopObserver) VisitRecorded(string) {}
func (nopObserver) RecordFailed(string)  {}
func (nopObserver) QueryFailed(string)   {}
