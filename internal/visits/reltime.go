package visits

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

const day = 24 * time.Hour

// relTimeMagnitudes renders ages with floor division and singular wording
// at exactly one unit.
var relTimeMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: 1},
	{D: 2 * time.Minute, Format: "1 minute %s", DivBy: 1},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour %s", DivBy: 1},
	{D: day, Format: "%d hours %s", DivBy: time.Hour},
	{D: 2 * day, Format: "1 day %s", DivBy: 1},
	{D: math.MaxInt64, Format: "%d days %s", DivBy: day},
}

// RelativeTime describes how long before now t happened, e.g.
// "just now", "1 minute ago", "3 hours ago" or "2 days ago".
// Timestamps after now are reported as "just now".
func RelativeTime(t, now time.Time) string {
	if t.After(now) {
		t = now
	}
	return humanize.CustomRelTime(t, now, "ago", "from now", relTimeMagnitudes)
}
