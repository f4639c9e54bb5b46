package acquire

import (
	"fmt"
	"time"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
)

// maxWindowDays is the widest date range the FIRMS area API serves per request.
const maxWindowDays = 10

// Window is one acquisition unit: a source and an inclusive date range of at
// most maxWindowDays days.
type Window struct {
	Source domain.Source `json:"source"`
	Start  time.Time     `json:"start"`
	End    time.Time     `json:"end"`
}

// Days returns the window length in days, both endpoints counted.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

func (w Window) String() string {
	return fmt.Sprintf("%s %s..%s", w.Source, w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
}

// SplitRange splits the inclusive [start, end] date range into contiguous
// windows of at most maxWindowDays days for one source, in chronological order.
func SplitRange(source domain.Source, start, end time.Time) []Window {
	var windows []Window
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, maxWindowDays) {
		wEnd := cur.AddDate(0, 0, maxWindowDays-1)
		if wEnd.After(end) {
			wEnd = end
		}
		windows = append(windows, Window{Source: source, Start: cur, End: wEnd})
	}
	return windows
}

// truncateDay drops the intra-day component and normalizes to UTC.
func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
