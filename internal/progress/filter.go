package progress

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/JakeFAU/fabtrack/internal/tracking"
)

// DateRange restricts entries by completion date relative to a reference time.
type DateRange string

// Supported date ranges.
const (
	RangeAll   DateRange = "all"
	RangeToday DateRange = "today"
	RangeWeek  DateRange = "week"
	RangeMonth DateRange = "month"
)

// ParseDateRange normalizes query input; an empty value means RangeAll.
func ParseDateRange(input string) (DateRange, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "all":
		return RangeAll, nil
	case "today":
		return RangeToday, nil
	case "week", "7d", "last_7_days":
		return RangeWeek, nil
	case "month", "30d", "last_30_days":
		return RangeMonth, nil
	default:
		return "", errors.New("invalid range")
	}
}

// Since returns the inclusive lower bound for the range, or the zero time for
// RangeAll. "today" starts at midnight in now's location.
func (r DateRange) Since(now time.Time) time.Time {
	switch r {
	case RangeToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case RangeWeek:
		return now.Add(-7 * 24 * time.Hour)
	case RangeMonth:
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

// EntryFilter selects entries before aggregation. Zero-valued fields do not
// filter.
type EntryFilter struct {
	// Text is matched case-insensitively against the worker name and the
	// assembly code and description.
	Text string
	// StageID must equal the entry's stage when set.
	StageID string
	Range   DateRange
	Now     time.Time
}

// FilterEntries returns the entries matching f, preserving input order.
func FilterEntries(entries []tracking.ProgressEntry, assemblies []tracking.Assembly, f EntryFilter) []tracking.ProgressEntry {
	byID := indexAssemblies(assemblies)
	text := strings.ToLower(strings.TrimSpace(f.Text))
	since := f.Range.Since(f.Now)

	out := make([]tracking.ProgressEntry, 0, len(entries))
	for _, e := range entries {
		if f.StageID != "" && e.StageID != f.StageID {
			continue
		}
		if !since.IsZero() && e.CompletedAt.Before(since) {
			continue
		}
		if text != "" && !matchesText(e, byID[e.AssemblyID], text) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchesText(e tracking.ProgressEntry, a tracking.Assembly, needle string) bool {
	for _, hay := range []string{e.WorkerName, a.Code, a.Description} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// SortKey names the column entries are ordered by.
type SortKey string

// Supported sort keys.
const (
	SortByDate   SortKey = "date"
	SortByTime   SortKey = "time"
	SortByWorker SortKey = "worker"
	SortByStage  SortKey = "stage"
)

// SortOrder is ascending or descending.
type SortOrder string

// Supported sort orders.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortKey normalizes query input; an empty value sorts by date.
func ParseSortKey(input string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "date", "completion_date":
		return SortByDate, nil
	case "time", "time_spent":
		return SortByTime, nil
	case "worker", "worker_name":
		return SortByWorker, nil
	case "stage", "stage_name":
		return SortByStage, nil
	default:
		return "", errors.New("invalid sort key")
	}
}

// ParseSortOrder normalizes query input; an empty value sorts descending.
func ParseSortOrder(input string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "desc":
		return SortDesc, nil
	case "asc":
		return SortAsc, nil
	default:
		return "", errors.New("invalid sort order")
	}
}

// SortEntries returns a sorted copy of entries. stageNames maps stage IDs to
// display names for SortByStage. Ties fall back to entry ID ascending.
func SortEntries(
	entries []tracking.ProgressEntry,
	key SortKey,
	order SortOrder,
	stageNames map[string]string,
) []tracking.ProgressEntry {
	out := append([]tracking.ProgressEntry(nil), entries...)
	cmp := func(a, b tracking.ProgressEntry) int {
		switch key {
		case SortByTime:
			return compareFloat(a.TimeSpent, b.TimeSpent)
		case SortByWorker:
			return strings.Compare(a.WorkerName, b.WorkerName)
		case SortByStage:
			return strings.Compare(stageNames[a.StageID], stageNames[b.StageID])
		default:
			return a.CompletedAt.Compare(b.CompletedAt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if order == SortDesc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
