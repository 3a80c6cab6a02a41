package sqlexec

import (
	"fmt"
	"regexp"
	"time"
)

const dateLayout = "2006-01-02"

// maxUnpartitionedDays is the widest date span executed as a single query.
const maxUnpartitionedDays = 30

var (
	betweenPattern   = regexp.MustCompile(`(?i)BETWEEN\s+'(\d{4}-\d{2}-\d{2})'\s+AND\s+'(\d{4}-\d{2}-\d{2})'`)
	openRangePattern = regexp.MustCompile(`(?i)(>=\s*)'(\d{4}-\d{2}-\d{2})'(\s+AND\s+\w+\s*<=\s*)'(\d{4}-\d{2}-\d{2})'`)
	limitPattern     = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
)

// Partition is a contiguous closed date interval [Start, End], always a
// subrange of the original query's requested interval.
type Partition struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Plan is the partitioning decision for one SQL statement. An empty
// Partitions slice means the statement runs once, unmodified.
type Plan struct {
	SQL        string
	Partitions []Partition
}

// Partitioned reports whether the statement is split into sub-queries.
func (p Plan) Partitioned() bool {
	return len(p.Partitions) > 1
}

// PlanPartitions inspects the statement's literal date-range predicate and
// splits intervals wider than 30 days into calendar-month partitions. Only
// the first matching predicate is considered, BETWEEN form before the
// explicit >=/<= form.
func PlanPartitions(sqlText string) Plan {
	start, end, ok := detectDateRange(sqlText)
	if !ok {
		return Plan{SQL: sqlText}
	}
	if int(end.Sub(start).Hours()/24) <= maxUnpartitionedDays {
		return Plan{SQL: sqlText}
	}
	return Plan{SQL: sqlText, Partitions: monthlyPartitions(start, end)}
}

func detectDateRange(sqlText string) (time.Time, time.Time, bool) {
	var startRaw, endRaw string
	if match := betweenPattern.FindStringSubmatch(sqlText); match != nil {
		startRaw, endRaw = match[1], match[2]
	} else if match := openRangePattern.FindStringSubmatch(sqlText); match != nil {
		startRaw, endRaw = match[2], match[4]
	} else {
		return time.Time{}, time.Time{}, false
	}

	start, err := time.Parse(dateLayout, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(dateLayout, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// monthlyPartitions tiles [start, end] with calendar-month intervals: the
// first runs from start to its month end, the last is clipped to end.
func monthlyPartitions(start, end time.Time) []Partition {
	var partitions []Partition
	current := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !current.After(end) {
		nextMonth := current.AddDate(0, 1, 0)
		partitionEnd := nextMonth.AddDate(0, 0, -1)
		if partitionEnd.After(end) {
			partitionEnd = end
		}
		partitionStart := current
		if partitionStart.Before(start) {
			partitionStart = start
		}
		partitions = append(partitions, Partition{Start: partitionStart, End: partitionEnd})
		current = nextMonth
	}
	return partitions
}

// Rewrite substitutes the first matching date-range predicate's bounds with
// the partition's interval, leaving the rest of the statement verbatim.
func (p Partition) Rewrite(sqlText string) string {
	startLit := p.Start.Format(dateLayout)
	endLit := p.End.Format(dateLayout)

	if loc := betweenPattern.FindStringIndex(sqlText); loc != nil {
		replacement := fmt.Sprintf("BETWEEN '%s' AND '%s'", startLit, endLit)
		return sqlText[:loc[0]] + replacement + sqlText[loc[1]:]
	}
	if loc := openRangePattern.FindStringSubmatchIndex(sqlText); loc != nil {
		// Groups: 1 = ">= ", 2 = start date, 3 = " AND col <= ", 4 = end date.
		prefix := sqlText[loc[2]:loc[3]]
		middle := sqlText[loc[6]:loc[7]]
		replacement := fmt.Sprintf("%s'%s'%s'%s'", prefix, startLit, middle, endLit)
		return sqlText[:loc[0]] + replacement + sqlText[loc[1]:]
	}
	return sqlText
}
