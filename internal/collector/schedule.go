package collector

import (
	"sync"
	"time"

	"seatwatch.gbus.kr/internal/config"
	"seatwatch.gbus.kr/internal/metrics"
)

// IsRushHour reports whether t falls in a weekday commute window:
// 07:00-09:00 in the morning, 17:30-19:30 in the evening.
func IsRushHour(t time.Time) bool {
	hour, minute := t.Hour(), t.Minute()
	if hour >= 7 && hour < 9 {
		return true
	}
	if hour == 17 && minute >= 30 {
		return true
	}
	if hour == 18 {
		return true
	}
	if hour == 19 && minute <= 30 {
		return true
	}
	return false
}

// InOperatingHours reports whether collection is allowed at t.
func InOperatingHours(t time.Time, s config.Settings) bool {
	hour := t.Hour()
	return hour >= s.OperatingStartHour && hour < s.OperatingEndHour
}

// CollectionInterval returns the polling interval in effect at t. The second
// return is false outside operating hours, when collection is halted.
func CollectionInterval(t time.Time, s config.Settings) (time.Duration, bool) {
	if !InOperatingHours(t, s) {
		return 0, false
	}
	weekday := t.Weekday()
	if weekday == time.Sunday || weekday == time.Saturday {
		return time.Duration(s.OffPeakIntervalMin) * time.Minute, true
	}
	if IsRushHour(t) {
		return time.Duration(s.RushIntervalMin) * time.Minute, true
	}
	return time.Duration(s.DaytimeIntervalMin) * time.Minute, true
}

// LookbackWindow is how far behind now the aggregation pass reads raw
// observations: twice the current interval, clamped to [5, 60] minutes so a
// rush-hour pass still sees enough samples and an off-peak pass does not
// re-read the whole day.
func LookbackWindow(interval time.Duration) time.Duration {
	window := 2 * interval
	if window < 5*time.Minute {
		window = 5 * time.Minute
	}
	if window > 60*time.Minute {
		window = 60 * time.Minute
	}
	return window
}

// Planner decides which groups are due for polling at each tick and enforces
// the daily call budget. One Planner instance lives for the process lifetime.
type Planner struct {
	Mu             sync.Mutex
	LastCollection map[int]time.Time
	DailyCalls     int
	lastResetDay   string
}

func NewPlanner() *Planner {
	return &Planner{
		LastCollection: make(map[int]time.Time),
	}
}

// ResetIfNewDay zeroes the daily call counter once the local date changes.
// Returns true on the tick that crosses midnight so the caller can clear the
// dedup cache as well.
func (p *Planner) ResetIfNewDay(now time.Time) bool {
	p.Mu.Lock()
	defer p.Mu.Unlock()

	day := now.Format("2006-01-02")
	if p.lastResetDay == "" {
		p.lastResetDay = day
		return false
	}
	if day == p.lastResetDay {
		return false
	}
	p.lastResetDay = day
	p.DailyCalls = 0
	metrics.DailyApiCalls.Set(0)
	return true
}

// DueGroups returns the groups that should be polled at now, given the size
// of each group (one API call per route). Groups whose interval has not
// elapsed, or whose expected calls would blow the daily budget, are excluded;
// budget exclusions are reported through the second return.
func (p *Planner) DueGroups(now time.Time, groupSizes []int, s config.Settings) (due []int, skipped []int) {
	interval, open := CollectionInterval(now, s)
	if !open {
		return nil, nil
	}

	var candidates []int
	weekday := now.Weekday()
	if weekday == time.Sunday || weekday == time.Saturday {
		for g := range groupSizes {
			candidates = append(candidates, g)
		}
	} else {
		focus, ok := FocusGroup(now)
		if !ok {
			return nil, nil
		}
		candidates = append(candidates, focus)
		if IsRushHour(now) {
			if secondary := SecondaryGroup(focus); secondary != focus {
				candidates = append(candidates, secondary)
			}
		}
	}

	p.Mu.Lock()
	defer p.Mu.Unlock()

	for _, g := range candidates {
		if g >= len(groupSizes) || groupSizes[g] == 0 {
			continue
		}
		if last, ok := p.LastCollection[g]; ok && now.Sub(last) < interval {
			continue
		}
		if p.DailyCalls+groupSizes[g] > s.DailyCallBudget {
			skipped = append(skipped, g)
			metrics.BudgetSkipsTotal.Inc()
			continue
		}
		p.LastCollection[g] = now
		p.DailyCalls += groupSizes[g]
		due = append(due, g)
	}
	metrics.DailyApiCalls.Set(float64(p.DailyCalls))
	return due, skipped
}
