package collector

import "time"

// GroupCount is the number of polling groups the route catalogue is split
// into. Routes are assigned by the final digit of their id, pairing digit d
// with d+5 so each group gets roughly a fifth of the fleet.
const GroupCount = 5

// GroupForRoute returns the polling group (0..GroupCount-1) for a route id.
// Digits 1/6 map to group 0, 2/7 to 1, 3/8 to 2, 4/9 to 3, 5/0 to 4.
// Route ids that do not end in a digit land in the last group.
func GroupForRoute(routeID string) int {
	if routeID == "" {
		return GroupCount - 1
	}
	last := routeID[len(routeID)-1]
	if last < '0' || last > '9' {
		return GroupCount - 1
	}
	d := int(last - '0')
	if d == 0 {
		d = 10
	}
	return (d - 1) % GroupCount
}

// GroupRoutes partitions route ids into their polling groups. The slice
// order within a group follows the input order.
func GroupRoutes(routeIDs []string) [][]string {
	groups := make([][]string, GroupCount)
	for _, id := range routeIDs {
		g := GroupForRoute(id)
		groups[g] = append(groups[g], id)
	}
	return groups
}

// weekOfYear mirrors the rotation's week arithmetic: day-of-year plus the
// weekday offset of January 1st, divided into 7-day buckets.
func weekOfYear(t time.Time) int {
	startOfYear := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	days := t.Sub(startOfYear).Hours() / 24
	return int((days+float64(startOfYear.Weekday())+1)/7) + 1
}

// FocusGroup returns the group receiving focused weekday polling for the
// given time. The assignment rotates one position per week over a
// GroupCount-week cycle so every group sees every weekday within five weeks.
// Weekends have no focus group; the second return is false.
func FocusGroup(t time.Time) (int, bool) {
	weekday := int(t.Weekday())
	if weekday == 0 || weekday == 6 {
		return 0, false
	}
	weekMod := (weekOfYear(t) - 1) % GroupCount
	return (weekMod + weekday - 1) % GroupCount, true
}

// SecondaryGroup is the group polled alongside the focus group during rush
// hours, always the focus group's right neighbor in the rotation.
func SecondaryGroup(focus int) int {
	return (focus + 1) % GroupCount
}
