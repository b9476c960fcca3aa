package clock

import (
	"fmt"
	"sort"
	"time"
)

// Adjustment reports how a local wall time was mapped to UTC when the
// wall time does not correspond to exactly one instant in the zone.
type Adjustment int

const (
	// AdjustNone means the wall time was unambiguous.
	AdjustNone Adjustment = iota
	// AdjustGapForward means the wall time fell in a spring-forward gap
	// and was shifted forward by the length of the gap.
	AdjustGapForward
	// AdjustFoldEarliest means the wall time occurred twice (fall-back)
	// and the earliest UTC instant was chosen.
	AdjustFoldEarliest
)

func (a Adjustment) String() string {
	switch a {
	case AdjustGapForward:
		return "gap_forward"
	case AdjustFoldEarliest:
		return "fold_earliest"
	default:
		return "none"
	}
}

// LoadZone resolves an IANA timezone name, defaulting empty to UTC.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Resolve maps a local wall time in loc to a UTC instant.
//
// Ambiguous wall times (fall-back fold) resolve to the earliest UTC
// instant. Non-existent wall times (spring-forward gap) shift forward
// by the gap length, so 02:30 in a zone that jumps 02:00->03:00
// becomes 03:30, keeping the minutes past the transition.
func Resolve(year int, month time.Month, day, hour, minute int, loc *time.Location) (time.Time, Adjustment, error) {
	if loc == nil {
		loc = time.UTC
	}

	candidates := instantsFor(year, month, day, hour, minute, loc)
	switch len(candidates) {
	case 1:
		return candidates[0], AdjustNone, nil
	default:
		if len(candidates) > 1 {
			return candidates[0], AdjustFoldEarliest, nil
		}
	}

	// Gap: the wall time was skipped by a forward transition. Shift it
	// by the gap length (offset after minus offset before) so the
	// minute component survives the jump.
	wall := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	_, offsetBefore := wall.Add(-26 * time.Hour).In(loc).Zone()
	_, offsetAfter := wall.Add(26 * time.Hour).In(loc).Zone()
	gap := offsetAfter - offsetBefore
	if gap > 0 {
		shifted := wall.Add(time.Duration(gap) * time.Second)
		candidates = instantsFor(shifted.Year(), shifted.Month(), shifted.Day(), shifted.Hour(), shifted.Minute(), loc)
		if len(candidates) > 0 {
			return candidates[0], AdjustGapForward, nil
		}
	}
	return time.Time{}, AdjustNone, fmt.Errorf("no valid instant for %04d-%02d-%02d %02d:%02d in %s",
		year, month, day, hour, minute, loc)
}

// instantsFor returns every UTC instant whose local representation in
// loc equals the given wall time, ordered earliest first.
func instantsFor(year int, month time.Month, day, hour, minute int, loc *time.Location) []time.Time {
	naive := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)

	offsets := make(map[int]struct{}, 3)
	for _, delta := range []time.Duration{-26 * time.Hour, 0, 26 * time.Hour} {
		_, offset := naive.Add(delta).In(loc).Zone()
		offsets[offset] = struct{}{}
	}

	var instants []time.Time
	for offset := range offsets {
		candidate := naive.Add(-time.Duration(offset) * time.Second)
		local := candidate.In(loc)
		if local.Year() == year && local.Month() == month && local.Day() == day &&
			local.Hour() == hour && local.Minute() == minute {
			instants = append(instants, candidate)
		}
	}
	sort.Slice(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })
	return instants
}
