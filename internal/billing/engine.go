// Package billing implements the time-interval accounting engine that
// turns a parking order's entry/exit instants and an active billing rule's
// segment payload into a fee simulation. Every minute in [entry, exit) is
// attributed to at most one segment; earlier segments in payload order win
// overlapping minutes. Money is quantized to two decimals, HALF_UP.
package billing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/newgpp/parksuite-core/internal/domain"
)

const defaultTimezone = "Asia/Shanghai"

var locCache sync.Map // map[string]*time.Location

// loadLocation returns a cached *time.Location for name, loading it once.
// Mirrors the original service's lru_cache-memoized timezone loader.
func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = defaultTimezone
	}
	if v, ok := locCache.Load(name); ok {
		return v.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("billing: load timezone %q: %w", name, err)
	}
	locCache.Store(name, loc)
	return loc, nil
}

func parseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("billing: malformed HH:MM %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("billing: malformed hour in %q: %w", s, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("billing: malformed minute in %q: %w", s, err)
	}
	return hour, minute, nil
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func containsInt(set []int, v int) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}

type occurrence struct {
	bucketDate string
	start      time.Time
	end        time.Time
}

// occurrencesForSegment generates the segment's candidate intervals,
// day-by-day between entry and exit, clipped to the segment's daily
// [start,end) window and filtered by weekdays. A window whose start
// equals its end covers the whole day; an overnight window (end < start)
// splits into two intervals per day — the tail of the
// previous night's window ending this morning, and the head of tonight's
// window running to midnight — so every interval stays within a single
// calendar date and minutes land on the date they actually fall on rather
// than the date the window started.
func occurrencesForSegment(seg domain.BillingSegment, entry, exit time.Time) ([]occurrence, error) {
	tz := defaultTimezone
	if seg.TimeWindow != nil && seg.TimeWindow.Timezone != "" {
		tz = seg.TimeWindow.Timezone
	}
	loc, err := loadLocation(tz)
	if err != nil {
		return nil, err
	}

	entryLocal := entry.In(loc)
	exitLocal := exit.In(loc)
	startDate := time.Date(entryLocal.Year(), entryLocal.Month(), entryLocal.Day(), 0, 0, 0, 0, loc)
	endDate := time.Date(exitLocal.Year(), exitLocal.Month(), exitLocal.Day(), 0, 0, 0, 0, loc)

	var out []occurrence
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		if len(seg.Weekdays) > 0 && !containsInt(seg.Weekdays, isoWeekday(d)) {
			continue
		}

		nextDay := d.AddDate(0, 0, 1)

		var windows [][2]time.Time
		if seg.TimeWindow == nil {
			windows = [][2]time.Time{{d, nextDay}}
		} else {
			sh, sm, err := parseHHMM(seg.TimeWindow.Start)
			if err != nil {
				return nil, err
			}
			eh, em, err := parseHHMM(seg.TimeWindow.End)
			if err != nil {
				return nil, err
			}
			startMinuteOfDay := sh*60 + sm
			endMinuteOfDay := eh*60 + em
			switch {
			case startMinuteOfDay == endMinuteOfDay:
				windows = [][2]time.Time{{d, nextDay}}
			case startMinuteOfDay < endMinuteOfDay:
				windows = [][2]time.Time{{
					d.Add(time.Duration(startMinuteOfDay) * time.Minute),
					d.Add(time.Duration(endMinuteOfDay) * time.Minute),
				}}
			default:
				windows = [][2]time.Time{
					{d, d.Add(time.Duration(endMinuteOfDay) * time.Minute)},
					{d.Add(time.Duration(startMinuteOfDay) * time.Minute), nextDay},
				}
			}
		}

		for _, w := range windows {
			winStart, winEnd := w[0], w[1]
			if winStart.Before(entry) {
				winStart = entry
			}
			if winEnd.After(exit) {
				winEnd = exit
			}
			if winStart.Before(winEnd) {
				out = append(out, occurrence{
					bucketDate: d.Format("2006-01-02"),
					start:      winStart,
					end:        winEnd,
				})
			}
		}
	}
	return out, nil
}

// SimulateFee computes the fee for one stay against one billing rule's
// segment payload. See spec §4.8 for the full algorithm description.
func SimulateFee(payload domain.BillingRulePayload, entry, exit time.Time) (domain.BillingResult, error) {
	if !exit.After(entry) {
		return domain.BillingResult{DurationMinutes: 0, TotalAmount: "0.00", Breakdown: nil}, nil
	}

	durationMinutes := int(exit.Sub(entry) / time.Minute)
	if durationMinutes <= 0 {
		return domain.BillingResult{DurationMinutes: 0, TotalAmount: "0.00", Breakdown: nil}, nil
	}

	claimed := make([]bool, durationMinutes)
	// perSegmentDayMinutes[segIdx][bucketDate] = minutes claimed by that
	// segment on that bucket date.
	perSegmentDayMinutes := make([]map[string]int, len(payload.Segments))
	segmentDayOrder := make([]map[string]bool, len(payload.Segments))

	for i, seg := range payload.Segments {
		perSegmentDayMinutes[i] = make(map[string]int)
		segmentDayOrder[i] = make(map[string]bool)

		occs, err := occurrencesForSegment(seg, entry, exit)
		if err != nil {
			return domain.BillingResult{}, err
		}
		for _, occ := range occs {
			startOffset := int(occ.start.Sub(entry) / time.Minute)
			endOffset := int(occ.end.Sub(entry) / time.Minute)
			if startOffset < 0 {
				startOffset = 0
			}
			if endOffset > durationMinutes {
				endOffset = durationMinutes
			}
			for m := startOffset; m < endOffset; m++ {
				if claimed[m] {
					continue
				}
				claimed[m] = true
				perSegmentDayMinutes[i][occ.bucketDate]++
				segmentDayOrder[i][occ.bucketDate] = true
			}
		}
	}

	total := decimal.NewFromInt(0)
	var breakdown []domain.BillingSegmentBreakdown

	for i, seg := range payload.Segments {
		dayMinutes := perSegmentDayMinutes[i]
		if len(dayMinutes) == 0 {
			continue
		}
		dates := make([]string, 0, len(dayMinutes))
		for d := range dayMinutes {
			dates = append(dates, d)
		}
		sort.Strings(dates)

		segmentMinutes := 0
		segmentAmount := decimal.NewFromInt(0)
		capped := false
		remainingFree := seg.FreeMinutes

		for _, date := range dates {
			minutes := dayMinutes[date]
			segmentMinutes += minutes

			if seg.Type == domain.SegmentFree {
				continue
			}

			used := minutes
			if used > remainingFree {
				used = remainingFree
			}
			if used < 0 {
				used = 0
			}
			remainingFree -= used
			chargeable := minutes - used
			if chargeable < 0 {
				chargeable = 0
			}

			dayAmount, err := chargeDay(seg, chargeable)
			if err != nil {
				return domain.BillingResult{}, err
			}

			if seg.MaxCharge != nil {
				cap := decimal.NewFromFloat(*seg.MaxCharge)
				if dayAmount.GreaterThanOrEqual(cap) {
					dayAmount = cap
					capped = true
				}
			}
			segmentAmount = segmentAmount.Add(dayAmount)
		}

		segmentAmount = segmentAmount.Round(2)
		total = total.Add(segmentAmount)

		reportedFreeMinutes := seg.FreeMinutes
		if seg.Type == domain.SegmentFree {
			reportedFreeMinutes = segmentMinutes
		}

		breakdown = append(breakdown, domain.BillingSegmentBreakdown{
			Name:        seg.Name,
			Minutes:     segmentMinutes,
			Amount:      segmentAmount.StringFixed(2),
			FreeMinutes: reportedFreeMinutes,
			Capped:      capped,
		})
	}

	return domain.BillingResult{
		DurationMinutes: durationMinutes,
		TotalAmount:     total.Round(2).StringFixed(2),
		Breakdown:       breakdown,
	}, nil
}

// chargeDay prices one segment's chargeable minutes for a single local-date
// bucket; unit/tier indexing restarts at zero for each bucket.
func chargeDay(seg domain.BillingSegment, chargeableMinutes int) (decimal.Decimal, error) {
	if chargeableMinutes <= 0 || seg.UnitMinutes <= 0 {
		return decimal.NewFromInt(0), nil
	}
	units := (chargeableMinutes + seg.UnitMinutes - 1) / seg.UnitMinutes

	switch seg.Type {
	case domain.SegmentPeriodic:
		return decimal.NewFromFloat(seg.UnitPrice).Mul(decimal.NewFromInt(int64(units))), nil
	case domain.SegmentTiered:
		amount := decimal.NewFromInt(0)
		for u := 0; u < units; u++ {
			unitStart := u * seg.UnitMinutes
			tier, err := matchTier(seg.Tiers, unitStart)
			if err != nil {
				return decimal.Decimal{}, err
			}
			amount = amount.Add(decimal.NewFromFloat(tier.UnitPrice))
		}
		return amount, nil
	default:
		return decimal.NewFromInt(0), nil
	}
}

func matchTier(tiers []domain.BillingTier, unitStartMinute int) (domain.BillingTier, error) {
	for _, t := range tiers {
		if unitStartMinute < t.StartMinute {
			continue
		}
		if t.EndMinute != nil && unitStartMinute >= *t.EndMinute {
			continue
		}
		return t, nil
	}
	return domain.BillingTier{}, fmt.Errorf("billing: no tier matches unit start minute %d", unitStartMinute)
}
