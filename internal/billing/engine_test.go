package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newgpp/parksuite-core/internal/domain"
)

func shanghai(t *testing.T, year int, month time.Month, day, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func ptrFloat(f float64) *float64 { return &f }
func ptrInt(i int) *int           { return &i }

// Scenario 5: tiered rule with free minutes.
func TestSimulateFeeTieredWithFreeMinutes(t *testing.T) {
	payload := domain.BillingRulePayload{
		Segments: []domain.BillingSegment{
			{
				Name: "daytime-tiered",
				Type: domain.SegmentTiered,
				TimeWindow: &domain.TimeWindow{
					Start: "08:00", End: "20:00", Timezone: "Asia/Shanghai",
				},
				UnitMinutes: 30,
				FreeMinutes: 30,
				MaxCharge:   ptrFloat(20),
				Tiers: []domain.BillingTier{
					{StartMinute: 0, EndMinute: ptrInt(120), UnitPrice: 2},
					{StartMinute: 120, EndMinute: nil, UnitPrice: 3},
				},
			},
		},
	}

	entry := shanghai(t, 2026, time.January, 5, 9, 0)
	exit := shanghai(t, 2026, time.January, 5, 12, 0)

	result, err := SimulateFee(payload, entry, exit)
	require.NoError(t, err)
	require.Equal(t, 180, result.DurationMinutes)
	require.Equal(t, "11.00", result.TotalAmount)
	require.Len(t, result.Breakdown, 1)
	require.False(t, result.Breakdown[0].Capped)
	require.Equal(t, 30, result.Breakdown[0].FreeMinutes)
}

// Scenario 6: cross-day periodic cap.
func TestSimulateFeeCrossDayCap(t *testing.T) {
	payload := domain.BillingRulePayload{
		Segments: []domain.BillingSegment{
			{
				Name: "daily-periodic",
				Type: domain.SegmentPeriodic,
				TimeWindow: &domain.TimeWindow{
					Start: "08:00", End: "20:00", Timezone: "Asia/Shanghai",
				},
				UnitMinutes: 30,
				UnitPrice:   2,
				MaxCharge:   ptrFloat(20),
			},
		},
	}

	entry := shanghai(t, 2026, time.January, 1, 9, 0)
	exit := shanghai(t, 2026, time.January, 3, 15, 10)

	result, err := SimulateFee(payload, entry, exit)
	require.NoError(t, err)
	require.Equal(t, "60.00", result.TotalAmount)
	require.True(t, result.Breakdown[0].Capped)
}

// P6: total equals sum of segment amounts and every minute is attributed
// to at most one segment (checked indirectly: segment minutes sum to no
// more than the stay's duration).
func TestSimulateFeeMinutesDisjoint(t *testing.T) {
	payload := domain.BillingRulePayload{
		Segments: []domain.BillingSegment{
			{
				Name: "free-overnight",
				Type: domain.SegmentFree,
				TimeWindow: &domain.TimeWindow{
					Start: "20:00", End: "08:00", Timezone: "Asia/Shanghai",
				},
			},
			{
				Name: "daytime-periodic",
				Type: domain.SegmentPeriodic,
				TimeWindow: &domain.TimeWindow{
					Start: "08:00", End: "20:00", Timezone: "Asia/Shanghai",
				},
				UnitMinutes: 60,
				UnitPrice:   5,
			},
		},
	}

	entry := shanghai(t, 2026, time.January, 1, 0, 0)
	exit := shanghai(t, 2026, time.January, 2, 0, 0)

	result, err := SimulateFee(payload, entry, exit)
	require.NoError(t, err)

	sumMinutes := 0
	for _, b := range result.Breakdown {
		sumMinutes += b.Minutes
	}
	require.Equal(t, result.DurationMinutes, sumMinutes)
}

func TestSimulateFeeZeroWhenExitBeforeEntry(t *testing.T) {
	entry := shanghai(t, 2026, time.January, 1, 10, 0)
	exit := shanghai(t, 2026, time.January, 1, 9, 0)
	result, err := SimulateFee(domain.BillingRulePayload{}, entry, exit)
	require.NoError(t, err)
	require.Equal(t, 0, result.DurationMinutes)
	require.Equal(t, "0.00", result.TotalAmount)
}
