package contracts

import (
	"fmt"
	"time"
)

// Frequency 시계열 샘플링 간격
// 고정 간격(Step) 또는 달력 월 단위(Months) 중 하나
type Frequency struct {
	Step     time.Duration `json:"step,omitempty"`
	Months   int           `json:"months,omitempty"`
	MonthEnd bool          `json:"month_end,omitempty"` // 월말 기준 (1/31, 2/28, ...)
}

// IsZero reports whether no frequency could be inferred.
func (f Frequency) IsZero() bool {
	return f.Step == 0 && f.Months == 0
}

// Advance moves t forward by k periods.
func (f Frequency) Advance(t time.Time, k int) time.Time {
	if f.Months > 0 {
		if f.MonthEnd {
			first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
			return first.AddDate(0, f.Months*k+1, -1)
		}
		return t.AddDate(0, f.Months*k, 0)
	}
	return t.Add(time.Duration(k) * f.Step)
}

// Range 미래 시간 인덱스: last 직후부터 steps개 (last 자신은 제외)
func (f Frequency) Range(last time.Time, steps int) []time.Time {
	if steps <= 0 {
		return nil
	}
	out := make([]time.Time, steps)
	for i := 0; i < steps; i++ {
		out[i] = f.Advance(last, i+1)
	}
	return out
}

func (f Frequency) String() string {
	switch {
	case f.Months == 12:
		return "yearly"
	case f.Months == 3:
		return "quarterly"
	case f.Months == 1:
		return "monthly"
	case f.Months > 0:
		return fmt.Sprintf("%dM", f.Months)
	case f.Step == 24*time.Hour:
		return "daily"
	case f.Step == 7*24*time.Hour:
		return "weekly"
	case f.Step == time.Hour:
		return "hourly"
	default:
		return f.Step.String()
	}
}

// InferFrequency 타임스탬프 간격 추론
// 1) 달력 월 간격이 모두 같으면 월 단위
// 2) 그 외에는 가장 흔한 간격 (간격이 모두 같으면 그 간격)
func InferFrequency(times []time.Time) Frequency {
	if len(times) < 2 {
		return Frequency{}
	}

	if months, monthEnd, ok := calendarMonths(times); ok {
		return Frequency{Months: months, MonthEnd: monthEnd}
	}

	counts := make(map[time.Duration]int)
	var best time.Duration
	for i := 1; i < len(times); i++ {
		d := times[i].Sub(times[i-1])
		counts[d]++
		if counts[d] > counts[best] || (counts[d] == counts[best] && d < best) {
			best = d
		}
	}
	return Frequency{Step: best}
}

func calendarMonths(times []time.Time) (months int, monthEnd bool, ok bool) {
	months = -1
	monthEnd = true
	for i := 1; i < len(times); i++ {
		prev, cur := times[i-1], times[i]
		if !isMonthEnd(prev) || !isMonthEnd(cur) {
			monthEnd = false
		}
		if prev.Day() != cur.Day() && !monthEnd {
			return 0, false, false
		}
		if prev.Hour() != cur.Hour() || prev.Minute() != cur.Minute() {
			return 0, false, false
		}
		diff := (cur.Year()-prev.Year())*12 + int(cur.Month()-prev.Month())
		if diff <= 0 {
			return 0, false, false
		}
		if months == -1 {
			months = diff
		} else if months != diff {
			return 0, false, false
		}
	}
	return months, monthEnd, months > 0
}

func isMonthEnd(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}
