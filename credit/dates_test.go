package credit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/credit-engine/credit"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonthsClamped(t *testing.T) {
	cases := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{"plain step", day(2024, time.March, 15), 1, day(2024, time.April, 15)},
		{"year rollover", day(2024, time.November, 10), 3, day(2025, time.February, 10)},
		{"jan 31 to february leap", day(2024, time.January, 31), 1, day(2024, time.February, 29)},
		{"jan 31 to february non-leap", day(2023, time.January, 31), 1, day(2023, time.February, 28)},
		{"jan 31 two months recovers day", day(2024, time.January, 31), 2, day(2024, time.March, 31)},
		{"may 31 to june clamps", day(2024, time.May, 31), 1, day(2024, time.June, 30)},
		{"zero months normalizes", day(2024, time.July, 4), 0, day(2024, time.July, 4)},
		{"many months", day(2024, time.January, 31), 13, day(2025, time.February, 28)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := credit.AddMonthsClamped(tc.from, tc.months)
			assert.True(t, got.Equal(tc.want), "got %s, want %s", got, tc.want)
		})
	}
}

func TestAddMonthsClamped_StripsTimeOfDay(t *testing.T) {
	from := time.Date(2024, time.March, 15, 13, 45, 12, 0, time.UTC)
	got := credit.AddMonthsClamped(from, 1)
	assert.True(t, got.Equal(day(2024, time.April, 15)))
}

func TestBeforeDay(t *testing.T) {
	morning := time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, time.March, 15, 22, 0, 0, 0, time.UTC)

	assert.False(t, credit.BeforeDay(morning, evening), "same calendar day")
	assert.True(t, credit.BeforeDay(morning, day(2024, time.March, 16)))
	assert.False(t, credit.BeforeDay(day(2024, time.March, 16), morning))
	assert.True(t, credit.SameDay(morning, evening))
}
