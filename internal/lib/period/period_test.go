package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEnd(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{
			name:   "один месяц",
			start:  date(2026, time.March, 15),
			months: 1,
			want:   date(2026, time.April, 15),
		},
		{
			name:   "переход через конец года",
			start:  date(2026, time.December, 20),
			months: 1,
			want:   date(2027, time.January, 20),
		},
		{
			name:   "конец месяца переносится",
			start:  date(2026, time.January, 31),
			months: 1,
			want:   date(2026, time.March, 3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, End(tt.start, tt.months))
		})
	}
}

func TestExtend(t *testing.T) {
	tests := []struct {
		name        string
		prevEnd     time.Time
		confirmedAt time.Time
		want        time.Time
	}{
		{
			name:        "подтверждение до окончания периода",
			prevEnd:     date(2026, time.May, 10),
			confirmedAt: date(2026, time.May, 8),
			want:        date(2026, time.June, 10),
		},
		{
			name:        "подтверждение после окончания периода",
			prevEnd:     date(2026, time.May, 10),
			confirmedAt: date(2026, time.May, 12),
			want:        date(2026, time.June, 12),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extend(tt.prevEnd, tt.confirmedAt, 1))
		})
	}
}

func TestGraceDeadline(t *testing.T) {
	end := date(2026, time.May, 10)
	assert.Equal(t, end.Add(72*time.Hour), GraceDeadline(end, 72*time.Hour))
}
