package biztime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoments(t *testing.T) {
	moments, err := ParseMoments([]string{"17:00", "09:30", " 8:05"})
	require.NoError(t, err)
	assert.Equal(t, []Moment{{8, 5}, {9, 30}, {17, 0}}, moments)

	_, err = ParseMoments([]string{"25:00"})
	assert.Error(t, err)
	_, err = ParseMoments([]string{"9h30"})
	assert.Error(t, err)
}

func TestNextMoment(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	moments := []Moment{{9, 30}, {17, 0}}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before first", time.Date(2020, 3, 20, 9, 29, 55, 0, loc), time.Date(2020, 3, 20, 9, 30, 0, 0, loc)},
		{"exactly on a moment is not after", time.Date(2020, 3, 20, 9, 30, 0, 0, loc), time.Date(2020, 3, 20, 17, 0, 0, 0, loc)},
		{"after last rolls to tomorrow", time.Date(2020, 3, 20, 18, 0, 0, 0, loc), time.Date(2020, 3, 21, 9, 30, 0, 0, loc)},
		{"end of month", time.Date(2020, 3, 31, 23, 0, 0, 0, loc), time.Date(2020, 4, 1, 9, 30, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextMoment(moments, tt.now, loc)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}

	_, ok := NextMoment(nil, time.Now(), loc)
	assert.False(t, ok)
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2020, 3, 20, 12, 0, 0, 0, time.UTC)
	n, unit := TimeAgo(nil, now)
	assert.Equal(t, -1, n)
	assert.Equal(t, "never", unit)

	ts := now.Add(-26 * time.Hour)
	n, unit = TimeAgo(&ts, now)
	assert.Equal(t, 1, n)
	assert.Equal(t, "day", unit)

	ts = now.Add(-90 * time.Second)
	n, unit = TimeAgo(&ts, now)
	assert.Equal(t, 1, n)
	assert.Equal(t, "minute", unit)
}
