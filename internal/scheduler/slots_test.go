package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogSlotOrder(t *testing.T) {
	slots := DefaultCatalog().Slots()
	require.Len(t, slots, 30)
	assert.Equal(t, NewInterval(1, Hours(9), Hours(10)), slots[0])
	assert.Equal(t, NewInterval(1, Hours(14), Hours(15)), slots[3])
	assert.Equal(t, NewInterval(5, Hours(16), Hours(17)), slots[29])
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Less(slots[i]), "%s before %s", slots[i-1], slots[i])
	}
}

func TestNewCatalogNormalises(t *testing.T) {
	catalog, err := NewCatalog([]int{3, 1, 3}, []TimeRange{
		{Start: Hours(13), End: Hours(14)},
		{Start: Hours(8), End: Hours(9)},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, catalog.Days)
	assert.Equal(t, Hours(8), catalog.Times[0].Start)

	_, err = NewCatalog([]int{9}, DefaultTimes)
	assert.ErrorIs(t, err, ErrInvalidInterval)
	_, err = NewCatalog(nil, DefaultTimes)
	assert.ErrorIs(t, err, ErrInvalidInterval)
	_, err = NewCatalog(DefaultDays, []TimeRange{{Start: Hours(10), End: Hours(9)}})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestParseConfigLists(t *testing.T) {
	days, err := ParseDays([]string{"1", " 2", "", "6"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 6}, days)

	_, err = ParseDays([]string{"mon"})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	times, err := ParseTimeRanges([]string{"09:00-10:00", "14-15:30"})
	require.NoError(t, err)
	assert.Equal(t, []TimeRange{
		{Start: Hours(9), End: Hours(10)},
		{Start: Hours(14), End: NewClock(15, 30)},
	}, times)

	_, err = ParseTimeRange("10:00")
	assert.ErrorIs(t, err, ErrInvalidInterval)
	_, err = ParseTimeRange("11:00-10:00")
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestBuildTimesSkipsBreaks(t *testing.T) {
	times := BuildTimes(Hours(9), Hours(17), time.Hour, TimeRange{Start: Hours(12), End: Hours(14)})
	assert.Equal(t, DefaultTimes, times)

	half := BuildTimes(Hours(9), Hours(10), 30*time.Minute)
	assert.Equal(t, []TimeRange{
		{Start: Hours(9), End: NewClock(9, 30)},
		{Start: NewClock(9, 30), End: Hours(10)},
	}, half)

	assert.Nil(t, BuildTimes(Hours(9), Hours(10), 0))
}

func TestParsePeriodGrid(t *testing.T) {
	times, err := ParsePeriodGrid("07:00-12:00", 45*time.Minute, []string{"08:30-09:00"})
	require.NoError(t, err)
	assert.Equal(t, []TimeRange{
		{Start: Hours(7), End: Hours(7) + 45},
		{Start: Hours(7) + 45, End: Hours(8) + 30},
		{Start: Hours(9) + 15, End: Hours(10)},
		{Start: Hours(10), End: Hours(10) + 45},
		{Start: Hours(10) + 45, End: Hours(11) + 30},
	}, times)

	_, err = ParsePeriodGrid("", time.Hour, nil)
	assert.ErrorIs(t, err, ErrInvalidInterval)
	_, err = ParsePeriodGrid("09:00-10:00", 2*time.Hour, nil)
	assert.ErrorIs(t, err, ErrInvalidInterval)
	_, err = ParsePeriodGrid("09:00-17:00", time.Hour, []string{"lunch"})
	assert.Error(t, err)
}
