package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, cfg.Scheduler.Days)
	assert.Len(t, cfg.Scheduler.Slots, 6)
	assert.Equal(t, "09:00-10:00", cfg.Scheduler.Slots[0])
	assert.Nil(t, cfg.Scheduler.Rooms)
	assert.Zero(t, cfg.Scheduler.Period)
	assert.Equal(t, "07:00-15:00", cfg.Scheduler.DayHours)
	assert.False(t, cfg.Scheduler.CheckRooms)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.LockTTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TimetableTTL)
	assert.Equal(t, 2, cfg.Jobs.Workers)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SCHEDULER_DAYS", "1, 2,3,4,5,6")
	v.Set("SCHEDULER_ROOMS", "A101, LAB-1 ,")
	v.Set("SCHEDULER_LOCK_TTL", "nonsense")
	v.Set("TIMETABLE_CACHE_TTL", "90s")
	cfg := fromViper(v)

	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, cfg.Scheduler.Days)
	assert.Equal(t, []string{"A101", "LAB-1"}, cfg.Scheduler.Rooms)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.LockTTL)
	assert.Equal(t, 90*time.Second, cfg.Cache.TimetableTTL)
}

func TestPeriodGridSettings(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SCHEDULER_DAY_HOURS", " 07:00-14:00 ")
	v.Set("SCHEDULER_PERIOD", "45m")
	v.Set("SCHEDULER_BREAKS", "09:15-09:30, 11:45-12:15")
	cfg := fromViper(v)

	assert.Equal(t, "07:00-14:00", cfg.Scheduler.DayHours)
	assert.Equal(t, 45*time.Minute, cfg.Scheduler.Period)
	assert.Equal(t, []string{"09:15-09:30", "11:45-12:15"}, cfg.Scheduler.Breaks)
}
