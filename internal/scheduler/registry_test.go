package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddRejectsOverlap(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(Window{ID: "w1", TeacherID: "T", Interval: NewInterval(1, Hours(10), Hours(12))}))

	err := reg.Add(Window{ID: "w2", TeacherID: "T", Interval: NewInterval(1, Hours(9), Hours(11))})
	assert.ErrorIs(t, err, ErrOverlap)

	require.NoError(t, reg.Add(Window{ID: "w3", TeacherID: "T", Interval: NewInterval(1, Hours(12), Hours(14))}), "touching windows are fine")
	require.NoError(t, reg.Add(Window{ID: "w4", TeacherID: "other", Interval: NewInterval(1, Hours(9), Hours(11))}), "other teachers are independent")

	err = reg.Add(Window{ID: "w5", TeacherID: "T", Interval: NewInterval(1, Hours(15), Hours(15))})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestRegistryIsAvailableRequiresContainment(t *testing.T) {
	reg := NewRegistry(Window{ID: "w1", TeacherID: "T", Interval: NewInterval(1, Hours(9), Hours(12))})

	assert.True(t, reg.IsAvailable("T", NewInterval(1, Hours(9), Hours(10))))
	assert.True(t, reg.IsAvailable("T", NewInterval(1, Hours(11), Hours(12))))
	assert.False(t, reg.IsAvailable("T", NewInterval(1, Hours(11), Hours(13))))
	assert.False(t, reg.IsAvailable("T", NewInterval(2, Hours(9), Hours(10))))
	assert.False(t, reg.IsAvailable("unknown", NewInterval(1, Hours(9), Hours(10))))
}

func TestRegistryUpdateExcludesSelf(t *testing.T) {
	reg := NewRegistry(
		Window{ID: "w1", TeacherID: "T", Interval: NewInterval(1, Hours(9), Hours(11))},
		Window{ID: "w2", TeacherID: "T", Interval: NewInterval(1, Hours(13), Hours(15))},
	)

	require.NoError(t, reg.Update(Window{ID: "w1", TeacherID: "T", Interval: NewInterval(1, Hours(8), Hours(12))}))
	assert.True(t, reg.IsAvailable("T", NewInterval(1, Hours(8), Hours(9))))

	err := reg.Update(Window{ID: "w1", TeacherID: "T", Interval: NewInterval(1, Hours(8), Hours(14))})
	assert.ErrorIs(t, err, ErrOverlap)

	err = reg.Update(Window{ID: "missing", TeacherID: "T", Interval: NewInterval(2, Hours(8), Hours(9))})
	assert.ErrorIs(t, err, ErrUnknownWindow)
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry(Window{ID: "w1", TeacherID: "T", Interval: NewInterval(3, Hours(9), Hours(10))})
	assert.True(t, reg.Remove("T", "w1"))
	assert.False(t, reg.Remove("T", "w1"))
	assert.False(t, reg.IsAvailable("T", NewInterval(3, Hours(9), Hours(10))))
	assert.Empty(t, reg.Windows("T"))
}

func TestCheckWindow(t *testing.T) {
	existing := []Window{{ID: "w1", TeacherID: "T", Interval: NewInterval(1, Hours(10), Hours(12))}}

	assert.ErrorIs(t, CheckWindow(existing, Window{TeacherID: "T", Interval: NewInterval(1, Hours(9), Hours(11))}), ErrOverlap)
	assert.NoError(t, CheckWindow(existing, Window{ID: "w1", TeacherID: "T", Interval: NewInterval(1, Hours(9), Hours(11))}))
	assert.NoError(t, CheckWindow(existing, Window{TeacherID: "T", Interval: NewInterval(1, Hours(12), Hours(13))}))
}
