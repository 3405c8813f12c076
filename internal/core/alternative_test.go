package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/stsched/internal/geom"
	"github.com/elektrokombinacija/stsched/internal/interval"
	"github.com/elektrokombinacija/stsched/internal/trajectory"
)

func TestAlternative_BranchMerge(t *testing.T) {
	_, a1, _ := createTestSchedule(t)
	root := NewAlternative()
	require.NoError(t, update(t, root, a1).AddJob(mustJob(t, a1, geom.Pt(0, 0), 10, 5)))

	child, err := root.Branch()
	require.NoError(t, err)
	assert.Same(t, root, child.Parent())
	assert.True(t, root.IsBranched())

	_, err = root.Update(a1)
	assert.ErrorIs(t, err, ErrIllegalState, "parent is frozen while branched")
	_, err = root.Branch()
	assert.ErrorIs(t, err, ErrIllegalState)

	require.NoError(t, update(t, child, a1).AddJob(mustJob(t, a1, geom.Pt(0, 0), 20, 5)))
	require.NoError(t, child.Merge())

	assert.False(t, root.IsBranched())
	assert.Len(t, root.Jobs(), 2)
	assert.ErrorIs(t, child.Merge(), ErrIllegalState)
	assert.ErrorIs(t, child.Delete(), ErrIllegalState)
	_, err = child.Update(a1)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestAlternative_BranchDelete(t *testing.T) {
	_, a1, _ := createTestSchedule(t)
	root := NewAlternative()
	require.NoError(t, update(t, root, a1).AddJob(mustJob(t, a1, geom.Pt(0, 0), 10, 5)))

	child, err := root.Branch()
	require.NoError(t, err)
	require.NoError(t, update(t, child, a1).AddJob(mustJob(t, a1, geom.Pt(0, 0), 20, 5)))
	assert.Len(t, root.Jobs(), 1, "the branch is a copy")

	require.NoError(t, child.Delete())
	assert.False(t, root.IsBranched())
	assert.Len(t, root.Jobs(), 1)
	assert.ErrorIs(t, child.Merge(), ErrIllegalState)

	// the parent can branch again
	again, err := root.Branch()
	require.NoError(t, err)
	require.NoError(t, again.Delete())
}

func TestAlternative_HeldUpdateFrozenWhileBranched(t *testing.T) {
	_, a1, _ := createTestSchedule(t)
	root := NewAlternative()
	u := update(t, root, a1)
	require.NoError(t, u.AddJob(mustJob(t, a1, geom.Pt(0, 0), 10, 5)))

	child, err := root.Branch()
	require.NoError(t, err)
	assert.ErrorIs(t, u.AddJob(mustJob(t, a1, geom.Pt(0, 0), 30, 5)), ErrIllegalState)
	assert.ErrorIs(t, u.AddJobRemoval(mustJob(t, a1, geom.Pt(0, 0), 40, 5)), ErrIllegalState)
	assert.ErrorIs(t, u.UpdateTrajectory(trajectory.Stationary(geom.Pt(0, 0), 50, 60)), ErrIllegalState)
	assert.Len(t, root.Jobs(), 1)

	require.NoError(t, child.Delete())
	require.NoError(t, u.AddJob(mustJob(t, a1, geom.Pt(0, 0), 30, 5)), "deleting the branch releases the parent")
	assert.Len(t, root.Jobs(), 2)

	child, err = root.Branch()
	require.NoError(t, err)
	cu := update(t, child, a1)
	require.NoError(t, child.Merge())

	assert.ErrorIs(t, u.AddJob(mustJob(t, a1, geom.Pt(0, 0), 50, 5)), ErrIllegalState, "merge replaced the update")
	require.NoError(t, cu.AddJob(mustJob(t, a1, geom.Pt(0, 0), 50, 5)), "merged update belongs to the parent")
	assert.Len(t, root.Jobs(), 3)

	require.NoError(t, root.Seal())
	assert.ErrorIs(t, cu.AddJob(mustJob(t, a1, geom.Pt(0, 0), 70, 5)), ErrIllegalState)
}

func TestAlternative_RootCannotMerge(t *testing.T) {
	root := NewAlternative()
	assert.ErrorIs(t, root.Merge(), ErrIllegalState)
	assert.ErrorIs(t, root.Delete(), ErrIllegalState)

	child, err := root.Branch()
	require.NoError(t, err)
	assert.ErrorIs(t, child.Seal(), ErrIllegalState, "only roots are sealed")
}

func TestAlternative_Seal(t *testing.T) {
	_, a1, a2 := createTestSchedule(t)
	alt := NewAlternative()
	require.NoError(t, update(t, alt, a1).AddJob(mustJob(t, a1, geom.Pt(0, 0), 10, 5)))
	update(t, alt, a2) // stays empty

	require.NoError(t, alt.Seal())
	assert.True(t, alt.IsSealed())
	assert.Len(t, alt.Updates(), 1, "empty updates are dropped")

	assert.ErrorIs(t, alt.Seal(), ErrIllegalState)
	_, err := alt.Update(a1)
	assert.ErrorIs(t, err, ErrIllegalState)
	_, err = alt.Branch()
	assert.ErrorIs(t, err, ErrIllegalState)

	u, ok := alt.UpdateOf("a1")
	require.True(t, ok)
	assert.ErrorIs(t, u.AddJob(mustJob(t, a1, geom.Pt(0, 0), 30, 5)), ErrIllegalState)
	assert.ErrorIs(t, u.UpdateTrajectory(trajectory.Stationary(geom.Pt(0, 0), 40, 50)), ErrIllegalState)
}

func TestUpdate_SelfConsistency(t *testing.T) {
	_, a1, _ := createTestSchedule(t)

	t.Run("jump between touching trajectories", func(t *testing.T) {
		alt := NewAlternative()
		u := update(t, alt, a1)
		require.NoError(t, u.UpdateTrajectory(trajectory.Stationary(geom.Pt(0, 0), 0, 5)))
		require.NoError(t, u.UpdateTrajectory(trajectory.Stationary(geom.Pt(1, 0), 5, 10)))
		assert.ErrorIs(t, alt.Seal(), ErrInconsistentAlternative)
		assert.False(t, alt.IsSealed())
	})

	t.Run("moving during job", func(t *testing.T) {
		alt := NewAlternative()
		u := update(t, alt, a1)
		require.NoError(t, u.UpdateTrajectory(trajectory.Must(
			trajectory.Vertex{Location: geom.Pt(0, 0), Time: 0},
			trajectory.Vertex{Location: geom.Pt(5, 0), Time: 5},
		)))
		require.NoError(t, u.AddJob(mustJob(t, a1, geom.Pt(0, 0), 2, 2)))
		assert.ErrorIs(t, alt.Seal(), ErrInconsistentAlternative)
	})

	t.Run("overlapping jobs", func(t *testing.T) {
		alt := NewAlternative()
		u := update(t, alt, a1)
		require.NoError(t, u.AddJob(mustJob(t, a1, geom.Pt(0, 0), 2, 2)))
		assert.ErrorIs(t, u.AddJob(mustJob(t, a1, geom.Pt(0, 0), 3, 2)), ErrInvalidArgument)
	})

	t.Run("job of another agent", func(t *testing.T) {
		alt := NewAlternative()
		u := update(t, alt, a1)
		other, err := NewJob(mustJob(t, a1, geom.Pt(0, 0), 2, 2).ID(), "a2", geom.Pt(0, 0), 2, 2)
		require.NoError(t, err)
		assert.ErrorIs(t, u.AddJob(other), ErrInvalidArgument)
	})
}

func TestAgentView_IdleSlots(t *testing.T) {
	s, a1, _ := createTestSchedule(t)
	j1 := commitJob(t, s, a1, 10, 5)
	commitJob(t, s, a1, 30, 5)

	slots := a1.IdleSlots(2, trajectory.EndOfTime)
	require.Len(t, slots, 3)
	assert.Equal(t, 2.0, slots[0].StartTime, "clipped to from")
	assert.Equal(t, 10.0, slots[0].FinishTime)
	assert.True(t, slots[0].Bounded)
	assert.Equal(t, 15.0, slots[1].StartTime)
	assert.Equal(t, 30.0, slots[1].FinishTime)
	assert.False(t, slots[2].Bounded)
	assert.Equal(t, trajectory.EndOfTime, slots[2].FinishTime)

	assert.True(t, slots[1].Fits(15, 20, 10))
	assert.False(t, slots[1].Fits(15, 20, 20))
	assert.False(t, slots[0].Fits(20, 25, 1))

	// removing j1 merges the first two slots
	alt := NewAlternative()
	require.NoError(t, update(t, alt, a1).AddJobRemoval(j1))
	u, _ := alt.UpdateOf("a1")
	view := NewAgentView(a1, u, nil)
	slots = view.IdleSlots(0, trajectory.EndOfTime)
	require.Len(t, slots, 2)
	assert.Equal(t, 30.0, slots[0].FinishTime)

	// time locked by others is cut out
	locked := interval.Single(18.0, 22.0)
	view = NewAgentView(a1, u, locked)
	slots = view.IdleSlots(0, 100)
	require.Len(t, slots, 3)
	assert.Equal(t, 18.0, slots[0].FinishTime)
	assert.True(t, slots[0].Bounded)
	assert.Equal(t, 22.0, slots[1].StartTime)
	assert.True(t, slots[1].StartLocation.Equal(geom.Pt(0, 0)))
}

func TestAgent_IsIdleFrom(t *testing.T) {
	s, a1, _ := createTestSchedule(t)
	assert.True(t, a1.IsIdleFrom(0))

	commitJob(t, s, a1, 10, 5)
	assert.False(t, a1.IsIdleFrom(0))
	assert.True(t, a1.IsIdleFrom(15))
}
