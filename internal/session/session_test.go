package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgefit/forge/internal/history"
	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/logging"
	"github.com/forgefit/forge/internal/setinput"
	"github.com/forgefit/forge/internal/units"
)

var start = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc  *Service
	hist *history.Store
	mem  *kv.Memory
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{mem: kv.NewMemory(), now: start}
	clock := func() time.Time { return f.now }
	f.hist = history.New(f.mem, logging.Discard(), history.WithClock(clock))
	prefs := units.NewPreferenceStore(f.mem, units.KG, logging.Discard())
	f.svc = New(f.mem, f.hist, prefs, logging.Discard())
	f.svc.SetClock(clock)
	return f
}

func TestStartCreatesEmptyExercises(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sess, err := f.svc.Start(ctx, "A", "Workout A", []string{"Front Squat", "Clean"})
	require.NoError(t, err)
	assert.Equal(t, start.UnixMilli(), sess.StartTime)
	require.Len(t, sess.Exercises, 2)
	assert.Equal(t, "Clean", sess.Exercises[1].Name)
	assert.Empty(t, sess.Exercises[0].Sets)

	_, ok, err := f.mem.Get(ctx, "activeWorkoutNew_A")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.Start(ctx, "A", "Workout A", nil)
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestAddSetUsesPreferredUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Start(ctx, "B", "Workout B", []string{"Push Press"})
	require.NoError(t, err)

	sess, parsed, err := f.svc.AddSet(ctx, "B", 0, "20 x 5")
	require.NoError(t, err)
	assert.Equal(t, 2, parsed.NumberOfBells)
	assert.Equal(t, units.KG, parsed.Unit)
	assert.InDelta(t, 200, sess.Exercises[0].TotalVolume, 1e-9)

	require.NoError(t, units.NewPreferenceStore(f.mem, units.KG, logging.Discard()).Set(ctx, units.LBS))
	sess, parsed, err = f.svc.AddSet(ctx, "B", 0, "single 50 x 2")
	require.NoError(t, err)
	assert.Equal(t, units.LBS, parsed.Unit)
	require.Len(t, sess.Exercises[0].Sets, 2)
	assert.InDelta(t, 200+units.Convert(100, units.LBS, units.KG), sess.Exercises[0].TotalVolume, 1e-9)
}

func TestAddSetRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Start(ctx, "A", "Workout A", []string{"Swing"})
	require.NoError(t, err)

	_, _, err = f.svc.AddSet(ctx, "A", 0, "heavy")
	var invalid *InvalidSetError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, setinput.MsgNoNumbers, invalid.Error())

	_, _, err = f.svc.AddSet(ctx, "A", 3, "20 x 5")
	assert.ErrorIs(t, err, ErrExercise)

	_, _, err = f.svc.AddSet(ctx, "missing", 0, "20 x 5")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestDeleteSetRecomputesVolume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Start(ctx, "A", "Workout A", []string{"Swing"})
	require.NoError(t, err)
	for _, in := range []string{"20 x 5", "24 x 5", "single 16 x 10"} {
		_, _, err := f.svc.AddSet(ctx, "A", 0, in)
		require.NoError(t, err)
	}

	sess, err := f.svc.DeleteSet(ctx, "A", 0, 1)
	require.NoError(t, err)
	require.Len(t, sess.Exercises[0].Sets, 2)
	assert.Equal(t, "single 16 x 10", sess.Exercises[0].Sets[1].RawInput)
	assert.InDelta(t, 360, sess.Exercises[0].TotalVolume, 1e-9)

	_, err = f.svc.DeleteSet(ctx, "A", 0, 5)
	assert.ErrorIs(t, err, ErrSet)
}

func TestNotesAndRest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Start(ctx, "C", "Workout C", []string{"Swing"})
	require.NoError(t, err)

	_, err = f.svc.SetNotes(ctx, "C", "grip gave out")
	require.NoError(t, err)

	f.now = start.Add(10 * time.Minute)
	sess, err := f.svc.StartRest(ctx, "C", 90)
	require.NoError(t, err)
	assert.Equal(t, "grip gave out", sess.Notes)
	assert.Equal(t, 90, sess.RestDuration)
	assert.Equal(t, f.now.UnixMilli(), sess.LastActiveTime)
	assert.Equal(t, 60, sess.RestRemaining(f.now.Add(30*time.Second)))

	_, err = f.svc.StartRest(ctx, "C", 0)
	assert.ErrorIs(t, err, ErrRest)
}

func TestFinishMovesSessionIntoHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Start(ctx, "A", "Workout A", []string{"Front Squat"})
	require.NoError(t, err)
	_, _, err = f.svc.AddSet(ctx, "A", 0, "24 x 6")
	require.NoError(t, err)
	_, err = f.svc.SetNotes(ctx, "A", "solid")
	require.NoError(t, err)

	f.now = start.Add(45 * time.Minute)
	w, err := f.svc.Finish(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "Workout A", w.WorkoutName)
	assert.Equal(t, "solid", w.Notes)
	assert.Equal(t, 45*time.Minute, w.Duration())
	assert.InDelta(t, 288, w.TotalVolume, 1e-9)

	_, err = f.svc.Get(ctx, "A")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Len(t, f.hist.History(ctx).Workouts, 1)
}

func TestCancelDiscards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Start(ctx, "A", "Workout A", []string{"Swing"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx, "A"))
	assert.ErrorIs(t, f.svc.Cancel(ctx, "A"), ErrNoSession)
	assert.Empty(t, f.hist.History(ctx).Workouts)
}

func TestListAndCorruptSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, id := range []string{"A", "B"} {
		_, err := f.svc.Start(ctx, id, "Workout "+id, nil)
		require.NoError(t, err)
	}
	require.NoError(t, f.mem.Set(ctx, kv.ActiveSessionKey("C"), "{broken"))

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].WorkoutID)
	assert.Equal(t, "B", list[1].WorkoutID)

	// An unreadable session can be replaced by a fresh start.
	_, err = f.svc.Start(ctx, "C", "Workout C", nil)
	assert.NoError(t, err)
}
