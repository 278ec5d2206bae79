package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlarmController_LatchesUntilDebounceElapses(t *testing.T) {
	a := NewAlarmController(500 * time.Millisecond)
	th := DefaultThresholds()
	t0 := time.Unix(100, 0)

	st := a.Derive(Evaluate(snapshot(70, 85, 14, 90), th), t0)
	require.Equal(t, AlarmWarning, st.Level)
	require.Len(t, st.Causes, 1)
	assert.Contains(t, st.Causes[0], "hypoxemia")

	normal := Evaluate(snapshot(70, 85, 14, 98), th)

	// first normal reading starts the window
	st = a.Derive(normal, t0.Add(500*time.Millisecond))
	assert.Equal(t, AlarmWarning, st.Level)

	st = a.Derive(normal, t0.Add(900*time.Millisecond))
	assert.Equal(t, AlarmWarning, st.Level)

	st = a.Derive(normal, t0.Add(time.Second))
	assert.Equal(t, AlarmOff, st.Level)
	assert.Empty(t, st.Causes)
}

func TestAlarmController_RelapseRestartsWindow(t *testing.T) {
	a := NewAlarmController(500 * time.Millisecond)
	th := DefaultThresholds()
	t0 := time.Unix(100, 0)
	low := Evaluate(snapshot(45, 85, 14, 98), th)
	normal := Evaluate(snapshot(70, 85, 14, 98), th)

	a.Derive(low, t0)
	a.Derive(normal, t0.Add(500*time.Millisecond))
	a.Derive(low, t0.Add(time.Second))
	st := a.Derive(normal, t0.Add(1500*time.Millisecond))
	assert.Equal(t, AlarmWarning, st.Level)
	st = a.Derive(normal, t0.Add(2*time.Second))
	assert.Equal(t, AlarmOff, st.Level)
}

func TestAlarmController_CriticalWinsAndKeepsAllCauses(t *testing.T) {
	a := NewAlarmController(500 * time.Millisecond)
	st := a.Derive(Evaluate(snapshot(45, 85, 14, 85), DefaultThresholds()), time.Unix(0, 0))

	assert.Equal(t, AlarmCritical, st.Level)
	assert.True(t, st.SpO2Critical)
	require.Len(t, st.Causes, 2)
	assert.Contains(t, st.Causes[0], "critical hypoxemia")
	assert.Contains(t, st.Causes[1], "bradycardia")
}

func TestAlarmController_CriticalDowngradesOnlyAfterDebounce(t *testing.T) {
	a := NewAlarmController(500 * time.Millisecond)
	th := DefaultThresholds()
	t0 := time.Unix(0, 0)

	a.Derive(Evaluate(snapshot(70, 85, 14, 85), th), t0)
	// back to Warning: the latch follows the new cause immediately
	st := a.Derive(Evaluate(snapshot(70, 85, 14, 90), th), t0.Add(500*time.Millisecond))
	assert.Equal(t, AlarmWarning, st.Level)
	assert.False(t, st.SpO2Critical)
}

func TestAlarmController_SignalLossClearsAfterFreshVitals(t *testing.T) {
	a := NewAlarmController(500 * time.Millisecond)
	t0 := time.Unix(0, 0)

	st := a.Derive(NoSignal(4*time.Second), t0)
	require.Equal(t, AlarmCritical, st.Level)

	// no snapshot yet: parameters are not reported, signal latch stays
	st = a.Derive(NoSignal(5*time.Second), t0.Add(time.Second))
	assert.Equal(t, AlarmCritical, st.Level)

	normal := Evaluate(snapshot(70, 85, 14, 98), DefaultThresholds())
	a.Derive(normal, t0.Add(1500*time.Millisecond))
	st = a.Derive(normal, t0.Add(2*time.Second))
	assert.Equal(t, AlarmOff, st.Level)
}
