package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateNew, false},
		{StateRegistered, false},
		{StateClassified, false},
		{StateRequestFulfilled, false},
		{StateAborted, false},
		{StateClosed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"new", StateNew, true},
		{"closed", StateClosed, true},
		{"upper case", State("NEW"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsInFlight(t *testing.T) {
	assert.True(t, StateNew.IsInFlight())
	assert.True(t, StateRegistered.IsInFlight())
	assert.True(t, StateClassified.IsInFlight())
	assert.False(t, StateRequestFulfilled.IsInFlight())
	assert.False(t, StateAborted.IsInFlight())
	assert.False(t, StateClosed.IsInFlight())
}

func TestTriggerFor(t *testing.T) {
	tr, err := TriggerFor(StateClassified)
	require.NoError(t, err)
	assert.Equal(t, TriggerClassify, tr)

	_, err = TriggerFor(StateNew)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StateNew)
	require.NotNil(t, config)

	// same state returns same config
	assert.Same(t, config, builder.Configure(StateNew))
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	assert.Panics(t, func() { NewBuilder().Configure(State("INVALID")) })
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	assert.Panics(t, func() { NewBuilder().Build(State("INVALID")) })
}

func TestStateConfiguration_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateNew).
		PermitIf(TriggerRegister, StateRegistered, func(ctx context.Context) bool {
			return false
		})

	machine := builder.Build(StateNew)

	err := machine.Fire(context.Background(), TriggerRegister)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGuardFailed))
	assert.Equal(t, StateNew, machine.State())
}

func TestStateConfiguration_PermitIf_MultipleTransitions(t *testing.T) {
	key := ctxKey("human")
	builder := NewBuilder()
	builder.Configure(StateClassified).
		PermitIf(TriggerFulfill, StateAborted, func(ctx context.Context) bool {
			return ctx.Value(key).(bool)
		}).
		PermitIf(TriggerFulfill, StateRequestFulfilled, func(ctx context.Context) bool {
			return !ctx.Value(key).(bool)
		})

	m1 := builder.Build(StateClassified)
	require.NoError(t, m1.Fire(context.WithValue(context.Background(), key, true), TriggerFulfill))
	assert.Equal(t, StateAborted, m1.State())

	m2 := builder.Build(StateClassified)
	require.NoError(t, m2.Fire(context.WithValue(context.Background(), key, false), TriggerFulfill))
	assert.Equal(t, StateRequestFulfilled, m2.State())
}

func TestBuild_MachinesAreIndependent(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateNew).Permit(TriggerRegister, StateRegistered)

	m := builder.Build(StateNew)
	builder.Configure(StateNew).Permit(TriggerAbort, StateAborted)

	assert.False(t, m.CanFire(TriggerAbort))
	assert.True(t, builder.Build(StateNew).CanFire(TriggerAbort))
}

func TestRequestMachine_Transitions(t *testing.T) {
	tests := []struct {
		name      string
		from      State
		trigger   Trigger
		wantState State
		wantErr   bool
	}{
		{"new -> registered", StateNew, TriggerRegister, StateRegistered, false},
		{"registered -> classified", StateRegistered, TriggerClassify, StateClassified, false},
		{"classified -> fulfilled", StateClassified, TriggerFulfill, StateRequestFulfilled, false},
		{"new -> aborted", StateNew, TriggerAbort, StateAborted, false},
		{"registered -> aborted", StateRegistered, TriggerAbort, StateAborted, false},
		{"classified -> aborted", StateClassified, TriggerAbort, StateAborted, false},
		{"fulfilled cannot abort", StateRequestFulfilled, TriggerAbort, StateRequestFulfilled, true},
		{"new -> closed", StateNew, TriggerClose, StateClosed, false},
		{"fulfilled -> closed", StateRequestFulfilled, TriggerClose, StateClosed, false},
		{"aborted -> closed", StateAborted, TriggerClose, StateClosed, false},
		{"classified re-entry", StateClassified, TriggerClassify, StateClassified, false},
		{"aborted re-entry", StateAborted, TriggerAbort, StateAborted, false},
		{"new cannot classify", StateNew, TriggerClassify, StateNew, true},
		{"new cannot fulfill", StateNew, TriggerFulfill, StateNew, true},
		{"registered cannot fulfill", StateRegistered, TriggerFulfill, StateRegistered, true},
		{"aborted cannot register", StateAborted, TriggerRegister, StateAborted, true},
		{"closed is terminal", StateClosed, TriggerClose, StateClosed, true},
		{"closed cannot abort", StateClosed, TriggerAbort, StateClosed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRequestMachine(tt.from)
			err := m.Fire(context.Background(), tt.trigger)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, m.State())
		})
	}
}

func TestRequestMachine_PermittedTriggers(t *testing.T) {
	assert.Equal(t, []Trigger{TriggerAbort, TriggerClose, TriggerRegister}, NewRequestMachine(StateNew).PermittedTriggers())
	assert.Empty(t, NewRequestMachine(StateClosed).PermittedTriggers())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateNew, StateRegistered))
	assert.True(t, CanTransition(StateAborted, StateClosed))
	assert.True(t, CanTransition(StateClassified, StateClassified))
	assert.False(t, CanTransition(StateNew, StateRequestFulfilled))
	assert.False(t, CanTransition(StateClosed, StateAborted))
	assert.False(t, CanTransition(StateNew, StateNew))
	assert.False(t, CanTransition(State("bogus"), StateClosed))
}
