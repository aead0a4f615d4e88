// ABOUTME: Tests for decision parsing
package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	workers := DefaultOrder()

	tests := []struct {
		raw      string
		want     Decision
		terminal bool
		wantErr  bool
	}{
		{raw: "generator", want: RouteTo(WorkerGenerator)},
		{raw: "reflector", want: RouteTo(WorkerReflector)},
		{raw: " curator\n", want: RouteTo(WorkerCurator)},
		{raw: "FINISH", want: Terminate, terminal: true},
		{raw: "finish", wantErr: true},
		{raw: "Generator", wantErr: true},
		{raw: "__end__", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "planner", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDecision(tt.raw, workers)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrProtocolViolation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.terminal, got.IsTerminal())
		})
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, EndNode, Terminate.String())
	assert.Equal(t, "reflector", RouteTo(WorkerReflector).String())

	_, ok := Terminate.Worker()
	assert.False(t, ok)

	w, ok := RouteTo(WorkerCurator).Worker()
	require.True(t, ok)
	assert.Equal(t, WorkerCurator, w)

	_, ok = Decision{}.Worker()
	assert.False(t, ok, "zero decision selects nothing")
}

func TestOptionSet(t *testing.T) {
	assert.Equal(t, []string{"FINISH", "generator", "reflector", "curator"}, optionSet(DefaultOrder()))
}
