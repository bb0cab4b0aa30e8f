package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy(t *testing.T) {
	tests := []struct {
		p        Policy
		want     string
		single   bool
		optional bool
	}{
		{PolicyAlways, "always", false, false},
		{PolicyLatest, "latest", false, false},
		{PolicyOptional, "optional", false, true},
		{PolicySingle, "single", true, false},
		{PolicySingleOptional, "single-optional", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.String())
			assert.Equal(t, tt.single, tt.p.IsSingle())
			assert.Equal(t, tt.optional, tt.p.IsOptional())
			assert.True(t, tt.p.IsValid())

			parsed, err := ParsePolicy(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.p, parsed)
		})
	}

	assert.Equal(t, "unknown(99)", Policy(99).String())
	assert.False(t, Policy(99).IsValid())
}

func TestPolicy_JSON(t *testing.T) {
	type wrapper struct {
		Policy Policy `json:"policy"`
	}

	data, err := json.Marshal(wrapper{Policy: PolicySingleOptional})
	require.NoError(t, err)
	assert.JSONEq(t, `{"policy":"single-optional"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"policy":"latest"}`), &w))
	assert.Equal(t, PolicyLatest, w.Policy)

	assert.Error(t, json.Unmarshal([]byte(`{"policy":"sometimes"}`), &w))

	_, err = json.Marshal(wrapper{Policy: Policy(42)})
	assert.Error(t, err)
}

func TestScheduling(t *testing.T) {
	tests := []struct {
		s        Scheduling
		want     string
		realtime bool
	}{
		{SchedulingOther, "other", false},
		{SchedulingFIFO, "fifo", true},
		{SchedulingRoundRobin, "rr", true},
		{SchedulingBatch, "batch", false},
		{SchedulingIdle, "idle", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.String())
			assert.Equal(t, tt.realtime, tt.s.IsRealtime())

			var s Scheduling
			require.NoError(t, s.UnmarshalText([]byte(tt.want)))
			assert.Equal(t, tt.s, s)
		})
	}

	var s Scheduling
	assert.Error(t, s.UnmarshalText([]byte("deadline")))
}

func TestWorkerState(t *testing.T) {
	tests := []struct {
		s        WorkerState
		want     string
		finished bool
	}{
		{WorkerStarting, "starting", false},
		{WorkerRunning, "running", false},
		{WorkerStopping, "stopping", false},
		{WorkerStopped, "stopped", true},
		{WorkerPanicked, "panicked", true},
		{WorkerState(99), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.String())
			assert.Equal(t, tt.finished, tt.s.IsFinished())
		})
	}
}
