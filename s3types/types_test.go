package s3types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartSpec_Range(t *testing.T) {
	p := PartSpec{Index: 2, Offset: 5242880, Length: 5242880}

	assert.Equal(t, int64(10485759), p.End())
	assert.Equal(t, "bytes=5242880-10485759", p.HTTPRange())
}

func TestSessionState(t *testing.T) {
	tests := []struct {
		state    SessionState
		name     string
		terminal bool
	}{
		{SessionInit, "init", false},
		{SessionPartsInFlight, "parts_in_flight", false},
		{SessionCompleting, "completing", false},
		{SessionCompleted, "completed", true},
		{SessionAborting, "aborting", false},
		{SessionAborted, "aborted", true},
		{SessionState(42), "SessionState(42)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.state.String())
			assert.Equal(t, tt.terminal, tt.state.Terminal())
		})
	}
}

func TestPartStatus_String(t *testing.T) {
	assert.Equal(t, "succeeded", PartSucceeded.String())
	assert.Equal(t, "failed", PartFailed.String())
}

func TestMultipartSession_ZeroValue(t *testing.T) {
	var s MultipartSession
	assert.Equal(t, SessionInit, s.State)
	assert.False(t, s.State.Terminal())
}
