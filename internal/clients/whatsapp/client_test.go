package whatsapp

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/types/events"
)

func newStateClient() *Client {
	return &Client{log: zerolog.Nop(), states: make(chan connState, 8)}
}

func TestHandleEventConnectionStates(t *testing.T) {
	tests := []struct {
		name    string
		evt     interface{}
		want    connState
		wantErr error
	}{
		{"disconnected", &events.Disconnected{}, stateClosed, nil},
		{"stream replaced", &events.StreamReplaced{}, stateClosed, nil},
		{"connect failure", &events.ConnectFailure{Reason: events.ConnectFailureServiceUnavailable}, stateClosed, nil},
		{"connect failure logged out", &events.ConnectFailure{Reason: events.ConnectFailureLoggedOut}, stateLoggedOut, ErrLoggedOut},
		{"stream error", &events.StreamError{Code: "503"}, stateClosed, nil},
		{"logged out", &events.LoggedOut{}, stateLoggedOut, ErrLoggedOut},
		{"temporary ban", &events.TemporaryBan{}, stateBanned, ErrTemporaryBan},
		{"client outdated", &events.ClientOutdated{}, stateOutdated, ErrClientOutdated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newStateClient()
			c.handleEvent(tt.evt)

			require.Len(t, c.states, 1)
			st := <-c.states
			assert.Equal(t, tt.want, st)
			assert.Equal(t, tt.wantErr, terminalErr(st))
		})
	}
}

func TestPushStateNeverBlocks(t *testing.T) {
	c := &Client{log: zerolog.Nop(), states: make(chan connState, 1)}
	c.pushState(stateClosed)
	c.pushState(stateClosed)
	assert.Len(t, c.states, 1)

	c.drainStates()
	assert.Empty(t, c.states)
}

func TestTerminalNotice(t *testing.T) {
	assert.Contains(t, terminalNotice(ErrTemporaryBan), "banned")
	assert.Contains(t, terminalNotice(ErrClientOutdated), "Upgrade")
	assert.Contains(t, terminalNotice(ErrLoggedOut), "Pair the device")
}
