package hwi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestMessage(t *testing.T) {
	require := require.New(t)

	req := NewCommandRequest("FADEDIM", "75", "2", "0", "[01:01:00:01:01]")
	require.Equal(SendCommandRequest, req.Kind)
	require.Equal("FADEDIM,75,2,0,[01:01:00:01:01]", req.Payload)
	require.Equal(DefaultPriority, req.Priority)
	require.NoError(req.Validate())

	mon := NewDataRequest("DLMON", MonitoringPriority)
	require.Equal(SendDataRequest, mon.Kind)
	require.Equal(1, mon.Priority)
	require.Equal(5, mon.WithPriority(5).Priority)
	require.Equal(1, mon.Priority)

	require.NoError(NewDisconnectRequest().Validate())
	require.ErrorIs(NewDataRequest("", DefaultPriority).Validate(), ErrInvalidRequest)
	require.ErrorIs(NewDataRequest("DLMON\r\nQUIT", DefaultPriority).Validate(), ErrInvalidRequest)
	require.ErrorIs(RequestMessage{Kind: 42, Payload: "x"}.Validate(), ErrInvalidRequest)
}

func TestResponseMessage(t *testing.T) {
	require := require.New(t)

	st := NewStateUpdate(ReadyForCommandState)
	require.True(st.IsStateUpdate())
	require.False(st.IsData())
	require.True(st.IsState(ReadyForCommandState))
	require.False(st.IsState(LoggedInState))
	require.False(st.IsFatal())
	require.Equal("state-update(ready-for-command)", st.String())

	data := NewResponseData("DL,[01:01:01],75")
	require.True(data.IsData())
	require.False(data.IsState(NotConnectedState))
	require.Equal(`server-response-data("DL,[01:01:01],75")`, data.String())

	fatal := ResponseMessage{Kind: StateUpdateResponse, State: NotConnectedState, Err: errors.New("gave up")}
	require.True(fatal.IsFatal())
	require.Equal("state-update(not-connected): gave up", fatal.String())
}

func TestFormatCommand(t *testing.T) {
	require := require.New(t)

	require.Equal("QUIT", FormatCommand(QuitCommand))
	require.Equal("RDL,[01:01:00:01:01]", FormatCommand("RDL", "[01:01:00:01:01]"))

	code, args := SplitFields(" KBP, [01:06:12] ,3 ")
	require.Equal("KBP", code)
	require.Equal([]string{"[01:06:12]", "3"}, args)

	code, args = SplitFields("OK")
	require.Equal("OK", code)
	require.Empty(args)
}
