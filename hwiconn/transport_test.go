package hwiconn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-homeworks/hwi"
)

func TestTransport_Requests(t *testing.T) {
	require := require.New(t)

	tr := NewTransport()

	_, ok := tr.DequeueRequest()
	require.False(ok)

	tr.EnqueueRequest(hwi.NewCommandRequest("CMD1"))
	tr.EnqueueRequest(hwi.NewCommandRequest("DLMON").WithPriority(hwi.MonitoringPriority))
	tr.EnqueueRequest(hwi.NewCommandRequest("CMD2"))
	tr.EnqueueRequest(hwi.NewCommandRequest("KBMON").WithPriority(hwi.MonitoringPriority))
	require.Equal(4, tr.PendingRequests())

	entry, ok := tr.dequeueEntry()
	require.True(ok)
	require.Equal("DLMON", entry.Value.Payload)
	tr.requeue(entry)

	removed := tr.RemoveRequests(func(req hwi.RequestMessage) bool { return req.Payload == "KBMON" })
	require.Equal(1, removed)

	var got []string
	for {
		req, ok := tr.DequeueRequest()
		if !ok {
			break
		}
		got = append(got, req.Payload)
	}
	require.Equal([]string{"DLMON", "CMD1", "CMD2"}, got)
}

func TestTransport_Responses(t *testing.T) {
	require := require.New(t)

	tr := NewTransport()
	tr.PushResponse(hwi.NewStateUpdate(hwi.ReadyForLoginAttemptState))
	tr.PushResponse(hwi.NewResponseData("DL,[01:01:01],75"))
	require.Equal(2, tr.PendingResponses())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := tr.PopResponse(ctx)
	require.NoError(err)
	require.True(msg.IsState(hwi.ReadyForLoginAttemptState))

	tr.ResetResponses()
	require.Equal(0, tr.PendingResponses())

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer shortCancel()
	_, err = tr.PopResponse(shortCtx)
	require.ErrorIs(err, context.DeadlineExceeded)

	go func() {
		time.Sleep(10 * time.Millisecond)
		tr.PushResponse(hwi.NewResponseData("KBP,[01:06:12],3"))
	}()
	msg, err = tr.PopResponse(ctx)
	require.NoError(err)
	require.Equal("KBP,[01:06:12],3", msg.Data)
}
