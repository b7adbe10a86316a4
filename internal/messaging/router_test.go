package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionValid(t *testing.T) {
	assert.True(t, GetRoutes.Valid())
	assert.True(t, ProcessingComplete.Valid())
	assert.False(t, Action("analyzeRoute").Valid())
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter()
	r.RegisterFunc(GetSettings, func(ctx context.Context, req Request) Response {
		return Response{Success: true, Message: "ok"}
	})

	resp, err := r.Send(context.Background(), Request{Action: GetSettings})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "ok", resp.Message)

	resp = r.Handle(context.Background(), Request{Action: ExportAllData})
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown action", resp.Error)
}

func TestRouterRejectsUndeclaredAction(t *testing.T) {
	r := NewRouter()
	assert.Panics(t, func() {
		r.RegisterFunc(Action("nope"), func(ctx context.Context, req Request) Response { return Response{} })
	})
}

func TestRouterSendHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRouter().Send(ctx, Request{Action: GetSettings})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBroadcasterSkipsFullSubscribers(t *testing.T) {
	b := NewBroadcaster()
	fast, stopFast := b.Subscribe(4)
	defer stopFast()
	_, stopSlow := b.Subscribe(0)
	defer stopSlow()

	n := b.Publish(Request{Action: ProcessingProgress, Progress: 50})
	assert.Equal(t, 1, n)

	msg := <-fast
	assert.Equal(t, 50, msg.Progress)
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch, stop := b.Subscribe(1)
	stop()
	stop()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Publish(Request{Action: ProcessingComplete}))
}

func TestNilBroadcasterPublish(t *testing.T) {
	var b *Broadcaster
	assert.Equal(t, 0, b.Publish(Request{Action: ProcessingProgress}))
}
