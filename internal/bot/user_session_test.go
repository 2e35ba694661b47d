package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler logs message texts and can block or panic on request.
type recordingHandler struct {
	mu      sync.Mutex
	seen    []string
	release chan struct{}
	started chan struct{}
}

func newRecordingHandler(blocking bool) *recordingHandler {
	h := &recordingHandler{release: make(chan struct{}), started: make(chan struct{})}
	if !blocking {
		close(h.release)
	}
	return h
}

func (h *recordingHandler) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	h.mu.Lock()
	h.seen = append(h.seen, msg.Text)
	h.mu.Unlock()

	switch msg.Text {
	case "PANIC":
		panic("simulated worker panic")
	case "BLOCK":
		close(h.started)
		<-h.release
	}
}

func (h *recordingHandler) log() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func startTestSession(id int64, handler MessageHandler) *UserSession {
	ctx, cancel := context.WithCancel(context.Background())
	s := &UserSession{
		userId:  id,
		profile: profileID(id),
		inbox:   make(chan SessionMessage, 10),
		ctx:     ctx,
		cancel:  cancel,
		handler: handler,
	}
	s.StartWorker()
	return s
}

func TestWorker_SequentialProcessing(t *testing.T) {
	handler := newRecordingHandler(false)
	session := startTestSession(123, handler)
	defer session.Stop()

	for _, txt := range []string{"photo", "recent", "favorites"} {
		session.Send(SessionMessage{Text: txt})
	}
	session.SendSync(SessionMessage{Text: "barrier"})

	assert.Equal(t, []string{"photo", "recent", "favorites", "barrier"}, handler.log())
}

func TestWorker_PanicRecovery(t *testing.T) {
	handler := newRecordingHandler(false)
	session := startTestSession(123, handler)
	defer session.Stop()

	session.SendSync(SessionMessage{Text: "PANIC"})
	session.SendSync(SessionMessage{Text: "recovery"})

	assert.Equal(t, []string{"PANIC", "recovery"}, handler.log())
}

func TestWorker_UsersDoNotBlockEachOther(t *testing.T) {
	slow := newRecordingHandler(true)
	sessionA := startTestSession(1, slow)
	defer sessionA.Stop()

	fast := newRecordingHandler(false)
	sessionB := startTestSession(2, fast)
	defer sessionB.Stop()

	go sessionA.SendSync(SessionMessage{Text: "BLOCK"})
	select {
	case <-slow.started:
	case <-time.After(time.Second):
		t.Fatal("session A did not start processing")
	}

	sessionB.SendSync(SessionMessage{Text: "fast"})
	assert.Equal(t, []string{"fast"}, fast.log())
	assert.Equal(t, []string{"BLOCK"}, slow.log())

	close(slow.release)
}

func TestWorker_StopDrainsQueue(t *testing.T) {
	handler := newRecordingHandler(true)
	ctx, cancel := context.WithCancel(context.Background())
	session := &UserSession{
		userId:  999,
		inbox:   make(chan SessionMessage, 10),
		ctx:     ctx,
		cancel:  cancel,
		handler: handler,
	}

	// Queue before the worker runs so nothing gets processed.
	var waiters []chan struct{}
	for i := 0; i < 5; i++ {
		done := make(chan struct{})
		waiters = append(waiters, done)
		session.inbox <- SessionMessage{Text: "pending", Done: done}
	}
	cancel()
	session.StartWorker()

	stopped := make(chan struct{})
	go func() {
		session.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop() timed out - potential deadlock")
	}
	for _, done := range waiters {
		select {
		case <-done:
		default:
			t.Fatal("pending message was not released")
		}
	}
}

func TestSession_ScanGenerations(t *testing.T) {
	session := &UserSession{}

	ctx1, gen1 := session.beginScan(context.Background())
	assert.True(t, session.isCurrent(gen1))

	ctx2, gen2 := session.beginScan(context.Background())
	assert.Error(t, ctx1.Err(), "starting a scan cancels the previous one")
	assert.False(t, session.isCurrent(gen1))
	assert.True(t, session.isCurrent(gen2))

	require.True(t, session.cancelScan())
	assert.Error(t, ctx2.Err())
	assert.False(t, session.isCurrent(gen2))
	assert.False(t, session.cancelScan(), "nothing left to cancel")
}
