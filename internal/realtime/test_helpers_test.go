package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/behex/chat-server/internal/proto"
	"github.com/behex/chat-server/internal/store"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// fakeConn implements SessionConn for tests. Inbound envelopes and read
// errors are fed through the reads channel; sent envelopes are recorded.
type fakeConn struct {
	mu     sync.Mutex
	sent   []proto.Outbound
	closed bool
	fail   bool

	reads chan readResult
}

type readResult struct {
	env proto.Inbound
	err error
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan readResult, 16)}
}

func (c *fakeConn) Send(env proto.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) ReadEnvelope(ctx context.Context) (proto.Inbound, error) {
	select {
	case r, ok := <-c.reads:
		if !ok {
			return proto.Inbound{}, io.EOF
		}
		return r.env, r.err
	case <-ctx.Done():
		return proto.Inbound{}, ctx.Err()
	}
}

func (c *fakeConn) push(env proto.Inbound) {
	c.reads <- readResult{env: env}
}

func (c *fakeConn) pushErr(err error) {
	c.reads <- readResult{err: err}
}

// disconnect ends the session's read loop as a transport close would.
func (c *fakeConn) disconnect() {
	close(c.reads)
}

func (c *fakeConn) setFail(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) envelopes(envType string) []proto.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []proto.Outbound
	for _, env := range c.sent {
		if env.Type == envType {
			out = append(out, env)
		}
	}
	return out
}

// mustEnvelope polls until the connection has received an envelope of the
// given type and returns the first one.
func mustEnvelope(t *testing.T, c *fakeConn, envType string) proto.Outbound {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if envs := c.envelopes(envType); len(envs) > 0 {
			return envs[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected envelope type %q not received", envType)
	return proto.Outbound{}
}

// neverEnvelope asserts no envelope of the given type arrives within a short
// settle window.
func neverEnvelope(t *testing.T, c *fakeConn, envType string) {
	t.Helper()

	time.Sleep(50 * time.Millisecond)
	if envs := c.envelopes(envType); len(envs) > 0 {
		t.Fatalf("unexpected envelope type %q: %+v", envType, envs[0])
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// codedErr mimics a chat collaborator domain error.
type codedErr struct{ msg string }

func (e *codedErr) Error() string  { return e.msg }
func (e *codedErr) Reason() string { return e.msg }

// fakeChat implements ChatService with in-memory fixtures.
type fakeChat struct {
	mu            sync.Mutex
	conversations map[int64][]int64 // user -> conversation ids
	participants  map[int64][]int64 // conversation -> user ids
	sendErr       error
	readErr       error
	nextID        int64
	saved         []*store.Message
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		conversations: make(map[int64][]int64),
		participants:  make(map[int64][]int64),
	}
}

func (f *fakeChat) UserConversationIDs(_ context.Context, userID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.conversations[userID]...), nil
}

func (f *fakeChat) ParticipantIDs(_ context.Context, conversationID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.participants[conversationID]...), nil
}

func (f *fakeChat) SendMessage(_ context.Context, senderID, conversationID int64, content, msgType string) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	msg := &store.Message{
		ID:             f.nextID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           store.MessageTypeText,
		CreatedAt:      time.Now().UTC(),
	}
	f.saved = append(f.saved, msg)
	return msg, nil
}

func (f *fakeChat) MarkConversationRead(_ context.Context, _, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readErr
}

// startSession runs a session for user over a fresh fake connection and waits
// until it is registered.
func startSession(t *testing.T, hub *Hub, chat ChatService, userID int64, username string) *fakeConn {
	t.Helper()

	conn := newFakeConn()
	user := &store.User{ID: userID, Username: username}
	session := NewSession(hub, chat, user, conn, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	waitFor(t, func() bool { return hub.Presence.IsOnline(userID) }, "session never came online")
	return conn
}
