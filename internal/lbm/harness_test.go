package lbm

import (
	"context"
	"sync"
	"testing"
	"time"

	"lbm-go/internal/bundle"
)

// fakeTransport is a scripted bridge peer. The respond hook decides which
// events each outbound message produces; a nil hook swallows messages.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []Message
	events  chan Message
	respond func(n int, msg Message) []Message
	sendErr error
}

func newFakeTransport(respond func(n int, msg Message) []Message) *fakeTransport {
	return &fakeTransport{
		events:  make(chan Message, 16),
		respond: respond,
	}
}

func (f *fakeTransport) Send(msg Message) error {
	f.mu.Lock()
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		return err
	}
	f.sent = append(f.sent, msg)
	n := len(f.sent)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		for _, ev := range respond(n, msg) {
			f.events <- ev
		}
	}
	return nil
}

func (f *fakeTransport) Events() <-chan Message { return f.events }

func (f *fakeTransport) Close() error {
	close(f.events)
	return nil
}

func (f *fakeTransport) sentMessages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeLocal is an in-memory LocalStore.
type fakeLocal struct {
	config    []byte
	reactions map[int64]string
	session   []byte
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{reactions: make(map[int64]string)}
}

func (f *fakeLocal) LoadConfigCache() ([]byte, error) { return f.config, nil }

func (f *fakeLocal) SaveConfigCache(p []byte) error {
	f.config = append([]byte(nil), p...)
	return nil
}

func (f *fakeLocal) Reaction(postID int64) (string, error) { return f.reactions[postID], nil }

func (f *fakeLocal) SetReaction(postID int64, action string) error {
	f.reactions[postID] = action
	return nil
}

func (f *fakeLocal) ClearReaction(postID int64) error {
	delete(f.reactions, postID)
	return nil
}

func (f *fakeLocal) LoadSession() ([]byte, error) { return f.session, nil }

func (f *fakeLocal) SaveSession(p []byte) error {
	f.session = append([]byte(nil), p...)
	return nil
}

func (f *fakeLocal) ClearSession() error {
	f.session = nil
	return nil
}

func (f *fakeLocal) Close() error { return nil }

// fakeClock starts at a fixed instant and advances a millisecond per
// reading, so time-derived ids stay distinct.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type fakeIDs struct{}

func (fakeIDs) NewID() string { return "deadbeef-0000-4000-8000-000000000000" }

// rig wires a full client stack against a scripted transport.
type rig struct {
	transport *fakeTransport
	dispatch  *Dispatcher
	broker    *CredentialBroker
	uploads   *UploadOrchestrator
	store     *bundle.Store
	session   *Session
	local     *fakeLocal
	service   *Service
}

func newRig(t *testing.T, respond func(n int, msg Message) []Message) *rig {
	t.Helper()

	transport := newFakeTransport(respond)
	dispatch := NewDispatcher(NopLogger{})
	local := newFakeLocal()
	store := bundle.NewStore(local)
	session := NewSession()
	broker := NewCredentialBroker(transport, dispatch, 200*time.Millisecond, NopLogger{})
	uploads := NewUploadOrchestrator(transport, dispatch, broker, store, session, 200*time.Millisecond, NopLogger{})
	service := NewService(store, local, broker, uploads, session, newFakeClock(), fakeIDs{}, NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatch.Run(ctx, transport)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &rig{
		transport: transport,
		dispatch:  dispatch,
		broker:    broker,
		uploads:   uploads,
		store:     store,
		session:   session,
		local:     local,
		service:   service,
	}
}

// adminRig returns a rig with setup done and a privileged session held.
func adminRig(t *testing.T, respond func(n int, msg Message) []Message) *rig {
	t.Helper()
	r := newRig(t, respond)
	r.store.SetupRequired = false
	r.store.System.AdminHash = sha256Hex("hunter2")
	r.broker.SetToken("tok-test")
	r.session.BecomeAdmin("hunter2")
	return r
}

func okResults(n int, msg Message) []Message {
	switch msg.Kind {
	case KindTokenize:
		return []Message{{Kind: KindTokenResult, Success: true, Token: "tok-fresh"}}
	case KindUpload:
		return []Message{{Kind: KindUploadResult, Success: true}}
	}
	return nil
}
