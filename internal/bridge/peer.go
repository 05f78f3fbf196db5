package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"lbm-go/internal/lbm"
)

// Peer is the bridge endpoint the client talks to. It owns the host
// store and the token sealer; raw hosting credentials never leave it.
// Outbound messages are handled one at a time in arrival order, and every
// result event carries a delivery id for log correlation only.
type Peer struct {
	host   HostStore
	sealer *Sealer
	apiKey string
	logger lbm.Logger

	mu     sync.Mutex
	ready  bool
	closed bool

	out    chan lbm.Message
	events chan lbm.Message
	done   chan struct{}
}

func NewPeer(host HostStore, sealer *Sealer, apiKey string, logger lbm.Logger) *Peer {
	if logger == nil {
		logger = lbm.NopLogger{}
	}
	return &Peer{
		host:   host,
		sealer: sealer,
		apiKey: apiKey,
		logger: logger,
		out:    make(chan lbm.Message, 16),
		events: make(chan lbm.Message, 16),
		done:   make(chan struct{}),
	}
}

// Start validates the host backend and begins handling messages. Sends
// before Start returns fail with ErrNotReady.
func (p *Peer) Start(ctx context.Context) error {
	if err := p.host.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("bridge host validation: %w", err)
	}
	p.mu.Lock()
	p.ready = true
	p.mu.Unlock()

	go p.run(ctx)
	return nil
}

func (p *Peer) Send(msg lbm.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return lbm.ErrDisconnected
	}
	if !p.ready {
		return lbm.ErrNotReady
	}
	select {
	case p.out <- msg:
		return nil
	default:
		return fmt.Errorf("%w: outbound queue full", lbm.ErrBusy)
	}
}

func (p *Peer) Events() <-chan lbm.Message { return p.events }

func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.ready = false
	p.mu.Unlock()

	close(p.done)
	return nil
}

func (p *Peer) run(ctx context.Context) {
	defer close(p.events)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case msg := <-p.out:
			p.emit(ctx, p.handle(ctx, msg))
		}
	}
}

func (p *Peer) emit(ctx context.Context, ev lbm.Message) {
	if ev.Kind == "" {
		return
	}
	ev.Delivery = uuid.NewString()
	select {
	case p.events <- ev:
	case <-ctx.Done():
	case <-p.done:
	}
}

func (p *Peer) handle(ctx context.Context, msg lbm.Message) lbm.Message {
	switch msg.Kind {
	case lbm.KindTokenize:
		return p.tokenize(msg)
	case lbm.KindUpload:
		return p.upload(ctx, msg)
	default:
		p.logger.Warn("dropping unknown bridge message", "kind", msg.Kind)
		return lbm.Message{}
	}
}

func (p *Peer) tokenize(msg lbm.Message) lbm.Message {
	if p.apiKey == "" || msg.RawKey != p.apiKey {
		p.logger.Warn("tokenize refused, key mismatch")
		return lbm.Message{
			Kind: lbm.KindTokenResult,
			Text: "invalid credentials",
			Code: lbm.CodeAuthRejected,
		}
	}
	token, err := p.sealer.Mint(msg.RawKey, msg.AdminPass)
	if err != nil {
		p.logger.Error("token minting failed", "error", err)
		return lbm.Message{
			Kind: lbm.KindTokenResult,
			Text: "token minting failed",
			Code: lbm.CodeUpstream,
		}
	}
	return lbm.Message{Kind: lbm.KindTokenResult, Success: true, Token: token}
}

func (p *Peer) upload(ctx context.Context, msg lbm.Message) lbm.Message {
	reject := func(text string, code lbm.ResultCode) lbm.Message {
		return lbm.Message{Kind: lbm.KindUploadResult, Text: text, Code: code}
	}

	creds, err := p.sealer.Unseal(msg.AuthToken)
	if err != nil || creds.Key != p.apiKey {
		return reject("Invalid or Corrupted Token", lbm.CodeAuthRejected)
	}
	// The system document carries the credential hash; writes to it need
	// the password double-check on top of the token.
	if msg.Filename == "system.js" && msg.PasswordCheck != creds.Pass {
		return reject("invalid credentials", lbm.CodeAuthRejected)
	}

	var name string
	var data []byte
	switch {
	case msg.MediaName != "":
		name = msg.MediaName
		data = msg.MediaPayload
	case msg.Filename != "":
		name = msg.Filename
		data = []byte(msg.FileContent)
	default:
		return reject("nothing to upload", lbm.CodeBadRequest)
	}

	if err := p.host.Put(ctx, name, data); err != nil {
		p.logger.Error("host write failed", "name", name, "error", err)
		return reject(err.Error(), lbm.CodeUpstream)
	}
	p.logger.Debug("stored file", "name", name, "bytes", len(data))
	return lbm.Message{Kind: lbm.KindUploadResult, Success: true, Text: "Saved"}
}

var _ lbm.Transport = (*Peer)(nil)
