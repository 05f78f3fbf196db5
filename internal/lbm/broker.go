package lbm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CredentialBroker owns the exchange of raw credentials for a durable
// opaque token and holds the resulting credential state. Because the wire
// protocol has no correlation ids, at most one exchange may be in flight;
// a second concurrent call fails with ErrBusy instead of racing for the
// same response.
type CredentialBroker struct {
	transport Transport
	dispatch  *Dispatcher
	timeout   time.Duration
	logger    Logger

	mu        sync.Mutex
	token     string
	legacyKey string
}

func NewCredentialBroker(transport Transport, dispatch *Dispatcher, timeout time.Duration, logger Logger) *CredentialBroker {
	if logger == nil {
		logger = NopLogger{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CredentialBroker{
		transport: transport,
		dispatch:  dispatch,
		timeout:   timeout,
		logger:    logger,
	}
}

// Token returns the current durable token, empty if none is held.
func (b *CredentialBroker) Token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

// SetToken installs a token recovered from an authoritative bundle. A
// token always supersedes any stored raw key.
func (b *CredentialBroker) SetToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
	if token != "" {
		b.legacyKey = ""
	}
}

// LegacyKey returns the raw hosting key carried over from bundles written
// before tokens existed. It is only useful as tokenize input.
func (b *CredentialBroker) LegacyKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.legacyKey
}

func (b *CredentialBroker) SetLegacyKey(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.token == "" {
		b.legacyKey = key
	}
}

// Tokenize sends raw credentials to the peer and waits for the token
// event. It returns ("", nil) both when the peer rejects the credentials
// and when no response arrives before the timeout; the two are
// indistinguishable to callers, as the protocol cannot tell them apart.
// On success the token is stored and the legacy raw key is cleared.
func (b *CredentialBroker) Tokenize(ctx context.Context, rawKey, password string) (string, error) {
	if b.transport == nil {
		return "", ErrDisconnected
	}
	ch, release, err := b.dispatch.Reserve(KindTokenResult)
	if err != nil {
		return "", err
	}
	defer release()

	err = b.transport.Send(Message{
		Kind:      KindTokenize,
		RawKey:    rawKey,
		AdminPass: password,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDisconnected, err)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		if !msg.Success || msg.Token == "" {
			b.logger.Warn("token exchange rejected", "reason", msg.Text)
			return "", nil
		}
		b.SetToken(msg.Token)
		return msg.Token, nil
	case <-timer.C:
		b.logger.Warn("token exchange timed out", "timeout", b.timeout)
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Repair re-runs the credential exchange after a stored token was
// rejected. The caller supplies the raw key again; the freshly minted
// token replaces the bad one.
func (b *CredentialBroker) Repair(ctx context.Context, rawKey, password string) (string, error) {
	token, err := b.Tokenize(ctx, rawKey, password)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("credential repair failed")
	}
	return token, nil
}
