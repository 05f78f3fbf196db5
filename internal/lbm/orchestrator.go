package lbm

import (
	"context"
	"fmt"
	"time"

	"lbm-go/internal/bundle"
)

// SaveKind names the document a save targets.
type SaveKind string

const (
	SaveSystem       SaveKind = "system"
	SaveInteractions SaveKind = "interactions"
	SaveUsers        SaveKind = "users"
	SaveFeed         SaveKind = "rss"
)

// sensitiveKinds require a live privileged secret before anything goes on
// the wire: the system document carries the credential hash, and the
// users document carries every password hash on the site. Interaction
// saves are anonymous-safe, since guests react, comment and message
// without any session. The feed rides on the system save, which already
// enforces the secret. The secret is still attached to every save when
// one is held.
var sensitiveKinds = map[SaveKind]bool{
	SaveSystem: true,
	SaveUsers:  true,
}

// RepairPrompter asks the operator for the raw hosting key when a stored
// token is rejected mid-save.
type RepairPrompter interface {
	PromptRawKey(reason string) (string, error)
}

// FeedExporter renders the public feed document.
type FeedExporter interface {
	Render() (string, error)
}

// MediaItem is one file in a batch upload.
type MediaItem struct {
	Path    string
	Payload []byte
}

// UploadOrchestrator serializes documents and drives them through the
// bridge one at a time. All saves share the single UPLOAD_RESULT awaiter
// slot, so overlapping saves fail fast with ErrBusy rather than racing
// for responses.
type UploadOrchestrator struct {
	transport Transport
	dispatch  *Dispatcher
	broker    *CredentialBroker
	store     *bundle.Store
	session   *Session
	prompter  RepairPrompter
	feed      FeedExporter
	timeout   time.Duration
	logger    Logger
}

func NewUploadOrchestrator(
	transport Transport,
	dispatch *Dispatcher,
	broker *CredentialBroker,
	store *bundle.Store,
	session *Session,
	timeout time.Duration,
	logger Logger,
) *UploadOrchestrator {
	if logger == nil {
		logger = NopLogger{}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &UploadOrchestrator{
		transport: transport,
		dispatch:  dispatch,
		broker:    broker,
		store:     store,
		session:   session,
		timeout:   timeout,
		logger:    logger,
	}
}

// SetPrompter attaches the interactive repair prompter. Without one,
// credential rejections surface as plain errors.
func (o *UploadOrchestrator) SetPrompter(p RepairPrompter) { o.prompter = p }

// SetFeedExporter attaches the feed renderer used after system saves.
func (o *UploadOrchestrator) SetFeedExporter(f FeedExporter) { o.feed = f }

// SaveBundle serializes the named document and uploads it. When a stored
// token is rejected and a prompter is attached, the orchestrator runs the
// repair exchange once and retries the save exactly once with the fresh
// token; a second rejection is terminal.
func (o *UploadOrchestrator) SaveBundle(ctx context.Context, kind SaveKind) error {
	return o.save(ctx, kind, "", true)
}

func (o *UploadOrchestrator) save(ctx context.Context, kind SaveKind, override string, allowRepair bool) error {
	if o.transport == nil {
		return ErrDisconnected
	}
	token := override
	if token == "" {
		token = o.broker.Token()
	}
	if token == "" {
		return ErrNoToken
	}
	passwordCheck := o.session.Secret()
	if sensitiveKinds[kind] && passwordCheck == "" {
		return ErrNoSession
	}

	content, filename, err := o.render(kind, token)
	if err != nil {
		return err
	}

	res, err := o.roundTrip(ctx, Message{
		Kind:          KindUpload,
		AuthToken:     token,
		PasswordCheck: passwordCheck,
		FileContent:   content,
		Filename:      filename,
	})
	if err != nil {
		return err
	}
	if res.Success {
		o.logger.Info("document saved", "kind", kind, "filename", filename)
		if kind == SaveSystem {
			o.exportFeed(ctx, token)
		}
		return nil
	}

	if ClassifyFailure(res) == CodeAuthRejected && allowRepair && o.prompter != nil {
		return o.repairAndRetry(ctx, kind, res.Text)
	}
	return fmt.Errorf("upload of %s rejected: %s", filename, res.Text)
}

func (o *UploadOrchestrator) repairAndRetry(ctx context.Context, kind SaveKind, reason string) error {
	o.logger.Warn("stored token rejected, starting repair", "kind", kind, "reason", reason)
	rawKey, err := o.prompter.PromptRawKey(reason)
	if err != nil {
		return fmt.Errorf("credential repair aborted: %w", err)
	}
	token, err := o.broker.Repair(ctx, rawKey, o.session.Secret())
	if err != nil {
		return err
	}
	// One retry only. A rejection of the fresh token is terminal.
	return o.save(ctx, kind, token, false)
}

func (o *UploadOrchestrator) render(kind SaveKind, token string) (content, filename string, err error) {
	switch kind {
	case SaveSystem:
		// Snapshot locally first so a failed upload still leaves the
		// latest config recoverable on this machine.
		if perr := o.store.PersistLocal(); perr != nil {
			o.logger.Warn("local snapshot failed", "error", perr)
		}
		content, err = o.store.SerializeSystem(token)
		return content, "system.js", err
	case SaveInteractions:
		content, err = o.store.SerializeInteractions()
		return content, "interactions.js", err
	case SaveUsers:
		locator := o.store.System.SiteConfig.UsersFile
		if locator == nil || *locator == "" {
			return "", "", fmt.Errorf("users file not provisioned")
		}
		content, err = o.store.SerializeUsers()
		return content, *locator, err
	case SaveFeed:
		if o.feed == nil {
			return "", "", fmt.Errorf("no feed exporter configured")
		}
		content, err = o.feed.Render()
		return content, "rss.xml", err
	default:
		return "", "", fmt.Errorf("unknown save kind %q", kind)
	}
}

// exportFeed refreshes the public feed after a system save. Failures are
// logged and swallowed: a stale feed must never fail the save that
// triggered it.
func (o *UploadOrchestrator) exportFeed(ctx context.Context, token string) {
	if o.feed == nil {
		return
	}
	if err := o.save(ctx, SaveFeed, token, false); err != nil {
		o.logger.Warn("feed export failed", "error", err)
	}
}

// SaveBatch uploads media files one at a time, in order, stopping at the
// first failure. The returned BatchError reports how many items made it.
// Batch uploads never enter the repair flow; a rejected token fails the
// batch at the current item.
func (o *UploadOrchestrator) SaveBatch(ctx context.Context, items []MediaItem) error {
	if o.transport == nil {
		return ErrDisconnected
	}
	token := o.broker.Token()
	if token == "" {
		return ErrNoToken
	}
	passwordCheck := o.session.Secret()

	for i, item := range items {
		res, err := o.roundTrip(ctx, Message{
			Kind:          KindUpload,
			AuthToken:     token,
			PasswordCheck: passwordCheck,
			MediaPayload:  item.Payload,
			MediaName:     item.Path,
		})
		if err != nil {
			return &BatchError{Index: i, Succeeded: i, Reason: err.Error()}
		}
		if !res.Success {
			return &BatchError{Index: i, Succeeded: i, Reason: res.Text}
		}
		o.logger.Debug("media uploaded", "path", item.Path, "index", i)
	}
	return nil
}

func (o *UploadOrchestrator) roundTrip(ctx context.Context, msg Message) (Message, error) {
	ch, release, err := o.dispatch.Reserve(KindUploadResult)
	if err != nil {
		return Message{}, err
	}
	defer release()

	if err := o.transport.Send(msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res, nil
	case <-timer.C:
		return Message{}, fmt.Errorf("no upload result within %s", o.timeout)
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}
