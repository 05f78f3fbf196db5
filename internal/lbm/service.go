package lbm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"lbm-go/internal/bundle"
)

// LocalStore is the durable per-machine state: the optimistic config
// cache, the reaction ledger and the member session record. None of it is
// shared between machines and none of it is required for correctness.
// Implementations live in internal/localstore.
type LocalStore interface {
	bundle.CacheStore

	Reaction(postID int64) (string, error)
	SetReaction(postID int64, action string) error
	ClearReaction(postID int64) error

	LoadSession() ([]byte, error)
	SaveSession(payload []byte) error
	ClearSession() error

	Close() error
}

// Service is the client facade. It owns identity, drives document
// mutations through the store and hands persistence to the orchestrator.
// Service is not safe for concurrent use; the client is single-operator.
type Service struct {
	store   *bundle.Store
	local   LocalStore
	broker  *CredentialBroker
	uploads *UploadOrchestrator
	session *Session
	clock   Clock
	idgen   IDGenerator
	logger  Logger

	lastID int64
}

func NewService(
	store *bundle.Store,
	local LocalStore,
	broker *CredentialBroker,
	uploads *UploadOrchestrator,
	session *Session,
	clock Clock,
	idgen IDGenerator,
	logger Logger,
) *Service {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Service{
		store:   store,
		local:   local,
		broker:  broker,
		uploads: uploads,
		session: session,
		clock:   clock,
		idgen:   idgen,
		logger:  logger,
	}
}

func (s *Service) Store() *bundle.Store { return s.store }
func (s *Service) Session() *Session    { return s.session }

// SetupRequired reports whether no authoritative system bundle has been
// applied yet.
func (s *Service) SetupRequired() bool { return s.store.SetupRequired }

// Bootstrap applies the fetched remote documents and restores local
// state. It never fails hard: a missing or corrupt system bundle leaves
// the client in setup state, a bad interactions bundle is dropped, and
// everything noteworthy is logged. The users document loads separately
// via LoadUsers, once its locator is known.
func (s *Service) Bootstrap(systemScript, interactionsScript string) {
	s.store.LoadLocalCache()

	if systemScript != "" {
		if err := s.store.LoadAuthoritativeSystem(systemScript); err != nil {
			s.logger.Error("system bundle rejected, entering setup state", "error", err)
		} else {
			if s.store.System.AuthToken != nil {
				s.broker.SetToken(*s.store.System.AuthToken)
			} else if s.store.System.APIKey != nil {
				s.broker.SetLegacyKey(*s.store.System.APIKey)
			}
		}
	}

	if interactionsScript != "" {
		if err := s.store.LoadAuthoritativeInteractions(interactionsScript); err != nil {
			s.logger.Warn("interactions bundle rejected, starting empty", "error", err)
		}
	}

	s.restoreSession()
}

// UsersLocator returns the users document filename once provisioned.
func (s *Service) UsersLocator() (string, bool) {
	f := s.store.System.SiteConfig.UsersFile
	if f == nil || *f == "" {
		return "", false
	}
	return *f, true
}

// LoadUsers applies a fetched users document.
func (s *Service) LoadUsers(script string) error {
	return s.store.LoadAuthoritativeUsers(script)
}

// Setup performs first-run initialization: exchanges the raw hosting key
// for a token, installs the admin credential and writes the first system
// bundle. An optional site password locks the whole site for visitors.
func (s *Service) Setup(ctx context.Context, password, rawKey, sitePassword string) error {
	if !s.store.SetupRequired {
		return fmt.Errorf("site is already configured")
	}
	if password == "" || rawKey == "" {
		return fmt.Errorf("admin password and hosting key are required")
	}
	token, err := s.broker.Tokenize(ctx, rawKey, password)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("hosting key rejected or no response, check the key and try again")
	}

	s.store.System.AdminHash = sha256Hex(password)
	if sitePassword != "" {
		h := sha256Hex(sitePassword)
		s.store.System.SiteConfig.SitePasswordHash = &h
	}
	s.store.SetupRequired = false
	s.session.BecomeAdmin(password)

	return s.uploads.SaveBundle(ctx, SaveSystem)
}

// AdminLogin verifies the privileged password against the stored hash.
// When the bundle still carries a pre-token raw key, a successful login
// upgrades it to a durable token in the background of the same call;
// upgrade failures are logged and do not fail the login.
func (s *Service) AdminLogin(ctx context.Context, password string) error {
	if s.store.SetupRequired {
		return fmt.Errorf("site is not configured yet")
	}
	if sha256Hex(password) != s.store.System.AdminHash {
		return fmt.Errorf("invalid credentials")
	}
	s.session.BecomeAdmin(password)

	if s.broker.Token() == "" && s.broker.LegacyKey() != "" {
		token, err := s.broker.Tokenize(ctx, s.broker.LegacyKey(), password)
		switch {
		case err != nil:
			s.logger.Warn("legacy key upgrade failed", "error", err)
		case token == "":
			s.logger.Warn("legacy key upgrade rejected, keeping raw key")
		default:
			// Persist the token and drop the raw key from the bundle.
			if err := s.uploads.SaveBundle(ctx, SaveSystem); err != nil {
				s.logger.Warn("could not persist upgraded token", "error", err)
			} else {
				s.logger.Info("legacy raw key upgraded to token")
			}
		}
	}
	return nil
}

// MemberLogin authenticates against the loaded users document and
// persists the member identity for the next run.
func (s *Service) MemberLogin(username, password string) error {
	u := s.store.Users.FindUser(username)
	if u == nil || u.Hash != sha256Hex(password) {
		return fmt.Errorf("invalid credentials")
	}
	s.session.BecomeMember(u)
	s.persistSession(u)
	return nil
}

// Logout resets the session to anonymous and clears the stored record.
func (s *Service) Logout() {
	s.session.Reset()
	if err := s.local.ClearSession(); err != nil {
		s.logger.Warn("could not clear session record", "error", err)
	}
}

// SiteLocked reports whether a site password gates this session.
func (s *Service) SiteLocked() bool {
	h := s.store.System.SiteConfig.SitePasswordHash
	return h != nil && *h != "" && !s.session.SiteUnlocked()
}

// UnlockSite checks the site password and unlocks this session.
func (s *Service) UnlockSite(password string) bool {
	h := s.store.System.SiteConfig.SitePasswordHash
	if h == nil || *h == "" {
		s.session.MarkSiteUnlocked()
		return true
	}
	if sha256Hex(password) != *h {
		return false
	}
	s.session.MarkSiteUnlocked()
	return true
}

// SaveSystem persists the system document. Privileged sessions only; the
// document embeds the credential hash.
func (s *Service) SaveSystem(ctx context.Context) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	return s.uploads.SaveBundle(ctx, SaveSystem)
}

// UpdateAdminCredentials replaces the privileged password. When a new raw
// hosting key is supplied the token is re-minted against it first, so a
// key rotation and a password change can happen in one step.
func (s *Service) UpdateAdminCredentials(ctx context.Context, newPassword, rawKey string) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	if newPassword == "" {
		return fmt.Errorf("new password is required")
	}
	if rawKey != "" {
		token, err := s.broker.Tokenize(ctx, rawKey, newPassword)
		if err != nil {
			return err
		}
		if token == "" {
			return fmt.Errorf("hosting key rejected or no response")
		}
	}
	s.store.System.AdminHash = sha256Hex(newPassword)
	s.session.BecomeAdmin(newPassword)
	return s.uploads.SaveBundle(ctx, SaveSystem)
}

// ForceSyncAll pushes every document to the remote in sequence, stopping
// at the first failure. The feed refresh rides on the system save.
func (s *Service) ForceSyncAll(ctx context.Context) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	if err := s.uploads.SaveBundle(ctx, SaveSystem); err != nil {
		return fmt.Errorf("system sync: %w", err)
	}
	if err := s.uploads.SaveBundle(ctx, SaveInteractions); err != nil {
		return fmt.Errorf("interactions sync: %w", err)
	}
	if _, ok := s.UsersLocator(); ok {
		if err := s.uploads.SaveBundle(ctx, SaveUsers); err != nil {
			return fmt.Errorf("users sync: %w", err)
		}
	}
	return nil
}

func (s *Service) restoreSession() {
	payload, err := s.local.LoadSession()
	if err != nil || len(payload) == 0 {
		return
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		s.logger.Warn("discarding unreadable session record", "error", err)
		return
	}
	// The record is trusted as-is; the users document may not be loaded
	// yet, and never is on sites without members.
	s.session.BecomeMember(&bundle.User{
		ID:       rec.UserID,
		Username: rec.Username,
		Role:     rec.Role,
	})
}

func (s *Service) persistSession(u *bundle.User) {
	rec := Record{Username: u.Username, Role: u.Role, UserID: u.ID}
	payload, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("could not encode session record", "error", err)
		return
	}
	if err := s.local.SaveSession(payload); err != nil {
		s.logger.Warn("could not persist session record", "error", err)
	}
}

// nextID returns a fresh time-derived id. Ids are unix milliseconds,
// bumped when the clock has not advanced since the last one, so they stay
// unique and monotonic within a run.
func (s *Service) nextID() int64 {
	id := s.clock.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// dateString renders the legacy timestamp format, minute precision UTC.
func (s *Service) dateString() string {
	return s.clock.Now().UTC().Format("2006-01-02 15:04")
}

func sha256Hex(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

func normalizeTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
