package bundle

import (
	"fmt"

	"github.com/goccy/go-json"
)

// CacheStore persists the optimistic local copy of the site configuration.
// Implementations live in internal/localstore.
type CacheStore interface {
	LoadConfigCache() ([]byte, error)
	SaveConfigCache(payload []byte) error
}

// Store owns the in-memory bundles and their two-tier persistence policy:
// the remote bundle is authoritative, the local cache is an optimistic copy
// refreshed after every mutation. All other components borrow references
// through the store and must not keep copies across calls.
type Store struct {
	System       SystemBundle
	Interactions InteractionsBundle
	Users        UsersBundle

	// SetupRequired is set when no authoritative system bundle could be
	// applied: either none was provided or it failed to parse. A corrupt
	// bundle is never partially applied.
	SetupRequired bool

	cache CacheStore
}

// NewStore creates a Store in first-run state backed by the given cache.
func NewStore(cache CacheStore) *Store {
	return &Store{
		System: SystemBundle{
			SiteConfig: DefaultSiteConfig(),
		},
		Interactions: InteractionsBundle{
			PerPost:  make(map[int64]*PostStats),
			Messages: []Message{},
		},
		Users: UsersBundle{
			Users: []User{},
			Roles: []string{RoleAdmin, RoleMember, RoleElevated},
		},
		SetupRequired: true,
		cache:         cache,
	}
}

// LoadLocalCache overlays the locally cached site configuration, if any,
// over the defaults. Cache read failures leave the defaults in place.
func (s *Store) LoadLocalCache() {
	if s.cache == nil {
		return
	}
	payload, err := s.cache.LoadConfigCache()
	if err != nil || len(payload) == 0 {
		return
	}
	// Unmarshal into the live struct: present fields overwrite, absent
	// fields keep their current values, and the colors map accumulates.
	_ = json.Unmarshal(payload, &s.System.SiteConfig)
}

// PersistLocal writes the current site configuration to the local cache.
// Persistence is best-effort: quota or permission failures must never block
// a save, so callers log the returned error and move on.
func (s *Store) PersistLocal() error {
	if s.cache == nil {
		return nil
	}
	payload, err := json.Marshal(s.System.SiteConfig)
	if err != nil {
		return fmt.Errorf("marshaling config cache: %w", err)
	}
	if err := s.cache.SaveConfigCache(payload); err != nil {
		return fmt.Errorf("writing config cache: %w", err)
	}
	return nil
}

// systemPayload defers the siteConfig field so it can be merged over the
// cached configuration instead of replacing it wholesale.
type systemPayload struct {
	AdminHash  string          `json:"adminHash"`
	SiteConfig json.RawMessage `json:"siteConfig"`
	Posts      []Post          `json:"posts"`
	AuthToken  *string         `json:"authToken"`
	APIKey     *string         `json:"apiKey"`
}

// LoadAuthoritativeSystem applies a remote system bundle. Every field
// present in the payload reflects the remote value afterwards; config fields
// absent from it retain the most recent locally cached value. A payload that
// fails to parse is rejected without touching the current state.
func (s *Store) LoadAuthoritativeSystem(script string) error {
	raw, err := DecodeScript(ConstSystem, script)
	if err != nil {
		return err
	}
	var payload systemPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parsing system bundle: %w", err)
	}

	merged := s.System.SiteConfig
	if len(payload.SiteConfig) > 0 {
		if err := json.Unmarshal(payload.SiteConfig, &merged); err != nil {
			return fmt.Errorf("parsing site config: %w", err)
		}
	}

	s.System.AdminHash = payload.AdminHash
	s.System.SiteConfig = merged
	s.System.Posts = payload.Posts
	if payload.AuthToken != nil {
		s.System.AuthToken = payload.AuthToken
	}
	if payload.APIKey != nil {
		s.System.APIKey = payload.APIKey
	}
	s.SetupRequired = false

	// Refresh the optimistic copy now that authoritative data is in.
	return s.PersistLocal()
}

// LoadAuthoritativeInteractions applies a remote interactions bundle.
func (s *Store) LoadAuthoritativeInteractions(script string) error {
	raw, err := DecodeScript(ConstInteractions, script)
	if err != nil {
		return err
	}
	var b InteractionsBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return fmt.Errorf("parsing interactions bundle: %w", err)
	}
	s.Interactions = b
	return nil
}

// LoadAuthoritativeUsers applies a remote users bundle. Users are loaded
// lazily, only when the system bundle references a users-file locator.
func (s *Store) LoadAuthoritativeUsers(script string) error {
	raw, err := DecodeScript(ConstUsers, script)
	if err != nil {
		return err
	}
	var b UsersBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return fmt.Errorf("parsing users bundle: %w", err)
	}
	if b.Roles == nil {
		b.Roles = []string{RoleAdmin, RoleMember, RoleElevated}
	}
	s.Users = b
	return nil
}

// SerializeSystem produces the persisted system script. token is the
// credential to embed; when non-empty it supersedes any legacy raw key, so
// exactly one of authToken/apiKey survives in the output.
func (s *Store) SerializeSystem(token string) (string, error) {
	out := s.System
	if token != "" {
		out.AuthToken = &token
		out.APIKey = nil
	}
	if out.Posts == nil {
		out.Posts = []Post{}
	}
	script, err := EncodeScript(ConstSystem, out)
	if err != nil {
		return "", err
	}
	// The serialized form is what the remote will hand back verbatim;
	// mirror it in memory so subsequent reads see the saved credential.
	s.System = out
	return script, nil
}

// SerializeInteractions produces the persisted interactions script.
func (s *Store) SerializeInteractions() (string, error) {
	return EncodeScript(ConstInteractions, s.Interactions)
}

// SerializeUsers produces the persisted users script.
func (s *Store) SerializeUsers() (string, error) {
	return EncodeScript(ConstUsers, s.Users)
}
