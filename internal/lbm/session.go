package lbm

import "lbm-go/internal/bundle"

// Identity is the privilege level of the current session.
type Identity string

const (
	IdentityAnonymous Identity = "anonymous"
	IdentityMember    Identity = "member"
	IdentityAdmin     Identity = "admin"
)

// Session holds the in-memory identity state for one client run. The
// privileged secret lives only here, never in the local store, so
// privileged sessions do not survive a restart. Member identity does, via
// the Record round-tripped through the local store.
type Session struct {
	identity     Identity
	user         *bundle.User
	secret       string
	siteUnlocked bool
	unlocked     map[int64]bool
}

// Record is the durable part of a session. Only member identity is
// persisted; privileged sessions must re-authenticate every run.
type Record struct {
	Username string `json:"username"`
	Role     string `json:"type"`
	UserID   int64  `json:"id"`
}

func NewSession() *Session {
	return &Session{
		identity: IdentityAnonymous,
		unlocked: make(map[int64]bool),
	}
}

func (s *Session) Identity() Identity { return s.identity }

func (s *Session) IsAdmin() bool { return s.identity == IdentityAdmin }

func (s *Session) IsMember() bool {
	return s.identity == IdentityMember || s.identity == IdentityAdmin
}

// User returns the member record for member sessions, nil otherwise.
func (s *Session) User() *bundle.User { return s.user }

// Secret returns the live privileged password, empty for everyone else.
func (s *Session) Secret() string { return s.secret }

// BecomeAdmin elevates the session. A member identity already held is
// kept, so a signed-in member who also supplies the privileged password
// can perform operations that need both, like updating their own record.
func (s *Session) BecomeAdmin(secret string) {
	s.identity = IdentityAdmin
	s.secret = secret
	s.siteUnlocked = true
}

func (s *Session) BecomeMember(u *bundle.User) {
	s.identity = IdentityMember
	s.user = u
	s.secret = ""
}

// Reset drops the session back to anonymous and revokes every unlock.
func (s *Session) Reset() {
	s.identity = IdentityAnonymous
	s.user = nil
	s.secret = ""
	s.siteUnlocked = false
	s.unlocked = make(map[int64]bool)
}

func (s *Session) SiteUnlocked() bool { return s.siteUnlocked }

func (s *Session) MarkSiteUnlocked() { s.siteUnlocked = true }

func (s *Session) PostUnlocked(id int64) bool { return s.unlocked[id] }

func (s *Session) markPostUnlocked(id int64) { s.unlocked[id] = true }
