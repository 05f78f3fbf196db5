package lbm

import "lbm-go/internal/bundle"

// CanRead decides whether the session may read a post's content. Rules
// apply in a fixed order and the first match wins:
//
//  1. privileged sessions read everything
//  2. a post carrying a protected tag is readable only by elevated members
//  3. public posts are readable by anyone
//  4. member posts need any signed-in member
//  5. admin posts are unreadable outside privileged sessions
//  6. password posts are locked until unlocked for this session
//
// Rule 2 overrides the post's own access kind entirely, including public.
func CanRead(cfg *bundle.SiteConfig, post *bundle.Post, s *Session) bool {
	if s.IsAdmin() {
		return true
	}
	for _, tag := range cfg.ElevatedTags() {
		if post.HasTag(tag) {
			return s.IsMember() && s.User() != nil && s.User().Role == bundle.RoleElevated
		}
	}
	switch post.Access.Kind {
	case bundle.AccessMember:
		return s.IsMember()
	case bundle.AccessAdmin:
		return false
	case bundle.AccessPassword:
		return s.PostUnlocked(post.ID)
	default:
		// Public, absent or unknown kinds are open.
		return true
	}
}

// UnlockPost grants this session access to a password post when the
// supplied secret matches by plain string comparison. The grant lasts for
// the session only and is never persisted or shared.
func UnlockPost(post *bundle.Post, s *Session, secret string) bool {
	if post.Access.Kind != bundle.AccessPassword || post.Access.Secret == nil {
		return false
	}
	if secret != *post.Access.Secret {
		return false
	}
	s.markPostUnlocked(post.ID)
	return true
}
