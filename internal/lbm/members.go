package lbm

import (
	"context"
	"fmt"
	"strings"

	"lbm-go/internal/bundle"
)

// RegisterMember self-registers a new member account and signs it in.
// Saving the users document needs the privileged secret, so registration
// only completes while an admin session is live; the first one also
// provisions the users document with an unguessable filename.
func (s *Service) RegisterMember(ctx context.Context, username, password string) error {
	if s.store.SetupRequired {
		return fmt.Errorf("site is not configured yet")
	}
	if s.store.System.SiteConfig.DisableSignups {
		return fmt.Errorf("signups are disabled")
	}
	if err := validateNewUser(&s.store.Users, username, password); err != nil {
		return err
	}

	u := bundle.User{
		ID:       s.nextID(),
		Username: strings.TrimSpace(username),
		Hash:     sha256Hex(password),
		Role:     bundle.RoleMember,
	}
	s.store.Users.Users = append(s.store.Users.Users, u)
	if err := s.saveUsers(ctx); err != nil {
		// Roll back so a retry does not trip the duplicate check.
		s.store.Users.Users = s.store.Users.Users[:len(s.store.Users.Users)-1]
		return err
	}

	stored := s.store.Users.FindUser(u.Username)
	s.session.BecomeMember(stored)
	s.persistSession(stored)
	return nil
}

// CreateUser adds an account with an explicit role. Privileged only.
func (s *Service) CreateUser(ctx context.Context, username, password, role string) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	if !validRole(&s.store.Users, role) {
		return fmt.Errorf("unknown role %q", role)
	}
	if err := validateNewUser(&s.store.Users, username, password); err != nil {
		return err
	}
	s.store.Users.Users = append(s.store.Users.Users, bundle.User{
		ID:       s.nextID(),
		Username: strings.TrimSpace(username),
		Hash:     sha256Hex(password),
		Role:     role,
	})
	if err := s.saveUsers(ctx); err != nil {
		s.store.Users.Users = s.store.Users.Users[:len(s.store.Users.Users)-1]
		return err
	}
	return nil
}

// DeleteUser removes an account. Privileged only. The member's comments
// and messages stay, attributed to the dead username.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	users := s.store.Users.Users
	idx := -1
	for i := range users {
		if users[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no user with id %d", id)
	}
	s.store.Users.Users = append(users[:idx], users[idx+1:]...)
	return s.saveUsers(ctx)
}

// SetUserRole changes an account's role. Privileged only.
func (s *Service) SetUserRole(ctx context.Context, id int64, role string) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	if !validRole(&s.store.Users, role) {
		return fmt.Errorf("unknown role %q", role)
	}
	for i := range s.store.Users.Users {
		if s.store.Users.Users[i].ID == id {
			s.store.Users.Users[i].Role = role
			return s.saveUsers(ctx)
		}
	}
	return fmt.Errorf("no user with id %d", id)
}

// UpdateMemberPassword lets the signed-in member replace their own
// password. Like every users save, the write itself needs the privileged
// secret to be live in the session.
func (s *Service) UpdateMemberPassword(ctx context.Context, newPassword string) error {
	me := s.session.User()
	if me == nil {
		return fmt.Errorf("member session required")
	}
	if newPassword == "" {
		return fmt.Errorf("new password is required")
	}
	u := s.store.Users.FindUser(me.Username)
	if u == nil {
		return fmt.Errorf("account %q no longer exists", me.Username)
	}
	old := u.Hash
	u.Hash = sha256Hex(newPassword)
	if err := s.saveUsers(ctx); err != nil {
		u.Hash = old
		return err
	}
	return nil
}

// saveUsers persists the users document, provisioning its locator on
// first use. The locator lives in the system document, so provisioning
// saves system first; if that fails the locator is reverted and nothing
// is half-provisioned.
func (s *Service) saveUsers(ctx context.Context) error {
	if _, ok := s.UsersLocator(); !ok {
		locator := fmt.Sprintf("users_%s.js", s.idgen.NewID()[:8])
		s.store.System.SiteConfig.UsersFile = &locator
		if err := s.uploads.SaveBundle(ctx, SaveSystem); err != nil {
			s.store.System.SiteConfig.UsersFile = nil
			return fmt.Errorf("provisioning users file: %w", err)
		}
		s.logger.Info("users file provisioned", "locator", locator)
	}
	return s.uploads.SaveBundle(ctx, SaveUsers)
}

func validateNewUser(b *bundle.UsersBundle, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if strings.EqualFold(username, "admin") {
		return fmt.Errorf("username %q is reserved", username)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if b.FindUser(username) != nil {
		return fmt.Errorf("username %q is taken", username)
	}
	return nil
}

func validRole(b *bundle.UsersBundle, role string) bool {
	for _, r := range b.Roles {
		if r == role {
			return true
		}
	}
	return false
}
