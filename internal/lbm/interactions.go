package lbm

import (
	"context"
	"fmt"
	"strings"

	"lbm-go/internal/bundle"
)

// Reaction actions understood by React.
const (
	ActionLike    = "like"
	ActionDislike = "dislike"
)

// React applies a reaction using the per-machine ledger to keep it
// idempotent: reacting the same way twice withdraws the reaction, and
// switching sides moves the count. Guests may react, no session needed.
func (s *Service) React(ctx context.Context, postID int64, action string) error {
	if action != ActionLike && action != ActionDislike {
		return fmt.Errorf("unknown reaction %q", action)
	}
	if !s.store.System.SiteConfig.ReactionsEnabled {
		return fmt.Errorf("reactions are disabled")
	}
	if s.store.System.FindPost(postID) == nil {
		return fmt.Errorf("no post with id %d", postID)
	}

	current, err := s.local.Reaction(postID)
	if err != nil {
		s.logger.Warn("reaction ledger unreadable, treating as no prior reaction", "error", err)
		current = ""
	}
	stats := s.store.Interactions.Stats(postID)

	if current == action {
		applyReaction(stats, action, -1)
		if err := s.local.ClearReaction(postID); err != nil {
			s.logger.Warn("could not clear reaction ledger entry", "error", err)
		}
	} else {
		if current != "" {
			applyReaction(stats, current, -1)
		}
		applyReaction(stats, action, +1)
		if err := s.local.SetReaction(postID, action); err != nil {
			s.logger.Warn("could not write reaction ledger entry", "error", err)
		}
	}
	return s.uploads.SaveBundle(ctx, SaveInteractions)
}

func applyReaction(stats *bundle.PostStats, action string, delta int) {
	switch action {
	case ActionLike:
		stats.Likes += delta
		if stats.Likes < 0 {
			stats.Likes = 0
		}
	case ActionDislike:
		stats.Dislikes += delta
		if stats.Dislikes < 0 {
			stats.Dislikes = 0
		}
	}
}

// AddComment appends a comment to a post the current session can read.
// A reply must name a parent comment on the same post.
func (s *Service) AddComment(ctx context.Context, postID int64, text string, parentID *int64) error {
	if !s.store.System.SiteConfig.AllowComments {
		return fmt.Errorf("comments are disabled")
	}
	post := s.store.System.FindPost(postID)
	if post == nil {
		return fmt.Errorf("no post with id %d", postID)
	}
	if !CanRead(&s.store.System.SiteConfig, post, s.session) {
		return fmt.Errorf("no access to post %d", postID)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("comment text is required")
	}

	stats := s.store.Interactions.Stats(postID)
	if parentID != nil {
		found := false
		for i := range stats.Comments {
			if stats.Comments[i].ID == *parentID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("parent comment %d not found on post %d", *parentID, postID)
		}
	}

	author := "Guest"
	isAdmin := false
	switch {
	case s.session.IsAdmin():
		author = "Admin"
		isAdmin = true
	case s.session.User() != nil:
		author = s.session.User().Username
	}

	stats.Comments = append(stats.Comments, bundle.Comment{
		ID:       s.nextID(),
		Author:   author,
		Text:     text,
		Date:     s.dateString(),
		ParentID: parentID,
		IsAdmin:  isAdmin,
	})
	return s.uploads.SaveBundle(ctx, SaveInteractions)
}

// DeleteComment removes a single comment. Replies to it are kept and left
// with a dangling parent id, matching how existing archives behave.
func (s *Service) DeleteComment(ctx context.Context, postID, commentID int64) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	stats, ok := s.store.Interactions.PerPost[postID]
	if !ok {
		return fmt.Errorf("no interactions for post %d", postID)
	}
	idx := -1
	for i := range stats.Comments {
		if stats.Comments[i].ID == commentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no comment with id %d on post %d", commentID, postID)
	}
	stats.Comments = append(stats.Comments[:idx], stats.Comments[idx+1:]...)
	return s.uploads.SaveBundle(ctx, SaveInteractions)
}

// SendMessage drops a text message in the guestbook. Anonymous delivery
// needs either a signed-in member opting out of attribution or the
// anonymous-messages switch enabled.
func (s *Service) SendMessage(ctx context.Context, text string, anonymous bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("message text is required")
	}
	sender, err := s.messageSender(anonymous)
	if err != nil {
		return err
	}
	s.store.Interactions.Messages = append(s.store.Interactions.Messages, bundle.Message{
		ID:     s.nextID(),
		Sender: sender,
		Text:   text,
		Type:   bundle.MessageText,
		Date:   s.dateString(),
	})
	return s.uploads.SaveBundle(ctx, SaveInteractions)
}

// SendDrawing uploads a drawing and drops it in the guestbook as an image
// message whose text is the uploaded media path.
func (s *Service) SendDrawing(ctx context.Context, name string, payload []byte, anonymous bool) error {
	if len(payload) == 0 {
		return fmt.Errorf("drawing payload is empty")
	}
	sender, err := s.messageSender(anonymous)
	if err != nil {
		return err
	}
	p := "img/asks/" + fmt.Sprintf("%d_%s", s.nextID(), sanitizeName(name))
	if err := s.uploads.SaveBatch(ctx, []MediaItem{{Path: p, Payload: payload}}); err != nil {
		return err
	}
	s.store.Interactions.Messages = append(s.store.Interactions.Messages, bundle.Message{
		ID:     s.nextID(),
		Sender: sender,
		Text:   p,
		Type:   bundle.MessageImage,
		Date:   s.dateString(),
	})
	return s.uploads.SaveBundle(ctx, SaveInteractions)
}

func (s *Service) messageSender(anonymous bool) (*string, error) {
	u := s.session.User()
	if anonymous || u == nil {
		if !s.store.System.SiteConfig.AllowAnonMessages && u == nil && !s.session.IsAdmin() {
			return nil, fmt.Errorf("anonymous messages are disabled")
		}
		return nil, nil
	}
	name := u.Username
	return &name, nil
}

// ReplyMessage records the privileged reply on a guestbook message. Each
// message takes at most one reply; editing goes through deletion.
func (s *Service) ReplyMessage(ctx context.Context, id int64, reply string, private bool) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return fmt.Errorf("reply text is required")
	}
	msg := s.findMessage(id)
	if msg == nil {
		return fmt.Errorf("no message with id %d", id)
	}
	if msg.Reply != nil {
		return fmt.Errorf("message %d already has a reply", id)
	}
	date := s.dateString()
	msg.Reply = &reply
	msg.ReplyDate = &date
	msg.IsPrivate = private
	return s.uploads.SaveBundle(ctx, SaveInteractions)
}

// DeleteMessage removes a guestbook message entirely, reply included.
func (s *Service) DeleteMessage(ctx context.Context, id int64) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	msgs := s.store.Interactions.Messages
	idx := -1
	for i := range msgs {
		if msgs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no message with id %d", id)
	}
	s.store.Interactions.Messages = append(msgs[:idx], msgs[idx+1:]...)
	return s.uploads.SaveBundle(ctx, SaveInteractions)
}

// VisibleMessages returns the guestbook as the current session may see
// it: everyone sees public replies, a member also sees private replies to
// their own messages, the admin sees everything.
func (s *Service) VisibleMessages() []bundle.Message {
	if s.session.IsAdmin() {
		return s.store.Interactions.Messages
	}
	var me string
	if u := s.session.User(); u != nil {
		me = u.Username
	}
	var out []bundle.Message
	for _, m := range s.store.Interactions.Messages {
		if m.IsPrivate && (m.Sender == nil || me == "" || *m.Sender != me) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Service) findMessage(id int64) *bundle.Message {
	msgs := s.store.Interactions.Messages
	for i := range msgs {
		if msgs[i].ID == id {
			return &msgs[i]
		}
	}
	return nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "drawing.png"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
