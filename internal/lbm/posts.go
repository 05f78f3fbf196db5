package lbm

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"lbm-go/internal/bundle"
)

// MediaUpload is a local file destined for the remote media directory.
type MediaUpload struct {
	Name    string
	Payload []byte
}

// PostView pairs a post with its interaction stats and the access verdict
// for the current session. Callers must not show Content when Readable is
// false.
type PostView struct {
	Post     *bundle.Post
	Stats    *bundle.PostStats
	Readable bool
}

// Sort orders understood by ListPosts. Popular ranks by likes,
// controversial by dislikes; the default is newest first. Pinned posts
// lead in every mode.
const (
	SortDefault       = ""
	SortPopular       = "popular"
	SortControversial = "controversial"
)

// ListOptions filters and orders the post list.
type ListOptions struct {
	Tag    string
	Search string
	Sort   string
}

// AddPost creates a post. Media files are uploaded first, in order, and a
// failed upload aborts the whole post; URLs are attached as-is. On a
// failed bundle save the post stays in memory so a later sync can pick it
// up, and the error is still returned.
func (s *Service) AddPost(ctx context.Context, content string, tags []string, pinned bool, access bundle.Access, mediaURLs []string, files []MediaUpload) (*bundle.Post, error) {
	if !s.session.IsAdmin() {
		return nil, ErrNoSession
	}
	content = strings.TrimSpace(content)
	if content == "" && len(mediaURLs) == 0 && len(files) == 0 {
		return nil, fmt.Errorf("a post needs content or media")
	}
	if access.Kind == bundle.AccessPassword && (access.Secret == nil || *access.Secret == "") {
		return nil, fmt.Errorf("password-protected posts need a password")
	}
	if access.Kind == "" {
		access.Kind = bundle.AccessPublic
	}

	var media bundle.MediaList
	if len(files) > 0 {
		items := make([]MediaItem, 0, len(files))
		for _, f := range files {
			p := mediaPath(f.Name)
			items = append(items, MediaItem{Path: p, Payload: f.Payload})
			media = append(media, p)
		}
		if err := s.uploads.SaveBatch(ctx, items); err != nil {
			return nil, err
		}
	}
	media = append(media, mediaURLs...)

	post := bundle.Post{
		ID:      s.nextID(),
		Date:    s.dateString(),
		Content: content,
		Media:   media,
		Tags:    normalizeTags(tags),
		Pinned:  pinned,
		Access:  access,
	}
	s.store.System.Posts = append(s.store.System.Posts, post)

	err := s.uploads.SaveBundle(ctx, SaveSystem)
	return s.store.System.FindPost(post.ID), err
}

// EditPost updates a post's content, tags, media list, pinned flag and
// access descriptor. The id and date are immutable. An empty access kind
// keeps the current descriptor.
func (s *Service) EditPost(ctx context.Context, id int64, content string, tags []string, pinned bool, access bundle.Access, media []string) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	post := s.store.System.FindPost(id)
	if post == nil {
		return fmt.Errorf("no post with id %d", id)
	}
	content = strings.TrimSpace(content)
	if content == "" && len(media) == 0 {
		return fmt.Errorf("a post needs content or media")
	}
	if access.Kind == bundle.AccessPassword && (access.Secret == nil || *access.Secret == "") {
		return fmt.Errorf("password-protected posts need a password")
	}
	post.Content = content
	post.Tags = normalizeTags(tags)
	post.Media = bundle.MediaList(media)
	post.Pinned = pinned
	if access.Kind != "" {
		post.Access = access
	}
	return s.uploads.SaveBundle(ctx, SaveSystem)
}

// DeletePost removes a post and its interaction record. Both documents
// are saved; a failure between the two leaves the remote interactions
// carrying stats for a post that no longer exists, which readers ignore.
func (s *Service) DeletePost(ctx context.Context, id int64) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	posts := s.store.System.Posts
	idx := -1
	for i := range posts {
		if posts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no post with id %d", id)
	}
	s.store.System.Posts = append(posts[:idx], posts[idx+1:]...)
	delete(s.store.Interactions.PerPost, id)

	if err := s.uploads.SaveBundle(ctx, SaveSystem); err != nil {
		return err
	}
	return s.uploads.SaveBundle(ctx, SaveInteractions)
}

// TogglePin flips a post's pinned flag.
func (s *Service) TogglePin(ctx context.Context, id int64) error {
	if !s.session.IsAdmin() {
		return ErrNoSession
	}
	post := s.store.System.FindPost(id)
	if post == nil {
		return fmt.Errorf("no post with id %d", id)
	}
	post.Pinned = !post.Pinned
	return s.uploads.SaveBundle(ctx, SaveSystem)
}

// ListPosts returns views over the post list. The default order is newest
// first; SortPopular orders by likes and SortControversial by dislikes,
// and pinned posts float to the top in every mode. Tag and search filters
// match post metadata and content; access evaluation is per-view and
// never filters a post out, locked posts are listed with Readable false.
// Listing is a pure read: it must not grow the interactions record.
func (s *Service) ListPosts(opts ListOptions) []PostView {
	cfg := &s.store.System.SiteConfig
	q := strings.ToLower(strings.TrimSpace(opts.Search))

	var views []PostView
	for i := range s.store.System.Posts {
		post := &s.store.System.Posts[i]
		if opts.Tag != "" && !post.HasTag(opts.Tag) {
			continue
		}
		if q != "" && !matchesSearch(post, q) {
			continue
		}
		views = append(views, PostView{
			Post:     post,
			Stats:    s.store.Interactions.PeekStats(post.ID),
			Readable: CanRead(cfg, post, s.session),
		})
	}

	var less func(i, j int) bool
	switch opts.Sort {
	case SortPopular:
		less = func(i, j int) bool {
			a, b := views[i], views[j]
			if a.Stats.Likes != b.Stats.Likes {
				return a.Stats.Likes > b.Stats.Likes
			}
			return a.Post.ID > b.Post.ID
		}
	case SortControversial:
		less = func(i, j int) bool {
			a, b := views[i], views[j]
			if a.Stats.Dislikes != b.Stats.Dislikes {
				return a.Stats.Dislikes > b.Stats.Dislikes
			}
			return a.Post.ID > b.Post.ID
		}
	default:
		less = func(i, j int) bool {
			return views[i].Post.ID > views[j].Post.ID
		}
	}
	sort.SliceStable(views, less)

	// Pinned posts float to the top of whatever order was chosen.
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Post.Pinned && !views[j].Post.Pinned
	})
	return views
}

// UnlockPost attempts to unlock a password post for this session.
func (s *Service) UnlockPost(id int64, secret string) bool {
	post := s.store.System.FindPost(id)
	if post == nil {
		return false
	}
	return UnlockPost(post, s.session, secret)
}

func matchesSearch(post *bundle.Post, q string) bool {
	if strings.Contains(strings.ToLower(post.Content), q) {
		return true
	}
	for _, t := range post.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// mediaPath maps an upload name into the remote media directory, keeping
// only the base name so local directory structure never leaks.
func mediaPath(name string) string {
	return "img/" + path.Base(name)
}
