package bundle

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// AccessKind describes who may read a post.
type AccessKind string

const (
	AccessPublic   AccessKind = "public"
	AccessMember   AccessKind = "member"
	AccessAdmin    AccessKind = "admin"
	AccessPassword AccessKind = "password"
)

// Access is a post's access descriptor. Secret is set iff Kind is
// AccessPassword; the legacy format stores it under "value".
type Access struct {
	Kind   AccessKind `json:"type"`
	Secret *string    `json:"value"`
}

// MediaList holds zero, one or many media URIs. The legacy encoding is
// shape-shifting: "" for none, a bare string for one, an array otherwise.
// Both directions are preserved so old archives keep round-tripping.
type MediaList []string

func (m MediaList) MarshalJSON() ([]byte, error) {
	switch len(m) {
	case 0:
		return json.Marshal("")
	case 1:
		return json.Marshal(m[0])
	default:
		return json.Marshal([]string(m))
	}
}

func (m *MediaList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*m = nil
		} else {
			*m = MediaList{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("media is neither string nor array: %w", err)
	}
	*m = MediaList(many)
	return nil
}

// Post is a single entry in the archive. The ID is time-derived
// (unix milliseconds) and immutable once created.
type Post struct {
	ID      int64     `json:"id"`
	Date    string    `json:"date"`
	Content string    `json:"content"`
	Media   MediaList `json:"media"`
	Tags    []string  `json:"tags"`
	Pinned  bool      `json:"pinned"`
	Access  Access    `json:"access"`
}

// HasTag reports whether the post carries the given tag.
func (p *Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Comment hangs off a post's interaction record. ParentID, when set, refers
// to another comment on the same post; deleting a parent leaves children
// with a dangling ParentID (legacy behavior, kept).
type Comment struct {
	ID       int64  `json:"id"`
	Author   string `json:"author"`
	Text     string `json:"text"`
	Date     string `json:"date"`
	ParentID *int64 `json:"parentId"`
	IsAdmin  bool   `json:"isAdmin"`
}

// MessageType discriminates guestbook message bodies.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// Message is a guestbook entry. Sender is nil for anonymous messages.
// Reply fields are set at most once, by the admin.
type Message struct {
	ID        int64       `json:"id"`
	Sender    *string     `json:"sender"`
	Text      string      `json:"text"`
	Type      MessageType `json:"type"`
	Date      string      `json:"date"`
	Reply     *string     `json:"reply"`
	ReplyDate *string     `json:"replyDate"`
	IsPrivate bool        `json:"isPrivate"`
}

// User is a registered member. Username is immutable after creation and
// unique case-sensitively; Hash is a hex sha256 digest of the password.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Hash     string `json:"hash"`
	Role     string `json:"type"`
}

// Role names understood by the access rules.
const (
	RoleAdmin    = "admin"
	RoleMember   = "member"
	RoleElevated = "vip"
)

// UsersBundle is the lazily-loaded member registry.
type UsersBundle struct {
	Users []User   `json:"users"`
	Roles []string `json:"types"`
}

// FindUser returns the user with the given username, or nil.
func (b *UsersBundle) FindUser(username string) *User {
	for i := range b.Users {
		if b.Users[i].Username == username {
			return &b.Users[i]
		}
	}
	return nil
}

// PostStats aggregates reactions and comments for one post.
type PostStats struct {
	Likes    int       `json:"likes"`
	Dislikes int       `json:"dislikes"`
	Comments []Comment `json:"comments"`
}

// InteractionsBundle holds per-post stats plus the guestbook. Post keys are
// created lazily on first reaction or comment; the bundle only grows unless
// the admin deletes something explicitly.
type InteractionsBundle struct {
	PerPost  map[int64]*PostStats
	Messages []Message
}

// Stats returns the stats record for a post, creating it on first use.
// Only mutation paths may call this; reads go through PeekStats so that
// post keys appear on the first reaction or comment, never earlier.
func (b *InteractionsBundle) Stats(postID int64) *PostStats {
	if b.PerPost == nil {
		b.PerPost = make(map[int64]*PostStats)
	}
	s, ok := b.PerPost[postID]
	if !ok {
		s = &PostStats{Comments: []Comment{}}
		b.PerPost[postID] = s
	}
	return s
}

// PeekStats returns the stats record for a post without materializing
// one. Posts nobody has interacted with get a detached zero record that
// is never persisted.
func (b *InteractionsBundle) PeekStats(postID int64) *PostStats {
	if s, ok := b.PerPost[postID]; ok {
		return s
	}
	return &PostStats{Comments: []Comment{}}
}

// SiteConfig is the site-wide configuration carried inside the system
// bundle. Nullable fields are pointers so an authoritative payload can
// distinguish "absent" (keep cached value) from "null" (clear it).
type SiteConfig struct {
	SiteName            string            `json:"siteName"`
	MetaTitle           string            `json:"metaTitle"`
	MetaDescription     string            `json:"metaDescription"`
	Tagline             string            `json:"tagline"`
	LeafletsName        string            `json:"leafletsName"`
	AllowComments       bool              `json:"allowComments"`
	AllowAnonMessages   bool              `json:"allowAnonMessages"`
	DisableSignups      bool              `json:"disableSignups"`
	Copyright           string            `json:"copyright"`
	BgImage             string            `json:"bgImage"`
	BannerImage         string            `json:"bannerImage"`
	PfpImage            string            `json:"pfpImage"`
	CustomCSS           string            `json:"customCss"`
	ReactionsEnabled    bool              `json:"reactionsEnabled"`
	ReactionIcon        string            `json:"reactionIcon"`
	LikeLabel           string            `json:"likeLabel"`
	DislikeLabel        string            `json:"dislikeLabel"`
	WidgetPadding       string            `json:"widgetPadding"`
	ProtectedTags       string            `json:"protectedTags"`
	UsersFile           *string           `json:"usersFile"`
	SitePasswordHash    *string           `json:"sitePasswordHash"`
	AllowVideoDownloads bool              `json:"allowVideoDownloads"`
	Colors              map[string]string `json:"colors"`
}

// ElevatedTags parses the configured protected-tag list. A post carrying any
// of these is readable only by elevated members, regardless of its own
// access kind.
func (c *SiteConfig) ElevatedTags() []string {
	return splitTags(c.ProtectedTags)
}

// SystemBundle is the authoritative document: admin credential hash, site
// configuration and the post list, plus the current credential material.
// Exactly one of AuthToken/APIKey is persisted once a token exists.
type SystemBundle struct {
	AdminHash  string     `json:"adminHash"`
	SiteConfig SiteConfig `json:"siteConfig"`
	Posts      []Post     `json:"posts"`
	AuthToken  *string    `json:"authToken"`
	APIKey     *string    `json:"apiKey"`
}

// FindPost returns the post with the given id, or nil.
func (b *SystemBundle) FindPost(id int64) *Post {
	for i := range b.Posts {
		if b.Posts[i].ID == id {
			return &b.Posts[i]
		}
	}
	return nil
}

func defaultColors() map[string]string {
	return map[string]string{
		"bg": "#010101", "text": "#e0f2f1", "sidebar": "#0a0a0a", "accent": "#ff6b35",
		"leaflet": "#0a0a0a", "border": "#1f2937", "navActive": "#c8ff00",
		"like": "#c8ff00", "dislike": "#ff3c8e",
		"likeBtn": "#010101", "dislikeBtn": "#010101",
		"queueBg": "#0f171f", "toastBg": "#0f171f", "overlayBg": "#050505",
	}
}

// DefaultSiteConfig returns the first-run configuration.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		SiteName:            "LBM // System",
		MetaTitle:           "LBM System",
		MetaDescription:     "A personal microblogging archive.",
		Tagline:             "Personal Archive",
		LeafletsName:        "Leaflets",
		AllowComments:       true,
		Copyright:           "2025 LBM",
		ReactionsEnabled:    true,
		ReactionIcon:        "face",
		LikeLabel:           "(＾∇＾)",
		DislikeLabel:        "(；へ：)",
		WidgetPadding:       "1.5rem",
		AllowVideoDownloads: true,
		Colors:              defaultColors(),
	}
}

func splitTags(csv string) []string {
	var out []string
	for _, t := range strings.Split(csv, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
