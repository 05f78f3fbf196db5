package lbm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lbm-go/internal/bundle"
)

func TestService_Setup(t *testing.T) {
	t.Run("first run mints a token and writes the system bundle", func(t *testing.T) {
		r := newRig(t, okResults)
		err := r.service.Setup(context.Background(), "hunter2", "raw-key", "")
		if err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if r.service.SetupRequired() {
			t.Error("still in setup state")
		}
		if r.store.System.AdminHash != sha256Hex("hunter2") {
			t.Error("admin hash not installed")
		}
		if !r.session.IsAdmin() {
			t.Error("setup did not open a privileged session")
		}
		sent := r.transport.sentMessages()
		if len(sent) != 2 || sent[0].Kind != KindTokenize || sent[1].Filename != "system.js" {
			t.Errorf("wire traffic = %+v, want tokenize then system save", sent)
		}
	})

	t.Run("rejected key aborts setup", func(t *testing.T) {
		r := newRig(t, func(n int, msg Message) []Message {
			return []Message{{Kind: KindTokenResult, Success: false, Text: "invalid credentials"}}
		})
		if err := r.service.Setup(context.Background(), "hunter2", "bad-key", ""); err == nil {
			t.Fatal("Setup() succeeded with a rejected key")
		}
		if !r.service.SetupRequired() {
			t.Error("left setup state despite failed exchange")
		}
	})
}

func TestService_AdminLogin(t *testing.T) {
	t.Run("wrong password is rejected", func(t *testing.T) {
		r := adminRig(t, okResults)
		r.session.Reset()
		if err := r.service.AdminLogin(context.Background(), "wrong"); err == nil {
			t.Error("AdminLogin() accepted a wrong password")
		}
		if r.session.IsAdmin() {
			t.Error("session privileged after failed login")
		}
	})

	t.Run("login upgrades a legacy raw key to a token", func(t *testing.T) {
		r := newRig(t, okResults)
		r.store.SetupRequired = false
		r.store.System.AdminHash = sha256Hex("hunter2")
		key := "raw-key"
		r.store.System.APIKey = &key
		r.broker.SetLegacyKey(key)

		if err := r.service.AdminLogin(context.Background(), "hunter2"); err != nil {
			t.Fatalf("AdminLogin() error = %v", err)
		}
		if r.broker.Token() != "tok-fresh" {
			t.Errorf("token = %q, want the upgraded one", r.broker.Token())
		}
		if r.store.System.APIKey != nil {
			t.Error("raw key still in the bundle after upgrade")
		}
		sent := r.transport.sentMessages()
		if len(sent) != 2 || sent[0].Kind != KindTokenize || sent[1].Filename != "system.js" {
			t.Errorf("wire traffic = %+v, want tokenize then system save", sent)
		}
	})

	t.Run("failed upgrade does not fail the login", func(t *testing.T) {
		r := newRig(t, nil) // peer never answers
		r.store.SetupRequired = false
		r.store.System.AdminHash = sha256Hex("hunter2")
		r.broker.SetLegacyKey("raw-key")

		if err := r.service.AdminLogin(context.Background(), "hunter2"); err != nil {
			t.Fatalf("AdminLogin() error = %v", err)
		}
		if !r.session.IsAdmin() {
			t.Error("login lost to a token upgrade failure")
		}
	})
}

func TestService_Members(t *testing.T) {
	t.Run("registration provisions the users file once", func(t *testing.T) {
		// Saving the users document needs the privileged secret, so
		// every registration happens while an admin session is held.
		r := adminRig(t, okResults)

		if err := r.service.RegisterMember(context.Background(), "mika", "pw1"); err != nil {
			t.Fatalf("RegisterMember() error = %v", err)
		}
		locator, ok := r.service.UsersLocator()
		if !ok {
			t.Fatal("users file not provisioned")
		}
		if !strings.HasPrefix(locator, "users_") || !strings.HasSuffix(locator, ".js") {
			t.Errorf("locator = %q", locator)
		}
		if !r.session.IsMember() {
			t.Error("registration did not sign the member in")
		}
		if r.local.session == nil {
			t.Error("member session not persisted")
		}

		// Second registration reuses the locator.
		r.service.Logout()
		r.session.BecomeAdmin("hunter2")
		if err := r.service.RegisterMember(context.Background(), "noa", "pw2"); err != nil {
			t.Fatalf("second RegisterMember() error = %v", err)
		}
		locator2, _ := r.service.UsersLocator()
		if locator2 != locator {
			t.Errorf("locator changed: %q -> %q", locator, locator2)
		}
	})

	t.Run("registration without a privileged secret is refused", func(t *testing.T) {
		r := adminRig(t, okResults)
		locator := "users_abcd1234.js"
		r.store.System.SiteConfig.UsersFile = &locator
		r.session.Reset()

		if err := r.service.RegisterMember(context.Background(), "mika", "pw"); !errors.Is(err, ErrNoSession) {
			t.Errorf("error = %v, want ErrNoSession", err)
		}
		if len(r.transport.sentMessages()) != 0 {
			t.Error("users document went on the wire for an anonymous registration")
		}
		if r.store.Users.FindUser("mika") != nil {
			t.Error("phantom user left behind")
		}
	})

	t.Run("reserved and duplicate usernames are refused", func(t *testing.T) {
		r := adminRig(t, okResults)
		if err := r.service.RegisterMember(context.Background(), "Admin", "pw"); err == nil {
			t.Error("reserved username accepted")
		}
		if err := r.service.RegisterMember(context.Background(), "mika", "pw"); err != nil {
			t.Fatalf("RegisterMember() error = %v", err)
		}
		if err := r.service.RegisterMember(context.Background(), "mika", "pw"); err == nil {
			t.Error("duplicate username accepted")
		}
	})

	t.Run("failed save rolls the new user back", func(t *testing.T) {
		r := adminRig(t, func(n int, msg Message) []Message {
			return []Message{{Kind: KindUploadResult, Success: false, Text: "rate limited"}}
		})
		if err := r.service.RegisterMember(context.Background(), "mika", "pw"); err == nil {
			t.Fatal("expected save failure")
		}
		if r.store.Users.FindUser("mika") != nil {
			t.Error("phantom user left behind after failed save")
		}
	})

	t.Run("disabled signups refuse registration", func(t *testing.T) {
		r := adminRig(t, okResults)
		r.store.System.SiteConfig.DisableSignups = true
		if err := r.service.RegisterMember(context.Background(), "mika", "pw"); err == nil {
			t.Error("registration allowed with signups disabled")
		}
	})

	t.Run("member login and logout round trip", func(t *testing.T) {
		r := adminRig(t, okResults)
		if err := r.service.RegisterMember(context.Background(), "mika", "pw1"); err != nil {
			t.Fatalf("RegisterMember() error = %v", err)
		}
		r.service.Logout()
		if r.session.IsMember() {
			t.Error("still a member after logout")
		}
		if err := r.service.MemberLogin("mika", "wrong"); err == nil {
			t.Error("wrong password accepted")
		}
		if err := r.service.MemberLogin("mika", "pw1"); err != nil {
			t.Fatalf("MemberLogin() error = %v", err)
		}
	})

	t.Run("member password update needs the privileged secret", func(t *testing.T) {
		r := adminRig(t, okResults)
		if err := r.service.RegisterMember(context.Background(), "mika", "pw1"); err != nil {
			t.Fatalf("RegisterMember() error = %v", err)
		}

		// Registration leaves a plain member session; the users save
		// behind the update is refused without the secret.
		if err := r.service.UpdateMemberPassword(context.Background(), "pw2"); !errors.Is(err, ErrNoSession) {
			t.Errorf("error = %v, want ErrNoSession", err)
		}
		if r.store.Users.FindUser("mika").Hash != sha256Hex("pw1") {
			t.Error("hash changed despite refused save")
		}

		// Supplying the privileged password keeps the member identity.
		r.session.BecomeAdmin("hunter2")
		if err := r.service.UpdateMemberPassword(context.Background(), "pw3"); err != nil {
			t.Fatalf("UpdateMemberPassword() error = %v", err)
		}
		if r.store.Users.FindUser("mika").Hash != sha256Hex("pw3") {
			t.Error("hash not updated")
		}
	})
}

func TestService_Posts(t *testing.T) {
	t.Run("media files upload before the post is created", func(t *testing.T) {
		r := adminRig(t, okResults)
		post, err := r.service.AddPost(context.Background(), "with media", nil, false,
			bundle.Access{Kind: bundle.AccessPublic},
			[]string{"https://cdn.example/clip.mp4"},
			[]MediaUpload{{Name: "photo.png", Payload: []byte{1, 2}}},
		)
		if err != nil {
			t.Fatalf("AddPost() error = %v", err)
		}
		want := bundle.MediaList{"img/photo.png", "https://cdn.example/clip.mp4"}
		if len(post.Media) != 2 || post.Media[0] != want[0] || post.Media[1] != want[1] {
			t.Errorf("Media = %v, want %v", post.Media, want)
		}
		sent := r.transport.sentMessages()
		if sent[0].MediaName != "img/photo.png" {
			t.Errorf("first wire message = %+v, want the media upload", sent[0])
		}
	})

	t.Run("failed media upload aborts the post", func(t *testing.T) {
		r := adminRig(t, func(n int, msg Message) []Message {
			if msg.MediaName != "" {
				return []Message{{Kind: KindUploadResult, Success: false, Text: "too large"}}
			}
			return []Message{{Kind: KindUploadResult, Success: true}}
		})
		_, err := r.service.AddPost(context.Background(), "x", nil, false,
			bundle.Access{}, nil, []MediaUpload{{Name: "big.png", Payload: []byte{1}}})
		if err == nil {
			t.Fatal("AddPost() succeeded despite failed media upload")
		}
		if len(r.store.System.Posts) != 0 {
			t.Error("post created despite aborted media upload")
		}
	})

	t.Run("listing is pinned first then newest first", func(t *testing.T) {
		r := adminRig(t, okResults)
		first, _ := r.service.AddPost(context.Background(), "first", nil, false, bundle.Access{}, nil, nil)
		pinned, _ := r.service.AddPost(context.Background(), "pinned", nil, true, bundle.Access{}, nil, nil)
		last, _ := r.service.AddPost(context.Background(), "last", nil, false, bundle.Access{}, nil, nil)

		views := r.service.ListPosts(ListOptions{})
		if len(views) != 3 {
			t.Fatalf("got %d views", len(views))
		}
		order := []int64{pinned.ID, last.ID, first.ID}
		for i, want := range order {
			if views[i].Post.ID != want {
				t.Errorf("views[%d].ID = %d, want %d", i, views[i].Post.ID, want)
			}
		}
	})

	t.Run("popular sorts by likes, controversial by dislikes", func(t *testing.T) {
		r := adminRig(t, okResults)
		quiet, _ := r.service.AddPost(context.Background(), "quiet", nil, false, bundle.Access{}, nil, nil)
		liked, _ := r.service.AddPost(context.Background(), "liked", nil, false, bundle.Access{}, nil, nil)
		divisive, _ := r.service.AddPost(context.Background(), "divisive", nil, false, bundle.Access{}, nil, nil)

		r.store.Interactions.Stats(liked.ID).Likes = 3
		r.store.Interactions.Stats(divisive.ID).Likes = 1
		r.store.Interactions.Stats(divisive.ID).Dislikes = 4
		// Comments never move a post in either order.
		r.store.Interactions.Stats(quiet.ID).Comments = []bundle.Comment{
			{ID: 1, Author: "Guest", Text: "a"}, {ID: 2, Author: "Guest", Text: "b"},
		}

		popular := r.service.ListPosts(ListOptions{Sort: SortPopular})
		want := []int64{liked.ID, divisive.ID, quiet.ID}
		for i, id := range want {
			if popular[i].Post.ID != id {
				t.Errorf("popular[%d] = %d, want %d", i, popular[i].Post.ID, id)
			}
		}

		controversial := r.service.ListPosts(ListOptions{Sort: SortControversial})
		if controversial[0].Post.ID != divisive.ID {
			t.Errorf("controversial[0] = %d, want %d", controversial[0].Post.ID, divisive.ID)
		}

		// Pinned posts lead regardless of the chosen order.
		if err := r.service.TogglePin(context.Background(), quiet.ID); err != nil {
			t.Fatalf("TogglePin() error = %v", err)
		}
		popular = r.service.ListPosts(ListOptions{Sort: SortPopular})
		if popular[0].Post.ID != quiet.ID {
			t.Errorf("popular[0] = %d, want the pinned post first", popular[0].Post.ID)
		}
	})

	t.Run("listing never materializes interaction records", func(t *testing.T) {
		r := adminRig(t, okResults)
		r.service.AddPost(context.Background(), "one", nil, false, bundle.Access{}, nil, nil)
		r.service.AddPost(context.Background(), "two", nil, false, bundle.Access{}, nil, nil)

		views := r.service.ListPosts(ListOptions{})
		if len(views) != 2 {
			t.Fatalf("got %d views", len(views))
		}
		if views[0].Stats.Likes != 0 || len(views[0].Stats.Comments) != 0 {
			t.Errorf("fresh post stats = %+v, want zeroes", views[0].Stats)
		}
		if got := len(r.store.Interactions.PerPost); got != 0 {
			t.Errorf("listing grew PerPost to %d entries, want 0", got)
		}
	})

	t.Run("editing updates content, tags, media and pin but not id or date", func(t *testing.T) {
		r := adminRig(t, okResults)
		post, _ := r.service.AddPost(context.Background(), "draft", []string{"old"}, false,
			bundle.Access{}, []string{"https://cdn.example/a.png"}, nil)
		id, date := post.ID, post.Date

		err := r.service.EditPost(context.Background(), id, "final", []string{"new"},
			true, bundle.Access{}, []string{"https://cdn.example/b.png"})
		if err != nil {
			t.Fatalf("EditPost() error = %v", err)
		}
		got := r.store.System.FindPost(id)
		if got.Content != "final" || len(got.Tags) != 1 || got.Tags[0] != "new" {
			t.Errorf("post = %+v", got)
		}
		if len(got.Media) != 1 || got.Media[0] != "https://cdn.example/b.png" {
			t.Errorf("Media = %v, want the replacement list", got.Media)
		}
		if !got.Pinned {
			t.Error("pin not applied")
		}
		if got.ID != id || got.Date != date {
			t.Error("id or date changed")
		}
		if got.Access.Kind != bundle.AccessPublic {
			t.Errorf("Access = %+v, want kept", got.Access)
		}
	})

	t.Run("tag and search filters", func(t *testing.T) {
		r := adminRig(t, okResults)
		r.service.AddPost(context.Background(), "a drawing of a cat", []string{"art"}, false, bundle.Access{}, nil, nil)
		r.service.AddPost(context.Background(), "diary entry", []string{"diary"}, false, bundle.Access{}, nil, nil)

		if got := r.service.ListPosts(ListOptions{Tag: "art"}); len(got) != 1 {
			t.Errorf("tag filter returned %d posts", len(got))
		}
		if got := r.service.ListPosts(ListOptions{Search: "CAT"}); len(got) != 1 {
			t.Errorf("search filter returned %d posts", len(got))
		}
	})

	t.Run("deleting a post drops its interactions", func(t *testing.T) {
		r := adminRig(t, okResults)
		post, _ := r.service.AddPost(context.Background(), "doomed", nil, false, bundle.Access{}, nil, nil)
		if err := r.service.React(context.Background(), post.ID, ActionLike); err != nil {
			t.Fatalf("React() error = %v", err)
		}
		if err := r.service.DeletePost(context.Background(), post.ID); err != nil {
			t.Fatalf("DeletePost() error = %v", err)
		}
		if _, ok := r.store.Interactions.PerPost[post.ID]; ok {
			t.Error("interaction record survived the post")
		}
	})
}

func TestService_Reactions(t *testing.T) {
	r := adminRig(t, okResults)
	post, _ := r.service.AddPost(context.Background(), "p", nil, false, bundle.Access{}, nil, nil)
	ctx := context.Background()

	likes := func() int { return r.store.Interactions.Stats(post.ID).Likes }
	dislikes := func() int { return r.store.Interactions.Stats(post.ID).Dislikes }

	if err := r.service.React(ctx, post.ID, ActionLike); err != nil {
		t.Fatalf("React() error = %v", err)
	}
	if likes() != 1 {
		t.Fatalf("likes = %d after first like", likes())
	}

	// Same action again withdraws it.
	if err := r.service.React(ctx, post.ID, ActionLike); err != nil {
		t.Fatalf("React() error = %v", err)
	}
	if likes() != 0 {
		t.Errorf("likes = %d after withdrawal, want 0", likes())
	}

	// Switching sides moves the count.
	r.service.React(ctx, post.ID, ActionLike)
	if err := r.service.React(ctx, post.ID, ActionDislike); err != nil {
		t.Fatalf("React() error = %v", err)
	}
	if likes() != 0 || dislikes() != 1 {
		t.Errorf("likes = %d, dislikes = %d after switch, want 0 and 1", likes(), dislikes())
	}

	t.Run("unknown action is rejected", func(t *testing.T) {
		if err := r.service.React(ctx, post.ID, "meh"); err == nil {
			t.Error("unknown action accepted")
		}
	})
}

func TestService_Comments(t *testing.T) {
	t.Run("reply parents must exist on the same post", func(t *testing.T) {
		r := adminRig(t, okResults)
		ctx := context.Background()
		a, _ := r.service.AddPost(ctx, "a", nil, false, bundle.Access{}, nil, nil)
		b, _ := r.service.AddPost(ctx, "b", nil, false, bundle.Access{}, nil, nil)

		if err := r.service.AddComment(ctx, a.ID, "root", nil); err != nil {
			t.Fatalf("AddComment() error = %v", err)
		}
		parent := r.store.Interactions.Stats(a.ID).Comments[0].ID

		if err := r.service.AddComment(ctx, a.ID, "child", &parent); err != nil {
			t.Errorf("reply on same post rejected: %v", err)
		}
		if err := r.service.AddComment(ctx, b.ID, "cross", &parent); err == nil {
			t.Error("reply accepted with parent from another post")
		}
	})

	t.Run("deleting a parent orphans replies without deleting them", func(t *testing.T) {
		r := adminRig(t, okResults)
		ctx := context.Background()
		p, _ := r.service.AddPost(ctx, "p", nil, false, bundle.Access{}, nil, nil)
		r.service.AddComment(ctx, p.ID, "root", nil)
		parent := r.store.Interactions.Stats(p.ID).Comments[0].ID
		r.service.AddComment(ctx, p.ID, "child", &parent)

		if err := r.service.DeleteComment(ctx, p.ID, parent); err != nil {
			t.Fatalf("DeleteComment() error = %v", err)
		}
		comments := r.store.Interactions.Stats(p.ID).Comments
		if len(comments) != 1 {
			t.Fatalf("comments = %d, want the orphan kept", len(comments))
		}
		if comments[0].ParentID == nil || *comments[0].ParentID != parent {
			t.Error("orphan lost its dangling parent id")
		}
	})

	t.Run("comments respect access rules", func(t *testing.T) {
		r := adminRig(t, okResults)
		ctx := context.Background()
		p, _ := r.service.AddPost(ctx, "secret", nil, false, bundle.Access{Kind: bundle.AccessMember}, nil, nil)
		r.session.Reset()
		if err := r.service.AddComment(ctx, p.ID, "hi", nil); err == nil {
			t.Error("anonymous comment accepted on a member post")
		}
	})
}

func TestService_Guestbook(t *testing.T) {
	t.Run("anonymous messages honor the switch", func(t *testing.T) {
		r := adminRig(t, okResults)
		r.session.Reset()
		r.store.System.SiteConfig.AllowAnonMessages = false
		if err := r.service.SendMessage(context.Background(), "hi", true); err == nil {
			t.Error("anonymous message accepted with the switch off")
		}
		r.store.System.SiteConfig.AllowAnonMessages = true
		if err := r.service.SendMessage(context.Background(), "hi", true); err != nil {
			t.Errorf("SendMessage() error = %v", err)
		}
	})

	t.Run("replies are write-once and private ones stay hidden", func(t *testing.T) {
		r := adminRig(t, okResults)
		ctx := context.Background()
		r.store.System.SiteConfig.AllowAnonMessages = true
		if err := r.service.SendMessage(ctx, "question", true); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
		id := r.store.Interactions.Messages[0].ID

		if err := r.service.ReplyMessage(ctx, id, "answer", true); err != nil {
			t.Fatalf("ReplyMessage() error = %v", err)
		}
		if err := r.service.ReplyMessage(ctx, id, "again", false); err == nil {
			t.Error("second reply accepted")
		}

		// The admin sees the private reply, an anonymous visitor does not.
		if got := r.service.VisibleMessages(); len(got) != 1 {
			t.Errorf("admin sees %d messages, want 1", len(got))
		}
		r.session.Reset()
		if got := r.service.VisibleMessages(); len(got) != 0 {
			t.Errorf("visitor sees %d messages, want 0 for a private thread", len(got))
		}
	})
}

func TestService_SiteLock(t *testing.T) {
	r := adminRig(t, okResults)
	h := sha256Hex("open-sesame")
	r.store.System.SiteConfig.SitePasswordHash = &h
	r.session.Reset()

	if !r.service.SiteLocked() {
		t.Fatal("site not locked despite password hash")
	}
	if r.service.UnlockSite("wrong") {
		t.Error("wrong site password accepted")
	}
	if !r.service.UnlockSite("open-sesame") {
		t.Fatal("right site password rejected")
	}
	if r.service.SiteLocked() {
		t.Error("site still locked after unlock")
	}
}

func TestService_ForceSyncAll(t *testing.T) {
	r := adminRig(t, okResults)
	if err := r.service.RegisterMember(context.Background(), "mika", "pw"); err != nil {
		t.Fatalf("RegisterMember() error = %v", err)
	}
	r.session.BecomeAdmin("hunter2")
	before := len(r.transport.sentMessages())

	if err := r.service.ForceSyncAll(context.Background()); err != nil {
		t.Fatalf("ForceSyncAll() error = %v", err)
	}
	var files []string
	for _, m := range r.transport.sentMessages()[before:] {
		files = append(files, m.Filename)
	}
	if len(files) != 3 || files[0] != "system.js" || files[1] != "interactions.js" || !strings.HasPrefix(files[2], "users_") {
		t.Errorf("sync uploaded %v, want system, interactions, users", files)
	}
}
