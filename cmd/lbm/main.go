package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"lbm-go/internal/app"
	"lbm-go/internal/bundle"
	"lbm-go/internal/config"
	"lbm-go/internal/lbm"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an LBMApp. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.LBMApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewLBMApp(context.Background(), cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	a.SetPrompter(terminalPrompter{})

	return a, nil
}

// adminLogin prompts for the privileged password and opens an admin
// session for this run.
func adminLogin(a *app.LBMApp) error {
	password, err := promptSecret("admin password")
	if err != nil {
		return err
	}
	return a.Service().AdminLogin(context.Background(), password)
}

// ensureSiteAccess prompts for the site password when the site is locked
// for this session.
func ensureSiteAccess(a *app.LBMApp) error {
	if !a.Service().SiteLocked() {
		return nil
	}
	password, err := promptSecret("site password")
	if err != nil {
		return err
	}
	if !a.Service().UnlockSite(password) {
		return fmt.Errorf("wrong site password")
	}
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

var rootCmd = &cobra.Command{
	Use:   "lbm",
	Short: "Static microblog client",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Site root: %s\n", cfg.Bridge.FSRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Site URL:  %s\n", cfg.SiteURL)
		fmt.Printf("Bridge:    %s\n", cfg.Bridge.Type)
		fmt.Printf("Store:     %s\n", cfg.Store.Type)
		return nil
	},
}

// setup command
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-run site initialization",
	RunE: func(cmd *cobra.Command, args []string) error {
		lockSite, _ := cmd.Flags().GetBool("site-password")

		a, err := newApp("Setup")
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.Service().SetupRequired() {
			return fmt.Errorf("site is already configured")
		}

		password, err := promptSecret("admin password")
		if err != nil {
			return err
		}
		rawKey, err := promptSecret("hosting key")
		if err != nil {
			return err
		}
		sitePassword := ""
		if lockSite {
			if sitePassword, err = promptSecret("site password"); err != nil {
				return err
			}
		}

		if err := a.Service().Setup(context.Background(), password, rawKey, sitePassword); err != nil {
			return err
		}
		fmt.Println("Site initialized.")
		return nil
	},
}

// login / logout
var loginCmd = &cobra.Command{
	Use:   "login [USERNAME]",
	Short: "Sign in as a member, or verify admin credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Login")
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			password, err := promptSecret("password")
			if err != nil {
				return err
			}
			if err := a.Service().MemberLogin(args[0], password); err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", args[0])
			return nil
		}

		if err := adminLogin(a); err != nil {
			return err
		}
		fmt.Println("Admin credentials verified.")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Logout")
		if err != nil {
			return err
		}
		defer a.Close()

		a.Service().Logout()
		fmt.Println("Signed out.")
		return nil
	},
}

// register command
var registerCmd = &cobra.Command{
	Use:   "register USERNAME",
	Short: "Register a member account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RegisterMember")
		if err != nil {
			return err
		}
		defer a.Close()

		// Writing the users document needs the privileged secret.
		if err := adminLogin(a); err != nil {
			return err
		}

		password, err := promptSecret("password")
		if err != nil {
			return err
		}
		if err := a.Service().RegisterMember(context.Background(), args[0], password); err != nil {
			return err
		}
		fmt.Printf("Registered and signed in as %s\n", args[0])
		return nil
	},
}

// post command
var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Manage posts",
}

func accessFromFlags(cmd *cobra.Command) (bundle.Access, error) {
	kind, _ := cmd.Flags().GetString("access")
	switch bundle.AccessKind(kind) {
	case "", bundle.AccessPublic:
		return bundle.Access{Kind: bundle.AccessPublic}, nil
	case bundle.AccessMember:
		return bundle.Access{Kind: bundle.AccessMember}, nil
	case bundle.AccessAdmin:
		return bundle.Access{Kind: bundle.AccessAdmin}, nil
	case bundle.AccessPassword:
		secret, err := promptSecret("post password")
		if err != nil {
			return bundle.Access{}, err
		}
		return bundle.Access{Kind: bundle.AccessPassword, Secret: &secret}, nil
	default:
		return bundle.Access{}, fmt.Errorf("unknown access kind %q", kind)
	}
}

var postAddCmd = &cobra.Command{
	Use:   "add CONTENT",
	Short: "Create a post",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, _ := cmd.Flags().GetString("tags")
		pin, _ := cmd.Flags().GetBool("pin")
		mediaURLs, _ := cmd.Flags().GetStringArray("media")
		files, _ := cmd.Flags().GetStringArray("file")

		a, err := newApp("AddPost")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		access, err := accessFromFlags(cmd)
		if err != nil {
			return err
		}

		var uploads []lbm.MediaUpload
		for _, f := range files {
			payload, err := os.ReadFile(f)
			if err != nil {
				return fmt.Errorf("reading media file: %w", err)
			}
			uploads = append(uploads, lbm.MediaUpload{Name: f, Payload: payload})
		}

		post, err := a.Service().AddPost(context.Background(),
			strings.Join(args, " "), splitCSV(tags), pin, access, mediaURLs, uploads)
		if err != nil {
			return err
		}
		fmt.Printf("Created post %d\n", post.ID)
		return nil
	},
}

var postListCmd = &cobra.Command{
	Use:   "list",
	Short: "List posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")
		search, _ := cmd.Flags().GetString("search")
		sortBy, _ := cmd.Flags().GetString("sort")

		a, err := newApp("ListPosts")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureSiteAccess(a); err != nil {
			return err
		}

		views := a.Service().ListPosts(lbm.ListOptions{Tag: tag, Search: search, Sort: sortBy})
		if len(views) == 0 {
			fmt.Println("No posts.")
			return nil
		}

		for _, v := range views {
			pin := " "
			if v.Post.Pinned {
				pin = "*"
			}
			body := firstLine(v.Post.Content)
			if !v.Readable {
				body = "[locked]"
			}
			fmt.Printf("%s %d  %s  +%d/-%d/%dc  %s\n",
				pin, v.Post.ID, v.Post.Date,
				v.Stats.Likes, v.Stats.Dislikes, len(v.Stats.Comments),
				body,
			)
		}
		return nil
	},
}

var postShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("ShowPost")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureSiteAccess(a); err != nil {
			return err
		}

		svc := a.Service()
		post := svc.Store().System.FindPost(id)
		if post == nil {
			return fmt.Errorf("no post with id %d", id)
		}

		if post.Access.Kind == bundle.AccessPassword && !svc.Session().PostUnlocked(id) && !svc.Session().IsAdmin() {
			secret, err := promptSecret("post password")
			if err != nil {
				return err
			}
			if !svc.UnlockPost(id, secret) {
				return fmt.Errorf("wrong post password")
			}
		}

		views := svc.ListPosts(lbm.ListOptions{})
		for _, v := range views {
			if v.Post.ID != id {
				continue
			}
			if !v.Readable {
				return fmt.Errorf("no access to post %d", id)
			}
			fmt.Printf("#%d  %s\n", v.Post.ID, v.Post.Date)
			if len(v.Post.Tags) > 0 {
				fmt.Printf("tags: %s\n", strings.Join(v.Post.Tags, ", "))
			}
			fmt.Println(v.Post.Content)
			for _, m := range v.Post.Media {
				fmt.Printf("media: %s\n", m)
			}
			for _, c := range v.Stats.Comments {
				reply := ""
				if c.ParentID != nil {
					reply = fmt.Sprintf(" (re %d)", *c.ParentID)
				}
				fmt.Printf("  [%d] %s%s: %s\n", c.ID, c.Author, reply, c.Text)
			}
			return nil
		}
		return fmt.Errorf("no post with id %d", id)
	},
}

var postEditCmd = &cobra.Command{
	Use:   "edit ID CONTENT",
	Short: "Edit a post",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		tags, _ := cmd.Flags().GetString("tags")

		a, err := newApp("EditPost")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		post := a.Service().Store().System.FindPost(id)
		if post == nil {
			return fmt.Errorf("no post with id %d", id)
		}

		// Unset flags keep the post's current values.
		var access bundle.Access
		if kind, _ := cmd.Flags().GetString("access"); kind != "" {
			if access, err = accessFromFlags(cmd); err != nil {
				return err
			}
		}
		pin := post.Pinned
		if cmd.Flags().Changed("pin") {
			pin, _ = cmd.Flags().GetBool("pin")
		}
		media := []string(post.Media)
		if cmd.Flags().Changed("media") {
			media, _ = cmd.Flags().GetStringArray("media")
		}

		if err := a.Service().EditPost(context.Background(), id,
			strings.Join(args[1:], " "), splitCSV(tags), pin, access, media); err != nil {
			return err
		}
		fmt.Printf("Updated post %d\n", id)
		return nil
	},
}

var postRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("DeletePost")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		if err := a.Service().DeletePost(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted post %d\n", id)
		return nil
	},
}

var postPinCmd = &cobra.Command{
	Use:   "pin ID",
	Short: "Toggle a post's pin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("TogglePin")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		if err := a.Service().TogglePin(context.Background(), id); err != nil {
			return err
		}
		return nil
	},
}

// react command
var reactCmd = &cobra.Command{
	Use:   "react ID like|dislike",
	Short: "React to a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("React")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().React(context.Background(), id, args[1]); err != nil {
			return err
		}
		return nil
	},
}

// comment command
var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Manage comments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add POST_ID TEXT",
	Short: "Comment on a post",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := parseID(args[0])
		if err != nil {
			return err
		}
		replyTo, _ := cmd.Flags().GetInt64("reply-to")

		a, err := newApp("AddComment")
		if err != nil {
			return err
		}
		defer a.Close()

		var parent *int64
		if replyTo != 0 {
			parent = &replyTo
		}
		if err := a.Service().AddComment(context.Background(), postID,
			strings.Join(args[1:], " "), parent); err != nil {
			return err
		}
		return nil
	},
}

var commentRmCmd = &cobra.Command{
	Use:   "rm POST_ID COMMENT_ID",
	Short: "Delete a comment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := parseID(args[0])
		if err != nil {
			return err
		}
		commentID, err := parseID(args[1])
		if err != nil {
			return err
		}

		a, err := newApp("DeleteComment")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		return a.Service().DeleteComment(context.Background(), postID, commentID)
	},
}

// msg command
var msgCmd = &cobra.Command{
	Use:   "msg",
	Short: "Guestbook messages",
}

var msgSendCmd = &cobra.Command{
	Use:   "send TEXT",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		anon, _ := cmd.Flags().GetBool("anon")

		a, err := newApp("SendMessage")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Service().SendMessage(context.Background(), strings.Join(args, " "), anon)
	},
}

var msgDrawCmd = &cobra.Command{
	Use:   "draw FILE",
	Short: "Send a drawing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		anon, _ := cmd.Flags().GetBool("anon")

		a, err := newApp("SendDrawing")
		if err != nil {
			return err
		}
		defer a.Close()

		payload, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading drawing: %w", err)
		}
		return a.Service().SendDrawing(context.Background(), args[0], payload, anon)
	},
}

var msgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		asAdmin, _ := cmd.Flags().GetBool("admin")

		a, err := newApp("ListMessages")
		if err != nil {
			return err
		}
		defer a.Close()

		if asAdmin {
			if err := adminLogin(a); err != nil {
				return err
			}
		}

		msgs := a.Service().VisibleMessages()
		if len(msgs) == 0 {
			fmt.Println("No messages.")
			return nil
		}
		for _, m := range msgs {
			sender := "anonymous"
			if m.Sender != nil {
				sender = *m.Sender
			}
			fmt.Printf("[%d] %s  %s: %s\n", m.ID, m.Date, sender, m.Text)
			if m.Reply != nil {
				private := ""
				if m.IsPrivate {
					private = " (private)"
				}
				fmt.Printf("      reply%s: %s\n", private, *m.Reply)
			}
		}
		return nil
	},
}

var msgReplyCmd = &cobra.Command{
	Use:   "reply ID TEXT",
	Short: "Reply to a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		private, _ := cmd.Flags().GetBool("private")

		a, err := newApp("ReplyMessage")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		return a.Service().ReplyMessage(context.Background(), id, strings.Join(args[1:], " "), private)
	},
}

var msgRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("DeleteMessage")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		return a.Service().DeleteMessage(context.Background(), id)
	},
}

// users command
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage member accounts",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListUsers")
		if err != nil {
			return err
		}
		defer a.Close()

		users := a.Service().Store().Users.Users
		if len(users) == 0 {
			fmt.Println("No accounts.")
			return nil
		}
		for _, u := range users {
			fmt.Printf("%d  %-10s  %s\n", u.ID, u.Role, u.Username)
		}
		return nil
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add USERNAME",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")

		a, err := newApp("CreateUser")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		password, err := promptSecret("password")
		if err != nil {
			return err
		}
		return a.Service().CreateUser(context.Background(), args[0], password, role)
	},
}

var usersRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("DeleteUser")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		return a.Service().DeleteUser(context.Background(), id)
	},
}

var usersRoleCmd = &cobra.Command{
	Use:   "role ID ROLE",
	Short: "Change an account's role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("SetUserRole")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		return a.Service().SetUserRole(context.Background(), id, args[1])
	},
}

// passwd commands
var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change your member password",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("UpdateMemberPassword")
		if err != nil {
			return err
		}
		defer a.Close()

		// The users document is privileged; the member identity itself
		// comes from the stored session record.
		if err := adminLogin(a); err != nil {
			return err
		}

		newPassword, err := promptSecret("new password")
		if err != nil {
			return err
		}
		return a.Service().UpdateMemberPassword(context.Background(), newPassword)
	},
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Privileged maintenance",
}

var adminPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the admin password",
	RunE: func(cmd *cobra.Command, args []string) error {
		rotate, _ := cmd.Flags().GetBool("rotate-key")

		a, err := newApp("UpdateAdminCredentials")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		newPassword, err := promptSecret("new admin password")
		if err != nil {
			return err
		}
		rawKey := ""
		if rotate {
			if rawKey, err = promptSecret("hosting key"); err != nil {
				return err
			}
		}
		return a.Service().UpdateAdminCredentials(context.Background(), newPassword, rawKey)
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push every document to the remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ForceSyncAll")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := adminLogin(a); err != nil {
			return err
		}
		if err := a.Service().ForceSyncAll(context.Background()); err != nil {
			return err
		}
		fmt.Println("All documents synced.")
		return nil
	},
}

// feed command
var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print the public RSS feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RenderFeed")
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.RenderFeed()
		if err != nil {
			return err
		}
		fmt.Print(doc)
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show site status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		svc := a.Service()
		if svc.SetupRequired() {
			fmt.Println("Site not configured: run `lbm setup`.")
			return nil
		}

		store := svc.Store()
		fmt.Printf("Site:     %s\n", store.System.SiteConfig.SiteName)
		fmt.Printf("Posts:    %d\n", len(store.System.Posts))
		fmt.Printf("Accounts: %d\n", len(store.Users.Users))
		fmt.Printf("Messages: %d\n", len(store.Interactions.Messages))
		if locator, ok := svc.UsersLocator(); ok {
			fmt.Printf("Users file: %s\n", locator)
		}
		if u := svc.Session().User(); u != nil {
			fmt.Printf("Signed in as %s (%s)\n", u.Username, u.Role)
		}
		return nil
	},
}

func splitCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 72 {
		s = s[:72] + "..."
	}
	return s
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// post subcommands
	postCmd.AddCommand(postAddCmd)
	postAddCmd.Flags().String("tags", "", "Comma-separated tags")
	postAddCmd.Flags().Bool("pin", false, "Pin the post")
	postAddCmd.Flags().String("access", "public", "Access kind: public, member, admin or password")
	postAddCmd.Flags().StringArray("media", nil, "Media URL (repeatable)")
	postAddCmd.Flags().StringArray("file", nil, "Local media file to upload (repeatable)")
	postCmd.AddCommand(postListCmd)
	postListCmd.Flags().String("tag", "", "Filter by tag")
	postListCmd.Flags().String("search", "", "Filter by content")
	postListCmd.Flags().String("sort", "", "Sort order: popular or controversial")
	postCmd.AddCommand(postShowCmd)
	postCmd.AddCommand(postEditCmd)
	postEditCmd.Flags().String("tags", "", "Comma-separated tags")
	postEditCmd.Flags().String("access", "", "Access kind: public, member, admin or password")
	postEditCmd.Flags().Bool("pin", false, "Pin or unpin the post")
	postEditCmd.Flags().StringArray("media", nil, "Replacement media URL (repeatable)")
	postCmd.AddCommand(postRmCmd)
	postCmd.AddCommand(postPinCmd)

	// comment subcommands
	commentCmd.AddCommand(commentAddCmd)
	commentAddCmd.Flags().Int64("reply-to", 0, "Parent comment id")
	commentCmd.AddCommand(commentRmCmd)

	// msg subcommands
	msgCmd.AddCommand(msgSendCmd)
	msgSendCmd.Flags().Bool("anon", false, "Send anonymously")
	msgCmd.AddCommand(msgDrawCmd)
	msgDrawCmd.Flags().Bool("anon", false, "Send anonymously")
	msgCmd.AddCommand(msgListCmd)
	msgListCmd.Flags().Bool("admin", false, "List as admin, private threads included")
	msgCmd.AddCommand(msgReplyCmd)
	msgReplyCmd.Flags().Bool("private", false, "Reply privately")
	msgCmd.AddCommand(msgRmCmd)

	// users subcommands
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
	usersAddCmd.Flags().String("role", "member", "Account role")
	usersCmd.AddCommand(usersRmCmd)
	usersCmd.AddCommand(usersRoleCmd)

	// admin subcommands
	adminCmd.AddCommand(adminPasswdCmd)
	adminPasswdCmd.Flags().Bool("rotate-key", false, "Also rotate the hosting key")

	// setup flags
	setupCmd.Flags().Bool("site-password", false, "Lock the whole site behind a password")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(reactCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(msgCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(statusCmd)
}
