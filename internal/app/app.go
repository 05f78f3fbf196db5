package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"lbm-go/internal/bridge"
	"lbm-go/internal/bundle"
	"lbm-go/internal/config"
	"lbm-go/internal/feed"
	"lbm-go/internal/lbm"
	"lbm-go/internal/localstore"
)

// LBMApp is the application layer between the CLI and the lbm service. It
// constructs all dependencies from config, starts the bridge peer and the
// event dispatcher, bootstraps the documents, and tears everything down
// on Close.
type LBMApp struct {
	cfg     *config.Config
	peer    *bridge.Peer
	local   lbm.LocalStore
	store   *bundle.Store
	uploads *lbm.UploadOrchestrator
	service *lbm.Service
	logger  lbm.Logger
	logFile *os.File
	cancel  context.CancelFunc
}

// NewLBMApp creates a fully wired LBMApp from the given config.
// operation identifies the CLI command being run (e.g. "AddPost", "Sync").
// The caller must call Close when done.
func NewLBMApp(ctx context.Context, cfg *config.Config, operation string) (*LBMApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	local, err := localstore.NewLocalStoreFromConfig(cfg)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating local store: %w", err)
	}

	peer, err := bridge.NewPeerFromConfig(ctx, cfg, logger)
	if err != nil {
		local.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating bridge peer: %w", err)
	}
	if err := peer.Start(ctx); err != nil {
		local.Close()
		logFile.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	dispatch := lbm.NewDispatcher(logger)
	go dispatch.Run(runCtx, peer)

	store := bundle.NewStore(local)
	session := lbm.NewSession()
	broker := lbm.NewCredentialBroker(peer, dispatch,
		time.Duration(cfg.Bridge.TokenizeTimeoutOrDefault())*time.Second, logger)
	uploads := lbm.NewUploadOrchestrator(peer, dispatch, broker, store, session,
		time.Duration(cfg.Bridge.UploadTimeoutOrDefault())*time.Second, logger)
	uploads.SetFeedExporter(feed.NewExporter(store, cfg.SiteURL))

	service := lbm.NewService(store, local, broker, uploads, session,
		lbm.RealClock{}, lbm.UUIDGenerator{}, logger)

	a := &LBMApp{
		cfg:     cfg,
		peer:    peer,
		local:   local,
		store:   store,
		uploads: uploads,
		service: service,
		logger:  logger,
		logFile: logFile,
		cancel:  cancel,
	}
	a.bootstrap()
	return a, nil
}

// Service exposes the client facade to the CLI.
func (a *LBMApp) Service() *lbm.Service { return a.service }

// SetPrompter attaches the interactive credential-repair prompter.
func (a *LBMApp) SetPrompter(p lbm.RepairPrompter) { a.uploads.SetPrompter(p) }

// bootstrap fetches the published documents and applies them. Every
// failure here is recoverable: a missing site simply means setup.
func (a *LBMApp) bootstrap() {
	system := a.fetchDocument("system.js")
	interactions := a.fetchDocument("interactions.js")
	a.service.Bootstrap(system, interactions)

	if locator, ok := a.service.UsersLocator(); ok {
		if script := a.fetchDocument(locator); script != "" {
			if err := a.service.LoadUsers(script); err != nil {
				a.logger.Warn("users bundle rejected", "error", err)
			}
		}
	}
}

// fetchDocument reads a published document back from the site: straight
// from disk for the filesystem backend, over HTTP otherwise. A missing
// document returns "".
func (a *LBMApp) fetchDocument(name string) string {
	switch a.cfg.Bridge.Type {
	case "filesystem":
		data, err := os.ReadFile(filepath.Join(a.cfg.Bridge.FSRoot, filepath.FromSlash(name)))
		if err != nil {
			a.logger.Debug("document not on disk", "name", name, "error", err)
			return ""
		}
		return string(data)
	default:
		if a.cfg.SiteURL == "" {
			return ""
		}
		url := fmt.Sprintf("%s/%s", trimSlash(a.cfg.SiteURL), name)
		resp, err := http.Get(url)
		if err != nil {
			a.logger.Warn("document fetch failed", "url", url, "error", err)
			return ""
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			a.logger.Debug("document not published", "url", url, "status", resp.StatusCode)
			return ""
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			a.logger.Warn("document read failed", "url", url, "error", err)
			return ""
		}
		return string(data)
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// RenderFeed renders the public feed document without uploading it.
func (a *LBMApp) RenderFeed() (string, error) {
	return feed.NewExporter(a.store, a.cfg.SiteURL).Render()
}

// Close shuts down the bridge and releases all resources.
func (a *LBMApp) Close() error {
	var firstErr error

	a.cancel()
	if err := a.peer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing bridge peer: %w", err)
	}
	if err := a.local.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing local store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
