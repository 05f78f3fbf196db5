package bundle

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

// fakeCache is an in-memory CacheStore for tests.
type fakeCache struct {
	payload []byte
	saves   int
	failing bool
}

func (f *fakeCache) LoadConfigCache() ([]byte, error) {
	if f.failing {
		return nil, errors.New("cache unavailable")
	}
	return f.payload, nil
}

func (f *fakeCache) SaveConfigCache(p []byte) error {
	if f.failing {
		return errors.New("cache unavailable")
	}
	f.payload = append([]byte(nil), p...)
	f.saves++
	return nil
}

func systemScript(t *testing.T, payload string) string {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		t.Fatalf("bad test payload: %v", err)
	}
	script, err := EncodeScript(ConstSystem, v)
	if err != nil {
		t.Fatalf("EncodeScript() error = %v", err)
	}
	return script
}

func TestStore_LoadAuthoritativeSystem(t *testing.T) {
	t.Run("authoritative fields win, absent fields keep cached values", func(t *testing.T) {
		s := NewStore(nil)
		s.System.SiteConfig.SiteName = "cached name"
		s.System.SiteConfig.Tagline = "cached tagline"
		s.System.SiteConfig.Colors["accent"] = "#111111"
		s.System.SiteConfig.Colors["bg"] = "#222222"

		script := systemScript(t, `{
			"adminHash": "h1",
			"siteConfig": {"siteName": "remote name", "colors": {"accent": "#999999"}},
			"posts": []
		}`)
		if err := s.LoadAuthoritativeSystem(script); err != nil {
			t.Fatalf("LoadAuthoritativeSystem() error = %v", err)
		}

		cfg := s.System.SiteConfig
		if cfg.SiteName != "remote name" {
			t.Errorf("SiteName = %q, want remote value", cfg.SiteName)
		}
		if cfg.Tagline != "cached tagline" {
			t.Errorf("Tagline = %q, want cached value retained", cfg.Tagline)
		}
		if cfg.Colors["accent"] != "#999999" {
			t.Errorf("colors.accent = %q, want remote value", cfg.Colors["accent"])
		}
		if cfg.Colors["bg"] != "#222222" {
			t.Errorf("colors.bg = %q, want cached value retained", cfg.Colors["bg"])
		}
		if s.SetupRequired {
			t.Error("SetupRequired still set after authoritative load")
		}
	})

	t.Run("corrupt bundle is never partially applied", func(t *testing.T) {
		s := NewStore(nil)
		s.System.AdminHash = "before"
		s.System.SiteConfig.SiteName = "before"

		script, _ := EncodeScript(ConstSystem, "not an object")
		if err := s.LoadAuthoritativeSystem(script); err == nil {
			t.Fatal("expected parse error")
		}
		if s.System.AdminHash != "before" || s.System.SiteConfig.SiteName != "before" {
			t.Error("corrupt bundle partially applied")
		}
		if !s.SetupRequired {
			t.Error("store left setup state despite failed load")
		}
	})

	t.Run("credential material is applied", func(t *testing.T) {
		s := NewStore(nil)
		script := systemScript(t, `{"adminHash":"h","siteConfig":{},"posts":[],"authToken":"tok-1"}`)
		if err := s.LoadAuthoritativeSystem(script); err != nil {
			t.Fatalf("LoadAuthoritativeSystem() error = %v", err)
		}
		if s.System.AuthToken == nil || *s.System.AuthToken != "tok-1" {
			t.Errorf("AuthToken = %v, want tok-1", s.System.AuthToken)
		}
	})
}

func TestStore_LocalCache(t *testing.T) {
	t.Run("cached config overlays defaults", func(t *testing.T) {
		cache := &fakeCache{payload: []byte(`{"siteName":"from cache","colors":{"accent":"#333333"}}`)}
		s := NewStore(cache)
		s.LoadLocalCache()

		if s.System.SiteConfig.SiteName != "from cache" {
			t.Errorf("SiteName = %q, want cached value", s.System.SiteConfig.SiteName)
		}
		if s.System.SiteConfig.Colors["accent"] != "#333333" {
			t.Errorf("colors.accent = %q, want cached value", s.System.SiteConfig.Colors["accent"])
		}
		// Untouched defaults survive the overlay.
		if !s.System.SiteConfig.AllowComments {
			t.Error("AllowComments default lost during overlay")
		}
	})

	t.Run("persist failures are reported but harmless", func(t *testing.T) {
		s := NewStore(&fakeCache{failing: true})
		if err := s.PersistLocal(); err == nil {
			t.Error("expected error from failing cache")
		}
		// The store itself must stay usable.
		if s.System.SiteConfig.SiteName == "" {
			t.Error("store state damaged by persist failure")
		}
	})

	t.Run("authoritative load refreshes the cache", func(t *testing.T) {
		cache := &fakeCache{}
		s := NewStore(cache)
		script := systemScript(t, `{"adminHash":"h","siteConfig":{"siteName":"x"},"posts":[]}`)
		if err := s.LoadAuthoritativeSystem(script); err != nil {
			t.Fatalf("LoadAuthoritativeSystem() error = %v", err)
		}
		if cache.saves != 1 {
			t.Errorf("cache saves = %d, want 1", cache.saves)
		}
	})
}

func TestStore_SerializeSystem(t *testing.T) {
	t.Run("token supersedes the legacy raw key", func(t *testing.T) {
		s := NewStore(nil)
		key := "raw-api-key"
		s.System.APIKey = &key

		script, err := s.SerializeSystem("tok-9")
		if err != nil {
			t.Fatalf("SerializeSystem() error = %v", err)
		}
		raw, err := DecodeScript(ConstSystem, script)
		if err != nil {
			t.Fatalf("DecodeScript() error = %v", err)
		}
		var out SystemBundle
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if out.AuthToken == nil || *out.AuthToken != "tok-9" {
			t.Errorf("AuthToken = %v, want tok-9", out.AuthToken)
		}
		if out.APIKey != nil {
			t.Errorf("APIKey = %v, want nil once a token exists", *out.APIKey)
		}
		if s.System.APIKey != nil {
			t.Error("in-memory bundle still holds the superseded raw key")
		}
	})

	t.Run("without a token the raw key is kept", func(t *testing.T) {
		s := NewStore(nil)
		key := "raw-api-key"
		s.System.APIKey = &key

		script, err := s.SerializeSystem("")
		if err != nil {
			t.Fatalf("SerializeSystem() error = %v", err)
		}
		raw, _ := DecodeScript(ConstSystem, script)
		var out SystemBundle
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if out.APIKey == nil || *out.APIKey != "raw-api-key" {
			t.Errorf("APIKey = %v, want raw key retained", out.APIKey)
		}
	})
}
