package bundle

import (
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

func TestEncodeScript_RoundTrip(t *testing.T) {
	t.Run("system bundle survives serialize/deserialize", func(t *testing.T) {
		token := "tok-123"
		secret := "hunter2"
		in := SystemBundle{
			AdminHash:  "abc123",
			SiteConfig: DefaultSiteConfig(),
			Posts: []Post{
				{
					ID:      1700000000000,
					Date:    "2023-11-14 22:13",
					Content: "héllo wörld — ユニコード",
					Media:   MediaList{"img/a.png", "img/b.png"},
					Tags:    []string{"art", "diary"},
					Pinned:  true,
					Access:  Access{Kind: AccessPassword, Secret: &secret},
				},
				{
					ID:      1700000000001,
					Date:    "2023-11-14 22:14",
					Content: "plain",
					Access:  Access{Kind: AccessPublic},
				},
			},
			AuthToken: &token,
		}

		script, err := EncodeScript(ConstSystem, in)
		if err != nil {
			t.Fatalf("EncodeScript() error = %v", err)
		}
		raw, err := DecodeScript(ConstSystem, script)
		if err != nil {
			t.Fatalf("DecodeScript() error = %v", err)
		}
		var out SystemBundle
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("round trip mismatch:\n in = %+v\nout = %+v", in, out)
		}
	})

	t.Run("interactions bundle keeps flat legacy shape", func(t *testing.T) {
		sender := "mika"
		in := InteractionsBundle{
			PerPost: map[int64]*PostStats{
				1700000000000: {
					Likes:    3,
					Dislikes: 1,
					Comments: []Comment{
						{ID: 10, Author: "Guest", Text: "hi", Date: "2023-11-15 08:00"},
					},
				},
			},
			Messages: []Message{
				{ID: 20, Sender: &sender, Text: "hello", Type: MessageText, Date: "2023-11-15 09:00"},
				{ID: 21, Text: "img/asks/a.png", Type: MessageImage, Date: "2023-11-15 09:05"},
			},
		}

		raw, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}

		// The wire document is flat: post ids are top-level keys.
		var flat map[string]json.RawMessage
		if err := json.Unmarshal(raw, &flat); err != nil {
			t.Fatalf("wire document is not an object: %v", err)
		}
		if _, ok := flat["1700000000000"]; !ok {
			t.Error("post stats not keyed by numeric-string id at top level")
		}
		if _, ok := flat["messages"]; !ok {
			t.Error("messages key missing at top level")
		}

		var out InteractionsBundle
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("round trip mismatch:\n in = %+v\nout = %+v", in, out)
		}
	})

	t.Run("reaction-only records keep an empty comments array", func(t *testing.T) {
		// Legacy readers bail on a missing or null comments field, so a
		// record that only ever saw reactions must still carry [].
		var in InteractionsBundle
		in.Stats(1700000000000).Likes = 2

		raw, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		var flat map[string]map[string]json.RawMessage
		if err := json.Unmarshal(raw, &flat); err != nil {
			t.Fatalf("wire document is not an object: %v", err)
		}
		if got := string(flat["1700000000000"]["comments"]); got != "[]" {
			t.Errorf("comments = %s, want []", got)
		}

		// The same shape survives a load of a legacy document without
		// the comments field.
		var out InteractionsBundle
		if err := json.Unmarshal([]byte(`{"5":{"likes":1,"dislikes":0},"messages":[]}`), &out); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if out.PerPost[5].Comments == nil {
			t.Error("loaded record left comments nil")
		}
	})

	t.Run("users bundle round trips", func(t *testing.T) {
		in := UsersBundle{
			Users: []User{
				{ID: 1, Username: "Mika", Hash: "deadbeef", Role: RoleMember},
				{ID: 2, Username: "vip-one", Hash: "cafebabe", Role: RoleElevated},
			},
			Roles: []string{RoleAdmin, RoleMember, RoleElevated},
		}
		script, err := EncodeScript(ConstUsers, in)
		if err != nil {
			t.Fatalf("EncodeScript() error = %v", err)
		}
		raw, err := DecodeScript(ConstUsers, script)
		if err != nil {
			t.Fatalf("DecodeScript() error = %v", err)
		}
		var out UsersBundle
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("round trip mismatch:\n in = %+v\nout = %+v", in, out)
		}
	})
}

func TestDecodeScript(t *testing.T) {
	t.Run("accepts bare base64", func(t *testing.T) {
		script, err := EncodeScript(ConstInteractions, InteractionsBundle{})
		if err != nil {
			t.Fatalf("EncodeScript() error = %v", err)
		}
		raw, err := DecodeScript(ConstInteractions, script)
		if err != nil {
			t.Fatalf("DecodeScript(script) error = %v", err)
		}
		// Strip the wrapper by hand and feed the payload directly.
		bare := script[len(`window.AZUMINT_INTERACTIONS = "`) : len(script)-2]
		raw2, err := DecodeScript(ConstInteractions, bare)
		if err != nil {
			t.Fatalf("DecodeScript(bare) error = %v", err)
		}
		if string(raw) != string(raw2) {
			t.Error("bare payload decoded differently from wrapped script")
		}
	})

	t.Run("rejects assignment to the wrong constant", func(t *testing.T) {
		script, _ := EncodeScript(ConstUsers, UsersBundle{})
		if _, err := DecodeScript(ConstSystem, script); err == nil {
			t.Error("expected error for mismatched constant name")
		}
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		if _, err := DecodeScript(ConstSystem, "not/valid base64!!"); err == nil {
			t.Error("expected error for invalid payload")
		}
	})
}

func TestMediaList_LegacyShapes(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want MediaList
	}{
		{"empty string means none", `""`, nil},
		{"bare string means one", `"img/a.png"`, MediaList{"img/a.png"}},
		{"array means many", `["img/a.png","img/b.png"]`, MediaList{"img/a.png", "img/b.png"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got MediaList
			if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tc.in, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Unmarshal(%s) = %v, want %v", tc.in, got, tc.want)
			}
			// Marshal must reproduce the same legacy shape.
			out, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(out) != tc.in {
				t.Errorf("Marshal() = %s, want %s", out, tc.in)
			}
		})
	}
}
