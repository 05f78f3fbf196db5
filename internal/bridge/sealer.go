package bridge

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/goccy/go-json"
)

// Credentials is the material sealed inside a token.
type Credentials struct {
	Key    string    `json:"key"`
	Pass   string    `json:"pass"`
	Minted time.Time `json:"minted"`
}

// Sealer mints and verifies opaque tokens. The token is the hosting
// credentials encrypted to an identity only the bridge peer holds, so
// clients can store and replay it but never read it back.
type Sealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewSealer wraps an existing identity.
func NewSealer(identity *age.X25519Identity) *Sealer {
	return &Sealer{identity: identity, recipient: identity.Recipient()}
}

// NewEphemeralSealer generates a throwaway identity. Tokens minted with it
// die with the process; meant for the memory backend and tests.
func NewEphemeralSealer() (*Sealer, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating sealer identity: %w", err)
	}
	return NewSealer(identity), nil
}

// LoadOrCreateSealer reads the identity file at path, generating and
// writing one on first use so tokens stay valid across runs.
func LoadOrCreateSealer(path string) (*Sealer, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		identity, perr := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if perr != nil {
			return nil, fmt.Errorf("parsing sealer identity %s: %w", path, perr)
		}
		return NewSealer(identity), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading sealer identity: %w", err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating sealer identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating identity directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(identity.String()+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("writing sealer identity: %w", err)
	}
	return NewSealer(identity), nil
}

// Mint seals the raw credentials into a replayable token.
func (s *Sealer) Mint(rawKey, password string) (string, error) {
	payload, err := json.Marshal(Credentials{
		Key:    rawKey,
		Pass:   password,
		Minted: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding token payload: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return "", fmt.Errorf("sealing token: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return "", fmt.Errorf("sealing token: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("sealing token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Unseal verifies a token and returns the credentials inside. Any failure,
// from bad base64 to a token minted by another identity, is a single
// opaque error so callers cannot probe the sealing.
func (s *Sealer) Unseal(token string) (*Credentials, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token")
	}
	r, err := age.Decrypt(bytes.NewReader(sealed), s.identity)
	if err != nil {
		return nil, fmt.Errorf("invalid token")
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("invalid token")
	}
	var creds Credentials
	if err := json.Unmarshal(payload, &creds); err != nil {
		return nil, fmt.Errorf("invalid token")
	}
	return &creds, nil
}
