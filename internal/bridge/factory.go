package bridge

import (
	"context"
	"fmt"

	"lbm-go/internal/config"
	"lbm-go/internal/lbm"
)

// NewPeerFromConfig builds the bridge peer for the configured backend.
// The caller owns starting and closing it.
func NewPeerFromConfig(ctx context.Context, cfg *config.Config, logger lbm.Logger) (*Peer, error) {
	sealer, err := sealerFromConfig(cfg.Bridge)
	if err != nil {
		return nil, err
	}

	var host HostStore
	switch cfg.Bridge.Type {
	case "memory":
		host = NewMemoryHost()
	case "filesystem":
		host = NewFileSystemHost(cfg.Bridge.FSRoot)
	case "s3":
		host, err = NewS3Host(ctx, cfg.Bridge)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown bridge type: %s", cfg.Bridge.Type)
	}

	return NewPeer(host, sealer, cfg.Bridge.APIKey, logger), nil
}

func sealerFromConfig(cfg config.BridgeConfig) (*Sealer, error) {
	if cfg.SealerKeyPath == "" {
		return NewEphemeralSealer()
	}
	return LoadOrCreateSealer(cfg.SealerKeyPath)
}
