package cli

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/soyeahso/parley/internal/api"
	"github.com/soyeahso/parley/internal/channel"
	"github.com/soyeahso/parley/internal/domain"
)

// tokenSource returns the configured bearer token, or nil when none is set.
func tokenSource() oauth2.TokenSource {
	if cfg.Auth.Token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Auth.Token})
}

func newAPIClient() *api.Client {
	return api.New(cfg.Server.BaseURL, tokenSource(), cfg.Server.RequestTimeoutDuration(), log)
}

func newChannel() (*channel.WSChannel, error) {
	url, err := cfg.Server.ResolveChannelURL()
	if err != nil {
		return nil, err
	}
	return channel.NewWebSocket(channel.Options{
		URL:              url,
		Tokens:           tokenSource(),
		SendPolicy:       channel.SendPolicy(cfg.Channel.SendPolicy),
		QueueSize:        cfg.Channel.QueueSize,
		PingInterval:     cfg.Channel.PingIntervalDuration(),
		WriteTimeout:     cfg.Channel.WriteTimeoutDuration(),
		HandshakeTimeout: cfg.Channel.HandshakeTimeoutDuration(),
	}, log), nil
}

// currentUser returns the authenticated identity. An explicit auth.userId
// skips the profile lookup.
func currentUser(ctx context.Context, client *api.Client) (domain.UserIdentity, error) {
	if cfg.Auth.UserID != "" {
		return domain.UserIdentity{ID: cfg.Auth.UserID, Online: true}, nil
	}
	if cfg.Auth.Token == "" {
		return domain.UserIdentity{}, fmt.Errorf("no credentials: set auth.token (or PARLEY_TOKEN)")
	}
	me, err := client.Profile(ctx)
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("fetching profile: %w", err)
	}
	return me, nil
}
