// Package resolver obtains the conversation handle for a peer.
package resolver

import (
	"context"
	"errors"
	"sync"

	"github.com/soyeahso/parley/internal/domain"
	"github.com/soyeahso/parley/internal/logging"
)

// Backend creates or returns the conversation with receiverID. It must be
// idempotent per participant pair.
type Backend interface {
	CreateConversation(ctx context.Context, receiverID string) (domain.ConversationHandle, error)
}

// Resolver wraps a Backend and exposes only the latest successful result.
type Resolver struct {
	backend Backend
	log     *logging.Logger

	mu        sync.Mutex
	gen       uint64
	published uint64
	current   *domain.ConversationHandle
}

// New creates a Resolver.
func New(backend Backend, log *logging.Logger) *Resolver {
	return &Resolver{backend: backend, log: log.Sub("resolver")}
}

// Resolve asks the backend for the conversation with peerID. Concurrent calls
// are allowed; a completion is published only if no later call has published
// before it.
func (r *Resolver) Resolve(ctx context.Context, peerID string) (domain.ConversationHandle, error) {
	if peerID == "" {
		return domain.ConversationHandle{}, &domain.ResolutionFailedError{Err: errors.New("peer id is required")}
	}

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	h, err := r.backend.CreateConversation(ctx, peerID)
	if err == nil && h.ID == "" {
		err = errors.New("backend returned an empty conversation id")
	}
	if err == nil && h.Participants != [2]string{} && !h.Includes(peerID) {
		err = errors.New("conversation does not include peer")
	}
	if err != nil {
		r.log.Warn().Err(err).Str("peer", peerID).Uint64("gen", gen).Msg("resolution failed")
		return domain.ConversationHandle{}, &domain.ResolutionFailedError{PeerID: peerID, Err: err}
	}

	r.mu.Lock()
	if gen > r.published {
		r.published = gen
		r.current = &h
	}
	r.mu.Unlock()

	r.log.Debug().Str("peer", peerID).Str("conversation", h.ID).Uint64("gen", gen).Msg("resolved")
	return h, nil
}

// Current returns the published handle, if any.
func (r *Resolver) Current() (domain.ConversationHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return domain.ConversationHandle{}, false
	}
	return *r.current, true
}
