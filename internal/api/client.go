// Package api is a client for the chat backend's REST endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/oauth2"

	"github.com/soyeahso/parley/internal/domain"
	"github.com/soyeahso/parley/internal/logging"
	"github.com/soyeahso/parley/internal/version"
)

// Client talks to the conversation, history and profile endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logging.Logger
}

// New creates a client rooted at baseURL (e.g. http://localhost:5000/api).
// Every request carries the bearer token from tokens.
func New(baseURL string, tokens oauth2.TokenSource, timeout time.Duration, log *logging.Logger) *Client {
	hc := &http.Client{}
	if tokens != nil {
		hc = oauth2.NewClient(context.Background(), tokens)
	}
	hc.Timeout = timeout
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    hc,
		log:     log.Sub("api"),
	}
}

// CreateConversation gets or creates the conversation with receiverID.
// The backend guarantees one conversation per participant pair.
func (c *Client) CreateConversation(ctx context.Context, receiverID string) (domain.ConversationHandle, error) {
	c.log.Debug().Str("receiver", receiverID).Msg("requesting conversation")

	var conv Conversation
	body := map[string]string{"receiverId": receiverID}
	if err := c.do(ctx, http.MethodPost, "/chat/conversation", body, &conv); err != nil {
		return domain.ConversationHandle{}, err
	}

	if conv.Key() == "" {
		return domain.ConversationHandle{}, fmt.Errorf("conversation response has no id")
	}

	h := domain.ConversationHandle{ID: conv.Key()}
	for i, p := range conv.Participants {
		if i >= len(h.Participants) {
			break
		}
		id, err := p.ID()
		if err != nil {
			return domain.ConversationHandle{}, fmt.Errorf("participant %d: %w", i, err)
		}
		h.Participants[i] = id
	}
	return h, nil
}

// Messages returns the persisted messages of a conversation in server order.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	c.log.Debug().Str("conversation", conversationID).Msg("fetching messages")

	var msgs []Message
	if err := c.do(ctx, http.MethodGet, "/chat/messages/"+url.PathEscape(conversationID), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Profile returns the authenticated user.
func (c *Client) Profile(ctx context.Context) (domain.UserIdentity, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &u); err != nil {
		return domain.UserIdentity{}, err
	}
	return u.Identity(), nil
}

// Users lists every user the backend knows about.
func (c *Client) Users(ctx context.Context) ([]domain.UserIdentity, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/auth/users", nil, &users); err != nil {
		return nil, err
	}
	return lo.Map(users, func(u User, _ int) domain.UserIdentity {
		return u.Identity()
	}), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var shape struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &shape) == nil && shape.Message != "" {
			apiErr.Message = shape.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
