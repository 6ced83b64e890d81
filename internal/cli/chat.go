package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/soyeahso/parley/internal/api"
	"github.com/soyeahso/parley/internal/channel"
	"github.com/soyeahso/parley/internal/domain"
	"github.com/soyeahso/parley/internal/history"
	"github.com/soyeahso/parley/internal/hooks"
	"github.com/soyeahso/parley/internal/resolver"
	"github.com/soyeahso/parley/internal/session"
	"github.com/soyeahso/parley/internal/store"
)

const chatHelp = `Type a message and press enter to send it.
  /retry      retry opening the conversation after a failure
  /reconnect  re-dial the channel after a connection problem
  /history    reprint the conversation
  /who        show the peer's presence
  /quit       leave the chat`

func newChatCmd() *cobra.Command {
	var archive bool

	cmd := &cobra.Command{
		Use:   "chat <peer-id>",
		Short: "Open a live conversation with another user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := newAPIClient()
			self, err := currentUser(ctx, client)
			if err != nil {
				return err
			}
			if args[0] == self.ID {
				return fmt.Errorf("cannot open a conversation with yourself")
			}
			peer := lookupPeer(ctx, client, args[0])

			ch, err := newChannel()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			hookMgr := hooks.NewManager(log)
			sess := session.New(session.Options{
				Self:            self,
				Peer:            peer,
				Channel:         ch,
				Resolver:        resolver.New(client, log),
				History:         history.New(client, log),
				Hooks:           hookMgr,
				ReconcileWindow: cfg.Timeline.ReconcileWindowDuration(),
			}, log)

			r := &chatRenderer{out: out, self: self, peer: peer, messages: sess.Messages}
			hookMgr.On(hooks.AnyEvent, "terminal", r.handle)

			fmt.Fprintf(out, "Chatting with %s. Type /help for commands.\n", displayName(peer))
			if err := sess.Open(ctx); err != nil {
				return err
			}

			loopErr := runChat(ctx, sess, ch, cmd.InOrStdin(), r)

			if archive || cfg.Archive.Enabled {
				if err := archiveTranscript(sess, self.ID); err != nil {
					log.Warn().Err(err).Msg("failed to archive transcript")
				}
			}

			closeErr := sess.Close()
			sess.Wait()
			if loopErr != nil {
				return loopErr
			}
			if closeErr != nil {
				log.Debug().Err(closeErr).Msg("closing session")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&archive, "archive", false, "save the transcript to the local archive on exit")
	return cmd
}

// lookupPeer fills in the peer's name and presence when the backend knows it.
func lookupPeer(ctx context.Context, client *api.Client, peerID string) domain.UserIdentity {
	users, err := client.Users(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("user lookup failed")
		return domain.UserIdentity{ID: peerID}
	}
	if u, ok := lo.Find(users, func(u domain.UserIdentity) bool { return u.ID == peerID }); ok {
		return u
	}
	return domain.UserIdentity{ID: peerID}
}

func archiveTranscript(sess *session.Session, selfID string) error {
	h, ok := sess.Handle()
	if !ok {
		return nil
	}
	db, err := store.Open(archivePath(), log)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.SaveTranscript(h, selfID, sess.Messages())
}

// runChat reads lines from in until EOF, /quit or ctx is cancelled.
func runChat(ctx context.Context, sess *session.Session, ch channel.Channel, in io.Reader, r *chatRenderer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, sess, ch, strings.TrimRight(line, "\r"), r); quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, sess *session.Session, ch channel.Channel, line string, r *chatRenderer) bool {
	switch strings.TrimSpace(line) {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/help":
		r.printf("%s\n", chatHelp)
		return false
	case "/retry":
		if err := sess.Retry(); err != nil {
			r.printf("! %v\n", err)
		}
		return false
	case "/reconnect":
		if err := ch.Reconnect(ctx); err != nil {
			r.printf("! reconnect failed: %v\n", err)
		} else {
			r.printf("* reconnected\n")
		}
		return false
	case "/history":
		r.printTimeline()
		return false
	case "/who":
		p := sess.Presence()
		r.printf("* %s is %s%s\n", displayName(r.peer), onlineWord(p.Online), lo.Ternary(p.Typing, ", typing", ""))
		return false
	}

	if err := sess.InputChanged(ctx, line); err != nil {
		log.Debug().Err(err).Msg("typing signal failed")
	}
	if _, err := sess.SendMessage(ctx, line); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotReady):
			r.printf("! not ready to send (%s)\n", sess.State())
		default:
			r.printf("! message not sent: %v\n", err)
		}
		_ = sess.InputChanged(ctx, "")
	}
	return false
}

// chatRenderer prints session notifications to the terminal.
type chatRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	self     domain.UserIdentity
	peer     domain.UserIdentity
	messages func() []domain.Message
}

func (r *chatRenderer) handle(_ context.Context, p hooks.Payload) error {
	switch p.Event {
	case hooks.EventStateChanged:
		switch p.Data["to"] {
		case session.Ready.String():
			r.printf("* conversation ready\n")
		case session.ResolutionFailed.String():
			r.printf("! could not open the conversation: %v (type /retry)\n", p.Data["error"])
		}
	case hooks.EventTimelineSeeded:
		r.printTimeline()
	case hooks.EventHistoryFailed:
		r.printf("! history unavailable, showing live messages only\n")
	case hooks.EventMessageReceived:
		if p.Data["outcome"] != "appended" {
			return nil
		}
		sentAt, _ := p.Data["sentAt"].(time.Time)
		from, _ := p.Data["from"].(string)
		body, _ := p.Data["body"].(string)
		r.printMessage(domain.Message{SenderID: from, Body: body, SentAt: sentAt})
	case hooks.EventPresenceChanged:
		typing, _ := p.Data["isTyping"].(bool)
		online, _ := p.Data["isOnline"].(bool)
		if typing {
			r.printf("* %s is typing...\n", displayName(r.peer))
		} else {
			r.printf("* %s is %s\n", displayName(r.peer), onlineWord(online))
		}
	case hooks.EventChannelError:
		r.printf("! connection problem: %v (type /reconnect)\n", p.Data["error"])
	}
	return nil
}

func (r *chatRenderer) printTimeline() {
	msgs := r.messages()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.writeMessageLocked(m)
	}
}

func (r *chatRenderer) printMessage(m domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeMessageLocked(m)
}

func (r *chatRenderer) writeMessageLocked(m domain.Message) {
	name := displayName(r.peer)
	if m.SenderID == r.self.ID {
		name = "you"
	}
	ts := m.SentAt.Local().Format("15:04")
	pending := lo.Ternary(m.Optimistic(), " (sending)", "")
	fmt.Fprintf(r.out, "[%s] %s: %s%s\n", ts, name, m.Body, pending)
}

func (r *chatRenderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func displayName(u domain.UserIdentity) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

func onlineWord(online bool) string {
	return lo.Ternary(online, "online", "offline")
}
