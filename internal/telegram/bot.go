// Package telegram is the private messaging side of the relay. It receives
// bot updates by long polling or through a webhook, hands text messages to
// the command interpreter and delivers relay output to subscriber chats.
package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	pollTimeout     = 60
	shutdownTimeout = 5 * time.Second
)

// CommandHandler interprets a private message and returns the reply text
type CommandHandler interface {
	HandleCommand(id, text string) string
}

// botAPI is the part of tgbotapi.BotAPI the adapter uses
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Options selects how updates are received
type Options struct {
	// WebhookURL switches to webhook delivery when set
	WebhookURL string
	// Listen is the address the webhook server binds to
	Listen string
	// Secret is appended to the webhook path and checked on every update.
	// A random one is generated when empty.
	Secret string
}

// Bot is the Telegram transport
type Bot struct {
	api  botAPI
	opts Options
	log  zerolog.Logger
}

// New authorizes token against the Bot API
func New(token string, opts Options, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	b := newBot(api, opts, log)
	b.log.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")
	return b, nil
}

func newBot(api botAPI, opts Options, log zerolog.Logger) *Bot {
	if opts.WebhookURL != "" && opts.Secret == "" {
		opts.Secret = uuid.NewString()
	}
	return &Bot{
		api:  api,
		opts: opts,
		log:  log.With().Str("component", "telegram").Logger(),
	}
}

// Send delivers text to the chat identified by to
func (b *Bot) Send(to string, text string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", to, err)
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}

// Run receives updates until ctx is cancelled
func (b *Bot) Run(ctx context.Context, h CommandHandler) error {
	if b.opts.WebhookURL != "" {
		return b.serveWebhook(ctx, h)
	}
	return b.poll(ctx, h)
}

func (b *Bot) poll(ctx context.Context, h CommandHandler) error {
	// a previously registered webhook blocks getUpdates
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.log.Warn().Err(err).Msg("Could not remove webhook")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)
	b.log.Info().Msg("Polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(upd, h)
		}
	}
}

func (b *Bot) serveWebhook(ctx context.Context, h CommandHandler) error {
	link, err := b.webhookURL()
	if err != nil {
		return err
	}
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("failed to register webhook: %w", err)
	}

	router, err := b.Router(h)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              b.opts.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.log.Info().Str("listen", b.opts.Listen).Msg("Serving webhook")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// webhookURL is the configured URL with the secret as last path segment
func (b *Bot) webhookURL() (string, error) {
	u, err := url.Parse(b.opts.WebhookURL)
	if err != nil {
		return "", fmt.Errorf("invalid webhook url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + b.opts.Secret
	return u.String(), nil
}

// Router returns the webhook HTTP handler. Updates are accepted on the path
// of the configured webhook URL followed by the secret; any other path is
// not found.
func (b *Bot) Router(h CommandHandler) (http.Handler, error) {
	u, err := url.Parse(b.opts.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}
	pattern := strings.TrimSuffix(u.Path, "/") + "/{secret}"
	secret := []byte(b.opts.Secret)

	router := chi.NewRouter()
	router.Post(pattern, func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(chi.URLParam(r, "secret")), secret) != 1 {
			b.log.Warn().Str("remote", r.RemoteAddr).Msg("Webhook update with wrong secret")
			http.NotFound(w, r)
			return
		}
		upd, err := b.api.HandleUpdate(r)
		if err != nil {
			b.log.Warn().Err(err).Msg("Bad webhook update")
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		b.handleUpdate(*upd, h)
		w.WriteHeader(http.StatusOK)
	})
	return router, nil
}

// handleUpdate passes text messages to h and replies in the same chat
func (b *Bot) handleUpdate(upd tgbotapi.Update, h CommandHandler) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return
	}

	id := strconv.FormatInt(msg.Chat.ID, 10)
	b.log.Debug().Str("chat", id).Str("text", msg.Text).Msg("Command received")

	reply := h.HandleCommand(id, msg.Text)
	if reply == "" {
		return
	}
	if err := b.Send(id, reply); err != nil {
		b.log.Warn().Err(err).Str("chat", id).Msg("Could not send reply")
	}
}
