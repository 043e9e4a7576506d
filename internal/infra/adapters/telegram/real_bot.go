package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/simonbarrel6/aakora/internal/application"
	"github.com/simonbarrel6/aakora/internal/config"
	"github.com/simonbarrel6/aakora/internal/domain/ports/adapter"
	"github.com/simonbarrel6/aakora/internal/infra/i18n"
	"github.com/simonbarrel6/aakora/internal/infra/logging"
	"github.com/simonbarrel6/aakora/internal/infra/metrics"
	red "github.com/simonbarrel6/aakora/internal/infra/redis"
	"github.com/simonbarrel6/aakora/internal/infra/worker"
)

// maxPhotoBytes caps voucher photo downloads.
const maxPhotoBytes = 20 << 20

// submitter is the part of worker.KeyedPool the poller needs.
type submitter interface {
	Submit(ctx context.Context, key int64, task worker.Task) error
}

// Limiter is the per-user turn budget.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ adapter.Messenger = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter long-polls Telegram and feeds messages to a TurnHandler.
// Turns of one chat are serialized on a keyed worker.
type RealTelegramBotAdapter struct {
	bot     *tgbotapi.BotAPI
	cfg     *config.BotConfig
	tr      *i18n.Translator
	limiter Limiter
	httpc   *http.Client
	log     *zerolog.Logger
}

type Option func(*RealTelegramBotAdapter)

// WithLimiter enables per-user rate limiting when cfg.RateLimit is positive.
func WithLimiter(l Limiter) Option {
	return func(r *RealTelegramBotAdapter) { r.limiter = l }
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, tr *i18n.Translator, logger *zerolog.Logger, opts ...Option) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	l := logger.With().Str("component", "TelegramBot").Logger()
	r := &RealTelegramBotAdapter{
		bot:   bot,
		cfg:   cfg,
		tr:    tr,
		httpc: &http.Client{Timeout: 30 * time.Second},
		log:   &l,
	}
	for _, o := range opts {
		o(r)
	}
	l.Info().Str("username", bot.Self.UserName).Msg("telegram bot authorized")
	return r, nil
}

// StartPolling blocks until ctx is cancelled. Queued turns are drained before it returns.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context, h application.TurnHandler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	pool := worker.NewKeyedPool(r.cfg.Workers, r.cfg.QueueSize, r.log)
	pool.Start(ctx)
	defer pool.Stop()

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			r.log.Info().Msg("polling stopped")
			return nil
		case up, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			if err := r.enqueue(ctx, pool, h, up.Message); err != nil {
				metrics.IncUpdateDropped()
				r.log.Warn().Err(err).Int("update_id", up.UpdateID).Msg("update dropped")
			}
		}
	}
}

// enqueue keys the turn by the sender, the same id sessions are stored under,
// so one user's turns stay ordered even when they arrive from several chats.
func (r *RealTelegramBotAdapter) enqueue(ctx context.Context, pool submitter, h application.TurnHandler, msg *tgbotapi.Message) error {
	if msg == nil || msg.Chat == nil {
		return nil
	}
	turn := turnFromMessage(msg)
	return pool.Submit(ctx, turn.UserID, func(ctx context.Context) error {
		return r.handleTurn(ctx, h, turn, msg.Photo)
	})
}

func (r *RealTelegramBotAdapter) handleTurn(ctx context.Context, h application.TurnHandler, turn application.Turn, photos []tgbotapi.PhotoSize) error {
	ctx = logging.WithTraceID(ctx, uuid.NewString())
	ctx = logging.WithTgID(ctx, turn.UserID)

	if r.limiter != nil && r.cfg.RateLimit > 0 {
		allowed, err := r.limiter.Allow(ctx, red.UserTurnKey(turn.UserID), r.cfg.RateLimit, r.cfg.RateWindow)
		if err != nil {
			logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !allowed {
			metrics.IncRateLimitTriggered()
			return r.SendMessage(ctx, turn.ChatID, r.tr.T("rate_limited"))
		}
	}

	if turn.HasImage {
		// Telegram lists photo sizes smallest first.
		fileID := photos[len(photos)-1].FileID
		turn.FetchImage = func(ctx context.Context) ([]byte, error) { return r.download(ctx, fileID) }
	}
	return h.Handle(ctx, turn)
}

// turnFromMessage keeps what the dispatcher needs from a Telegram message.
func turnFromMessage(msg *tgbotapi.Message) application.Turn {
	t := application.Turn{ChatID: msg.Chat.ID, UserID: msg.Chat.ID, Text: msg.Text}
	if msg.From != nil {
		t.UserID = msg.From.ID
	}
	if cmd, ok := application.ParseCommand(msg.Text); ok {
		t.Command = cmd
	}
	t.HasImage = len(msg.Photo) > 0
	return t
}

func (r *RealTelegramBotAdapter) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve photo: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download photo: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if kb, ok := inlineKeyboard(rows); ok {
		msg.ReplyMarkup = kb
	}
	_, err := r.bot.Send(msg)
	return err
}

// inlineKeyboard converts buttons: URL opens a link, Data is callback data,
// and a bare button falls back to its label as data.
func inlineKeyboard(rows [][]adapter.InlineButton) (tgbotapi.InlineKeyboardMarkup, bool) {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, out)
	}
	if len(kbRows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...), true
}
