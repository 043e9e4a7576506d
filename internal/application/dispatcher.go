package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/simonbarrel6/aakora/internal/domain/model"
	"github.com/simonbarrel6/aakora/internal/domain/ports/adapter"
	"github.com/simonbarrel6/aakora/internal/infra/i18n"
	"github.com/simonbarrel6/aakora/internal/infra/logging"
	"github.com/simonbarrel6/aakora/internal/infra/metrics"
	"github.com/simonbarrel6/aakora/internal/usecase"
)

// Turn is one inbound chat message, already stripped of transport details.
type Turn struct {
	UserID int64
	ChatID int64
	Text   string
	// Command is the bot command without slash or @botname, lowercased.
	Command    string
	HasImage   bool
	FetchImage usecase.ImageFetcher
}

// TurnHandler is what the transport calls for every message.
type TurnHandler interface {
	Handle(ctx context.Context, t Turn) error
}

// Dispatcher routes turns to the orchestrator and sends the replies back.
// The transport keeps Telegram specifics; everything here is chat agnostic.
type Dispatcher struct {
	orch usecase.OrchestratorUseCase
	out  adapter.Messenger
	tr   *i18n.Translator
	log  *zerolog.Logger
}

var _ TurnHandler = (*Dispatcher)(nil)

func NewDispatcher(orch usecase.OrchestratorUseCase, out adapter.Messenger, tr *i18n.Translator, logger *zerolog.Logger) *Dispatcher {
	l := logger.With().Str("component", "Dispatcher").Logger()
	return &Dispatcher{orch: orch, out: out, tr: tr, log: &l}
}

// Handle processes one turn. A failure in the turn itself never escapes: the
// session is cleared and the user gets the generic error message. The returned
// error only reports a reply that could not be delivered.
func (d *Dispatcher) Handle(ctx context.Context, t Turn) (err error) {
	if t.ChatID == 0 {
		t.ChatID = t.UserID
	}
	defer func() {
		if rec := recover(); rec != nil {
			out := d.orch.Abort(ctx, t.UserID, fmt.Errorf("panic: %v", rec))
			err = d.reply(ctx, t.ChatID, out)
		}
	}()

	out, herr := d.route(ctx, t)
	if herr != nil {
		out = d.orch.Abort(ctx, t.UserID, herr)
	}
	return d.reply(ctx, t.ChatID, out)
}

func (d *Dispatcher) route(ctx context.Context, t Turn) (usecase.Outcome, error) {
	l := logging.With(ctx, d.log)

	if t.Command != "" {
		metrics.IncTelegramCommand(t.Command)
		switch t.Command {
		case "start", "help":
			if err := d.orch.Reset(ctx, t.UserID); err != nil {
				return usecase.Outcome{}, fmt.Errorf("reset: %w", err)
			}
			return usecase.Outcome{Category: model.OutcomePrompt, Text: d.tr.T("welcome")}, nil
		case "cancel":
			return d.orch.Cancel(ctx, t.UserID)
		}
		out, ok, err := d.orch.StartCommand(ctx, t.UserID, t.Command)
		if !ok && err == nil {
			l.Debug().Str("command", t.Command).Msg("unknown command ignored")
			return usecase.Outcome{Category: model.OutcomeIgnored}, nil
		}
		return out, err
	}

	if t.HasImage {
		state, err := d.orch.State(ctx, t.UserID)
		if err != nil {
			return usecase.Outcome{}, fmt.Errorf("load state: %w", err)
		}
		if state == model.StateScanAwaitCode {
			if err := d.out.SendMessage(ctx, t.ChatID, d.tr.T("scan.processing")); err != nil {
				l.Warn().Err(err).Msg("progress message not delivered")
			}
		}
		return d.orch.ScanImage(ctx, t.UserID, t.FetchImage)
	}

	if t.Text == "" {
		state, err := d.orch.State(ctx, t.UserID)
		if err != nil {
			return usecase.Outcome{}, fmt.Errorf("load state: %w", err)
		}
		if state == model.StateNone {
			return usecase.Outcome{Category: model.OutcomeIgnored}, nil
		}
		return usecase.Outcome{Category: model.OutcomeIgnored, Text: d.tr.T("text_only"), State: state}, nil
	}

	return d.orch.Advance(ctx, t.UserID, t.Text)
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, out usecase.Outcome) error {
	if out.Text == "" {
		return nil
	}
	if out.Link != "" {
		rows := [][]adapter.InlineButton{{{Text: d.tr.T("pay.button"), URL: out.Link}}}
		return d.out.SendButtons(ctx, chatID, out.Text, rows)
	}
	return d.out.SendMessage(ctx, chatID, out.Text)
}

// ParseCommand extracts the command from a message like "/fact@my_bot 123".
// ok is false when text is not a command.
func ParseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	head := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	if head == "" {
		return "", false
	}
	return strings.ToLower(head), true
}
