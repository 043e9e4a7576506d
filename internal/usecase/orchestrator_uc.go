package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/simonbarrel6/aakora/internal/domain"
	"github.com/simonbarrel6/aakora/internal/domain/model"
	"github.com/simonbarrel6/aakora/internal/domain/ports/repository"
	"github.com/simonbarrel6/aakora/internal/infra/i18n"
	"github.com/simonbarrel6/aakora/internal/infra/logging"
	"github.com/simonbarrel6/aakora/internal/infra/metrics"
)

// ImageFetcher downloads the photo attached to a turn.
type ImageFetcher func(ctx context.Context) ([]byte, error)

// OrchestratorUseCase drives sessions through the registered flows.
type OrchestratorUseCase interface {
	Start(ctx context.Context, userID int64, flow model.FlowID) (Outcome, error)
	StartCommand(ctx context.Context, userID int64, command string) (Outcome, bool, error)
	Advance(ctx context.Context, userID int64, text string) (Outcome, error)
	ScanImage(ctx context.Context, userID int64, fetch ImageFetcher) (Outcome, error)
	Cancel(ctx context.Context, userID int64) (Outcome, error)
	Reset(ctx context.Context, userID int64) error
	Abort(ctx context.Context, userID int64, cause error) Outcome
	State(ctx context.Context, userID int64) (model.State, error)
}

var _ OrchestratorUseCase = (*Orchestrator)(nil)

type Orchestrator struct {
	store    repository.SessionStore
	registry *Registry
	journal  repository.OperationJournal
	tr       *i18n.Translator
	log      *zerolog.Logger
	now      func() time.Time
}

// NewOrchestrator wires the state machine. journal may be nil.
func NewOrchestrator(store repository.SessionStore, registry *Registry, journal repository.OperationJournal, tr *i18n.Translator, logger *zerolog.Logger) *Orchestrator {
	l := logger.With().Str("component", "Orchestrator").Logger()
	return &Orchestrator{
		store:    store,
		registry: registry,
		journal:  journal,
		tr:       tr,
		log:      &l,
		now:      time.Now,
	}
}

// Start puts the user at the first step of flow, replacing any session.
func (o *Orchestrator) Start(ctx context.Context, userID int64, id model.FlowID) (Outcome, error) {
	f, ok := o.registry.Flow(id)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", domain.ErrUnknownFlow, id)
	}
	first := f.Initial()
	sess := &model.Session{UserID: userID, State: first.State, Fields: model.Fields{}}
	if err := o.store.Put(ctx, userID, sess); err != nil {
		return Outcome{}, fmt.Errorf("start %s: %w", id, err)
	}
	metrics.IncFlowStarted(string(id))
	logging.With(ctx, o.log).Debug().Str("flow", string(id)).Str("state", first.State.String()).Msg("flow started")
	return Outcome{Flow: id, Category: model.OutcomePrompt, Text: o.tr.T(first.Prompt), State: first.State}, nil
}

// StartCommand starts the flow bound to command. ok is false for unknown commands.
func (o *Orchestrator) StartCommand(ctx context.Context, userID int64, command string) (Outcome, bool, error) {
	f, ok := o.registry.ByCommand(command)
	if !ok {
		return Outcome{}, false, nil
	}
	out, err := o.Start(ctx, userID, f.ID)
	return out, true, err
}

// Advance feeds one text answer to the user's current step.
func (o *Orchestrator) Advance(ctx context.Context, userID int64, text string) (Outcome, error) {
	defer logging.TraceDuration(o.log, "Orchestrator.Advance")()

	sess, err := o.store.Get(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load session: %w", err)
	}
	if !sess.Active() {
		return Outcome{Category: model.OutcomeIgnored}, nil
	}

	f, idx, ok := o.registry.Lookup(sess.State)
	if !ok {
		return o.Abort(ctx, userID, fmt.Errorf("%w: no flow owns %s", domain.ErrInvariant, sess.State)), nil
	}
	ctx = logging.WithFlow(ctx, string(f.ID))
	step := f.Steps[idx]

	value, err := step.Validate(text)
	if err != nil {
		if !domain.IsValidation(err) {
			return Outcome{}, err
		}
		metrics.IncFlowOutcome(string(f.ID), string(model.OutcomeInvalid))
		logging.With(ctx, o.log).Debug().Err(err).Str("state", sess.State.String()).Msg("answer rejected")
		return Outcome{Flow: f.ID, Category: model.OutcomeInvalid, Text: o.tr.T(step.Invalid), State: sess.State}, nil
	}

	if idx < len(f.Steps)-1 {
		return o.advanceStep(ctx, userID, f, f.Steps[idx+1], step.Field, value)
	}

	// The last answer is handed to the action without being stored.
	fields := sess.Fields.Clone()
	fields[step.Field] = value
	return o.finish(ctx, userID, f, func(ctx context.Context) (Outcome, *model.Session, error) {
		return f.Terminal.Execute(ctx, userID, fields)
	}, fields[model.FieldND])
}

func (o *Orchestrator) advanceStep(ctx context.Context, userID int64, f *Flow, next Step, field, value string) (Outcome, error) {
	merged, err := o.store.MergeFields(ctx, userID, model.Fields{field: value})
	if err != nil {
		return Outcome{}, fmt.Errorf("merge %s: %w", field, err)
	}
	merged.State = next.State
	if err := o.store.Put(ctx, userID, merged); err != nil {
		return Outcome{}, fmt.Errorf("advance to %s: %w", next.State, err)
	}
	metrics.IncFlowOutcome(string(f.ID), string(model.OutcomePrompt))
	return Outcome{Flow: f.ID, Category: model.OutcomePrompt, Text: o.tr.T(next.Prompt), State: next.State}, nil
}

// ScanImage answers an image accepting step with a photo. Any other state gets
// the guidance message and stays untouched.
func (o *Orchestrator) ScanImage(ctx context.Context, userID int64, fetch ImageFetcher) (Outcome, error) {
	sess, err := o.store.Get(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load session: %w", err)
	}
	f, idx, ok := o.registry.Lookup(sess.State)
	if !sess.Active() || !ok || !f.Steps[idx].AcceptsImage {
		return Outcome{Category: model.OutcomeIgnored, Text: o.tr.T("scan.use_command"), State: sess.State}, nil
	}
	ctx = logging.WithFlow(ctx, string(f.ID))
	action := f.Terminal.(ImageAction)

	return o.finish(ctx, userID, f, func(ctx context.Context) (Outcome, *model.Session, error) {
		img, err := fetch(ctx)
		if err != nil {
			logging.With(ctx, o.log).Error().Err(err).Msg("image download failed")
			return Outcome{Flow: f.ID, Category: model.OutcomeUnknownFailure, Text: o.tr.T("scan.image_error"), Detail: err.Error()}, nil, nil
		}
		return action.ExecuteImage(ctx, userID, img)
	}, "")
}

// finish runs a terminal action and then either clears the session or moves
// it to the follow-up state the action asked for.
func (o *Orchestrator) finish(ctx context.Context, userID int64, f *Flow, run func(context.Context) (Outcome, *model.Session, error), nd string) (Outcome, error) {
	opID := ulid.Make().String()
	ctx = logging.WithOperationID(ctx, opID)
	l := logging.With(ctx, o.log)
	started := o.now()

	out, next, err := run(ctx)
	if err != nil {
		return o.Abort(ctx, userID, err), nil
	}
	if out.Flow == "" {
		out.Flow = f.ID
	}

	if next != nil {
		if _, _, owned := o.registry.Lookup(next.State); !owned {
			return o.Abort(ctx, userID, fmt.Errorf("%w: follow-up state %s has no flow", domain.ErrInvariant, next.State)), nil
		}
		if err := o.store.Put(ctx, userID, next); err != nil {
			return Outcome{}, fmt.Errorf("follow-up %s: %w", next.State, err)
		}
		out.State = next.State
		if nf, _, _ := o.registry.Lookup(next.State); nf != nil && nf.ID != f.ID {
			metrics.IncFlowStarted(string(nf.ID))
		}
	} else {
		if err := o.store.Clear(ctx, userID); err != nil {
			return Outcome{}, fmt.Errorf("clear session: %w", err)
		}
		out.State = model.StateNone
	}

	metrics.IncFlowOutcome(string(out.Flow), string(out.Category))
	ev := l.Info()
	if !out.Category.Terminal() {
		ev = l.Debug()
	}
	ev.
		Str("flow", string(out.Flow)).
		Str("outcome", string(out.Category)).
		Str("detail", out.Detail).
		Dur("duration", o.now().Sub(started)).
		Msg("terminal action finished")

	o.record(ctx, &model.Operation{
		ID:        opID,
		UserID:    userID,
		Flow:      out.Flow,
		ND:        nd,
		Outcome:   out.Category,
		Detail:    out.Detail,
		CreatedAt: started.UTC(),
	})
	return out, nil
}

func (o *Orchestrator) record(ctx context.Context, op *model.Operation) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(ctx, op); err != nil {
		logging.With(ctx, o.log).Warn().Err(err).Msg("journal write failed")
	}
}

// Cancel clears an active session.
func (o *Orchestrator) Cancel(ctx context.Context, userID int64) (Outcome, error) {
	sess, err := o.store.Get(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load session: %w", err)
	}
	if !sess.Active() {
		return Outcome{Category: model.OutcomeIgnored, Text: o.tr.T("cancel.nothing")}, nil
	}
	if err := o.store.Clear(ctx, userID); err != nil {
		return Outcome{}, fmt.Errorf("clear session: %w", err)
	}
	flow := model.FlowID("")
	if f, _, ok := o.registry.Lookup(sess.State); ok {
		flow = f.ID
		metrics.IncFlowOutcome(string(f.ID), string(model.OutcomeCancelled))
	}
	return Outcome{Flow: flow, Category: model.OutcomeCancelled, Text: o.tr.T("cancel.done")}, nil
}

// Reset silently drops whatever the user was doing.
func (o *Orchestrator) Reset(ctx context.Context, userID int64) error {
	return o.store.Clear(ctx, userID)
}

// Abort is the last resort for a turn that failed unexpectedly: the session is
// cleared and the user told to start over.
func (o *Orchestrator) Abort(ctx context.Context, userID int64, cause error) Outcome {
	l := logging.With(ctx, o.log)
	l.Error().Err(cause).Msg("turn aborted")
	if err := o.store.Clear(ctx, userID); err != nil {
		l.Error().Err(err).Msg("clear after abort failed")
	}
	metrics.IncFlowOutcome("unknown", string(model.OutcomeUnknownFailure))
	return Outcome{
		Category: model.OutcomeUnknownFailure,
		Text:     o.tr.T("error.unexpected", cause.Error()),
		Detail:   cause.Error(),
		State:    model.StateNone,
	}
}

func (o *Orchestrator) State(ctx context.Context, userID int64) (model.State, error) {
	sess, err := o.store.Get(ctx, userID)
	if err != nil {
		return model.StateNone, err
	}
	return sess.State, nil
}
