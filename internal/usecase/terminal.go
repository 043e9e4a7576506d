package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/simonbarrel6/aakora/internal/domain"
	"github.com/simonbarrel6/aakora/internal/domain/model"
	"github.com/simonbarrel6/aakora/internal/domain/ports/adapter"
	"github.com/simonbarrel6/aakora/internal/infra/i18n"
	"github.com/simonbarrel6/aakora/internal/infra/logging"
)

// CodeSuccess is the billing API success sentinel.
const CodeSuccess = "0"

// Outcome is what one turn produced for the user.
type Outcome struct {
	Flow     model.FlowID
	Category model.OutcomeCategory
	Text     string
	// Link is a payment URL the transport may render as a button.
	Link string
	// Detail is diagnostic only (billing code, error text); never shown.
	Detail string
	// State is the user's state after the turn.
	State model.State
}

// TerminalAction runs once a flow has collected every field. A non-nil
// session starts a follow-up state; nil means the flow is over.
// The error return is reserved for broken invariants.
type TerminalAction interface {
	Execute(ctx context.Context, userID int64, fields model.Fields) (Outcome, *model.Session, error)
}

// ImageAction is a terminal action that can also consume a photo.
type ImageAction interface {
	ExecuteImage(ctx context.Context, userID int64, image []byte) (Outcome, *model.Session, error)
}

// ActionDeps are shared by every terminal action.
type ActionDeps struct {
	Billing adapter.BillingClient
	Tr      *i18n.Translator
	Log     *zerolog.Logger
	Params  Params
	Dev     bool
}

// Params are the fixed values the billing API expects in act payloads.
type Params struct {
	ClientIP   string
	PSTNAmount string
	PayMode    string
	Lang       string
}

// CheckResult is what the act payload may draw from a successful check.
type CheckResult struct {
	NCLI string
	Info map[string]any
}

// BillingCall describes one request of a check-then-act sequence.
type BillingCall struct {
	Endpoint string
	Method   adapter.Method
	Payload  func(f model.Fields, check CheckResult) adapter.Payload
}

// ActionMessages are catalog keys. Every template takes the service label first.
type ActionMessages struct {
	CheckFailed string
	Success     string
	Unknown     string
	Error       string
}

// CheckThenAct calls a check endpoint and, only when it answers code "0" with
// an INFO object, the act endpoint. The act response is classified into
// success, a known failure or an unknown failure.
type CheckThenAct struct {
	Flow     model.FlowID
	Label    string
	Required []string
	Check    BillingCall
	Act      BillingCall
	// Succeeded decides act success and may return a payment link.
	Succeeded func(resp adapter.Response) (bool, string)
	// KnownFailures maps act codes to catalog keys.
	KnownFailures map[string]string
	Messages      ActionMessages

	deps ActionDeps
}

func (a *CheckThenAct) Execute(ctx context.Context, _ int64, fields model.Fields) (Outcome, *model.Session, error) {
	if err := requireFields(fields, a.Required...); err != nil {
		return Outcome{}, nil, err
	}
	return a.run(ctx, fields), nil, nil
}

func (a *CheckThenAct) run(ctx context.Context, fields model.Fields) Outcome {
	l := logging.With(ctx, a.deps.Log)
	tr := a.deps.Tr

	checkResp, err := a.deps.Billing.Call(ctx, a.Check.Endpoint, a.Check.Payload(fields, CheckResult{}), a.Check.Method)
	if err != nil {
		l.Error().Err(err).Str("endpoint", a.Check.Endpoint).Msg("check call failed")
		return a.outcome(model.OutcomeUnknownFailure, tr.T(a.Messages.Error, a.Label, apiErrorText(err)), err.Error())
	}
	info, ok := checkResp.Info()
	if checkResp.Code() != CodeSuccess || !ok {
		l.Info().Err(businessError(a.Check.Endpoint, checkResp)).Msg("check rejected")
		return a.outcome(model.OutcomeKnownFailure, tr.T(a.Messages.CheckFailed, a.Label, messageOrRaw(checkResp)), "check:"+checkResp.Code())
	}

	check := CheckResult{NCLI: adapter.Stringify(info["ncli"]), Info: info}
	actResp, err := a.deps.Billing.Call(ctx, a.Act.Endpoint, a.Act.Payload(fields, check), a.Act.Method)
	if err != nil {
		l.Error().Err(err).Str("endpoint", a.Act.Endpoint).Msg("act call failed")
		return a.outcome(model.OutcomeUnknownFailure, tr.T(a.Messages.Error, a.Label, apiErrorText(err)), err.Error())
	}

	code := actResp.Code()
	if ok, link := a.Succeeded(actResp); ok {
		o := a.outcome(model.OutcomeSuccess, "", code)
		if link != "" {
			o.Text = tr.T(a.Messages.Success, a.Label, link)
			o.Link = link
		} else {
			o.Text = tr.T(a.Messages.Success, a.Label)
		}
		return o
	}
	if key, known := a.KnownFailures[code]; known {
		return a.outcome(model.OutcomeKnownFailure, tr.T(key, a.Label), code)
	}
	l.Warn().Err(businessError(a.Act.Endpoint, actResp)).Msg("unexpected act response")
	return a.outcome(model.OutcomeUnknownFailure, tr.T(a.Messages.Unknown, a.Label, actResp.String()), code)
}

func (a *CheckThenAct) outcome(cat model.OutcomeCategory, text, detail string) Outcome {
	return Outcome{Flow: a.Flow, Category: cat, Text: text, Detail: detail}
}

func requireFields(f model.Fields, names ...string) error {
	for _, n := range names {
		if f[n] == "" {
			return fmt.Errorf("%w: missing field %q", domain.ErrInvariant, n)
		}
	}
	return nil
}

func businessError(endpoint string, r adapter.Response) *domain.BusinessError {
	return &domain.BusinessError{Endpoint: endpoint, Code: r.Code(), Raw: r.String()}
}

func messageOrRaw(r adapter.Response) string {
	if m := r.Message(); m != "" {
		return m
	}
	return r.String()
}

// apiErrorText drops the endpoint and attempt count from err for user replies.
func apiErrorText(err error) string {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.Cause != nil {
		return apiErr.Cause.Error()
	}
	return err.Error()
}
