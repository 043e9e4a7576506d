package usecase

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/simonbarrel6/aakora/internal/domain/model"
	"github.com/simonbarrel6/aakora/internal/domain/ports/adapter"
	"github.com/simonbarrel6/aakora/internal/infra/logging"
)

const notAvailable = "N/A"

// LoginAction authenticates against the billing API and replies with the
// account summary. The password only lives for the duration of the call.
type LoginAction struct {
	deps ActionDeps
}

func NewLoginAction(deps ActionDeps) *LoginAction { return &LoginAction{deps: deps} }

func (a *LoginAction) Execute(ctx context.Context, _ int64, fields model.Fields) (Outcome, *model.Session, error) {
	if err := requireFields(fields, model.FieldND, model.FieldPassword); err != nil {
		return Outcome{}, nil, err
	}
	l := logging.With(ctx, a.deps.Log)
	tr := a.deps.Tr

	loginResp, err := a.deps.Billing.Call(ctx, "auth/login", adapter.Payload{
		"nd":       fields[model.FieldND],
		"password": fields[model.FieldPassword],
	}, adapter.MethodPost)
	if err != nil {
		l.Error().Err(err).Msg("login call failed")
		return a.outcome(model.OutcomeUnknownFailure, tr.T("login.error", apiErrorText(err)), err.Error()), nil, nil
	}

	token := loginResp.Str("meta_data", "original", "token")
	if token == "" {
		l.Info().Str("code", loginResp.Code()).Msg("login rejected")
		return a.outcome(model.OutcomeKnownFailure, tr.T("login.failed"), loginResp.Code()), nil, nil
	}
	logTokenClaims(l, token)

	account, err := a.deps.Billing.Call(ctx, "compte", nil, adapter.MethodGet, adapter.WithBearer(token))
	if err != nil {
		l.Error().Err(err).Msg("account lookup failed")
		return a.outcome(model.OutcomeUnknownFailure, tr.T("login.error", apiErrorText(err)), err.Error()), nil, nil
	}

	summary := tr.T("login.summary",
		orDefault(account.Str("nd"), notAvailable),
		orDefault(account.Str("adresse"), notAvailable),
		orDefault(account.Str("nom"), notAvailable),
		orDefault(account.Str("prenom"), notAvailable),
		orDefault(account.Str("email"), notAvailable),
		orDefault(account.Str("ncli"), notAvailable),
		orDefault(account.Str("nb"), "0"),
	)
	return a.outcome(model.OutcomeSuccess, summary, ""), nil, nil
}

func (a *LoginAction) outcome(cat model.OutcomeCategory, text, detail string) Outcome {
	return Outcome{Flow: model.FlowLogin, Category: cat, Text: text, Detail: detail}
}

// logTokenClaims records who the billing API says logged in and until when.
// The signature cannot be checked here; the claims are informational.
func logTokenClaims(l *zerolog.Logger, token string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		l.Debug().Err(err).Msg("login token is not a JWT")
		return
	}
	ev := l.Debug()
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		ev = ev.Str("sub", sub)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ev = ev.Time("token_expires_at", exp.Time)
	}
	ev.Msg("billing login token issued")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
