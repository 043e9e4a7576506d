package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/simonbarrel6/aakora/internal/domain"
	"github.com/simonbarrel6/aakora/internal/domain/model"
	"github.com/simonbarrel6/aakora/internal/domain/ports/adapter"
	"github.com/simonbarrel6/aakora/internal/infra/logging"
)

var voucherMessages = ActionMessages{
	CheckFailed: "voucher.check_failed",
	Success:     "voucher.success",
	Unknown:     "voucher.result",
	Error:       "voucher.error",
}

// NewRedeemAction is check-then-redeem for one voucher family.
func NewRedeemAction(deps ActionDeps, flow model.FlowID, voucherType string) *CheckThenAct {
	a := &CheckThenAct{
		Flow:     flow,
		Required: []string{model.FieldND, model.FieldVoucherCode},
		Succeeded: func(r adapter.Response) (bool, string) {
			return r.Code() == CodeSuccess, ""
		},
		KnownFailures: map[string]string{KnownVoucherFailure: "voucher.rejected"},
		Messages:      voucherMessages,
		deps:          deps,
	}
	ip := deps.Params.ClientIP
	if voucherType == model.VoucherADSL {
		a.Label = LabelVoucherADSL
		a.Check = checkCall("epay/checkNdAdsl", "Paiement")
		a.Act = BillingCall{
			Endpoint: "epay/voucherAdsl",
			Method:   adapter.MethodPost,
			Payload: func(f model.Fields, c CheckResult) adapter.Payload {
				return adapter.Payload{
					"nd":      f[model.FieldND],
					"ncli":    c.NCLI,
					"type":    defaultADSLType,
					"voucher": f[model.FieldVoucherCode],
					"ip":      ip,
				}
			},
		}
		return a
	}
	a.Label = LabelVoucherLTE
	a.Check = checkCall("epay/checkNdLte", "")
	a.Act = BillingCall{
		Endpoint: "epay/voucherLte",
		Method:   adapter.MethodPost,
		Payload: func(f model.Fields, _ CheckResult) adapter.Payload {
			return adapter.Payload{
				"nd":      f[model.FieldND],
				"voucher": f[model.FieldVoucherCode],
				"ip":      ip,
			}
		},
	}
	return a
}

// ApplyVoucherAction redeems a scanned voucher, dispatching on its type.
type ApplyVoucherAction struct {
	adsl *CheckThenAct
	lte  *CheckThenAct
}

func NewApplyVoucherAction(deps ActionDeps) *ApplyVoucherAction {
	return &ApplyVoucherAction{
		adsl: NewRedeemAction(deps, model.FlowVoucherApply, model.VoucherADSL),
		lte:  NewRedeemAction(deps, model.FlowVoucherApply, model.VoucherLTE),
	}
}

func (a *ApplyVoucherAction) Execute(ctx context.Context, userID int64, fields model.Fields) (Outcome, *model.Session, error) {
	if err := requireFields(fields, model.FieldVoucherType); err != nil {
		return Outcome{}, nil, err
	}
	switch fields[model.FieldVoucherType] {
	case model.VoucherADSL:
		return a.adsl.Execute(ctx, userID, fields)
	case model.VoucherLTE:
		return a.lte.Execute(ctx, userID, fields)
	default:
		return Outcome{}, nil, fmt.Errorf("%w: voucher type %q", domain.ErrInvariant, fields[model.FieldVoucherType])
	}
}

// NormalizeVoucherType folds the scan endpoint's type into ADSL (ADSL or FTTH) or 4G.
func NormalizeVoucherType(raw string) string {
	u := strings.ToUpper(raw)
	if strings.Contains(u, "ADSL") || strings.Contains(u, "FTTH") {
		return model.VoucherADSL
	}
	return model.VoucherLTE
}

// ScanAction identifies a voucher from a typed code or a photo. On success the
// user moves to the shared apply-voucher step.
type ScanAction struct {
	deps ActionDeps
}

func NewScanAction(deps ActionDeps) *ScanAction { return &ScanAction{deps: deps} }

const scanEndpoint = "epay/voucherScan"

func (a *ScanAction) Execute(ctx context.Context, userID int64, fields model.Fields) (Outcome, *model.Session, error) {
	if err := requireFields(fields, model.FieldVoucherCode); err != nil {
		return Outcome{}, nil, err
	}
	l := logging.With(ctx, a.deps.Log)
	tr := a.deps.Tr
	code := fields[model.FieldVoucherCode]

	resp, err := a.deps.Billing.Call(ctx, scanEndpoint, adapter.Payload{"voucher": code}, adapter.MethodPost)
	if err != nil {
		l.Error().Err(err).Msg("voucher scan failed")
		return a.outcome(model.OutcomeUnknownFailure, tr.T("scan.error", apiErrorText(err)), err.Error()), nil, nil
	}
	if resp.Code() != CodeSuccess {
		return a.outcome(model.OutcomeKnownFailure, tr.T("scan.invalid_code"), resp.Code()), nil, nil
	}

	vtype := NormalizeVoucherType(resp.Str("type"))
	next := a.follow(userID, code, vtype)
	return a.outcome(model.OutcomeContinued, tr.T("apply.prompt"), vtype), next, nil
}

func (a *ScanAction) ExecuteImage(ctx context.Context, userID int64, image []byte) (Outcome, *model.Session, error) {
	l := logging.With(ctx, a.deps.Log)
	tr := a.deps.Tr
	if len(image) == 0 {
		return a.outcome(model.OutcomeUnknownFailure, tr.T("scan.image_error"), "empty image"), nil, nil
	}

	payload := adapter.Payload{"image": base64.StdEncoding.EncodeToString(image), "format": "base64"}
	resp, err := a.deps.Billing.Call(ctx, scanEndpoint, payload, adapter.MethodPost)
	if err != nil {
		l.Error().Err(err).Msg("voucher image scan failed")
		return a.outcome(model.OutcomeUnknownFailure, tr.T("scan.image_error"), err.Error()), nil, nil
	}
	code := resp.Str("voucher")
	if resp.Code() != CodeSuccess || code == "" {
		l.Info().Str("code", resp.Code()).Msg("voucher not readable from image")
		return a.outcome(model.OutcomeKnownFailure, tr.T("scan.unreadable"), resp.Code()), nil, nil
	}

	vtype := NormalizeVoucherType(resp.Str("type"))
	l.Info().Str("voucher", logging.Redact(code, a.deps.Dev)).Str("type", vtype).Msg("voucher scanned")
	key := "scan.found_lte"
	if vtype == model.VoucherADSL {
		key = "scan.found_adsl"
	}
	return a.outcome(model.OutcomeContinued, tr.T(key, code), vtype), a.follow(userID, code, vtype), nil
}

func (a *ScanAction) follow(userID int64, code, vtype string) *model.Session {
	return &model.Session{
		UserID: userID,
		State:  model.StateApplyAwaitServiceNumber,
		Fields: model.Fields{model.FieldVoucherCode: code, model.FieldVoucherType: vtype},
	}
}

func (a *ScanAction) outcome(cat model.OutcomeCategory, text, detail string) Outcome {
	return Outcome{Flow: model.FlowVoucherScan, Category: cat, Text: text, Detail: detail}
}
