package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/simonbarrel6/aakora/internal/domain/model"
	"github.com/simonbarrel6/aakora/internal/domain/ports/adapter"
)

// Step is one question of a flow.
type Step struct {
	State    model.State
	Prompt   string // catalog key sent when the step is entered
	Field    string
	Validate Validator
	Invalid  string // catalog key sent on a rejected answer
	// AcceptsImage lets a photo answer the step; the terminal action must implement ImageAction.
	AcceptsImage bool
}

// Flow is a strictly linear dialogue. Its terminal action runs once the last
// step's answer is valid.
type Flow struct {
	ID       model.FlowID
	Command  string // empty for flows only started programmatically
	Steps    []Step
	Terminal TerminalAction
}

func (f *Flow) Initial() Step { return f.Steps[0] }

type stepRef struct {
	flow  *Flow
	index int
}

// Registry indexes flows by id, command and state. It is immutable once built.
type Registry struct {
	flows   map[model.FlowID]*Flow
	byCmd   map[string]*Flow
	byState map[model.State]stepRef
}

// NewRegistry validates the flows: at least one step each, every state owned
// by exactly one step, no StateNone, unique ids and commands.
func NewRegistry(flows ...*Flow) (*Registry, error) {
	r := &Registry{
		flows:   make(map[model.FlowID]*Flow, len(flows)),
		byCmd:   make(map[string]*Flow, len(flows)),
		byState: make(map[model.State]stepRef),
	}
	for _, f := range flows {
		if f == nil || f.ID == "" {
			return nil, fmt.Errorf("flow without id")
		}
		if _, dup := r.flows[f.ID]; dup {
			return nil, fmt.Errorf("duplicate flow %q", f.ID)
		}
		if len(f.Steps) == 0 {
			return nil, fmt.Errorf("flow %q has no steps", f.ID)
		}
		if f.Terminal == nil {
			return nil, fmt.Errorf("flow %q has no terminal action", f.ID)
		}
		for i, s := range f.Steps {
			if s.State == model.StateNone || !s.State.Valid() {
				return nil, fmt.Errorf("flow %q step %d: invalid state %s", f.ID, i, s.State)
			}
			if prev, taken := r.byState[s.State]; taken {
				return nil, fmt.Errorf("state %s owned by both %q and %q", s.State, prev.flow.ID, f.ID)
			}
			if s.Field == "" || s.Validate == nil {
				return nil, fmt.Errorf("flow %q step %s: field and validator are required", f.ID, s.State)
			}
			if s.AcceptsImage {
				if _, ok := f.Terminal.(ImageAction); !ok || i != len(f.Steps)-1 {
					return nil, fmt.Errorf("flow %q step %s: image answers need a final step with an image action", f.ID, s.State)
				}
			}
			r.byState[s.State] = stepRef{flow: f, index: i}
		}
		if f.Command != "" {
			cmd := normalizeCommand(f.Command)
			if _, dup := r.byCmd[cmd]; dup {
				return nil, fmt.Errorf("duplicate command %q", cmd)
			}
			r.byCmd[cmd] = f
		}
		r.flows[f.ID] = f
	}
	return r, nil
}

// Covers fails when a state in states has no owning flow.
func (r *Registry) Covers(states []model.State) error {
	var missing []string
	for _, s := range states {
		if s == model.StateNone {
			continue
		}
		if _, ok := r.byState[s]; !ok {
			missing = append(missing, s.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("states without a flow: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (r *Registry) Flow(id model.FlowID) (*Flow, bool) {
	f, ok := r.flows[id]
	return f, ok
}

func (r *Registry) ByCommand(cmd string) (*Flow, bool) {
	f, ok := r.byCmd[normalizeCommand(cmd)]
	return f, ok
}

// Lookup returns the flow owning state and the step index inside it.
func (r *Registry) Lookup(state model.State) (*Flow, int, bool) {
	ref, ok := r.byState[state]
	if !ok {
		return nil, 0, false
	}
	return ref.flow, ref.index, true
}

// Commands lists the registered commands, sorted.
func (r *Registry) Commands() []string {
	out := make([]string, 0, len(r.byCmd))
	for c := range r.byCmd {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func normalizeCommand(c string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c), "/"))
}

// Service labels used in user messages.
const (
	LabelPSTN        = "PSTN"
	LabelLTE         = "4G LTE"
	LabelADSL        = "ADSL"
	LabelVoucherADSL = "ADSL/FTTH"
	LabelVoucherLTE  = "4G LTE"
)

// KnownVoucherFailure is the redemption code for a rejected voucher.
const KnownVoucherFailure = "118100548"

const defaultADSLType = "FTTH"

// DefaultFlows builds the seven billing dialogues.
func DefaultFlows(deps ActionDeps) []*Flow {
	ndStep := func(state model.State, prompt, invalid string) Step {
		return Step{State: state, Prompt: prompt, Field: model.FieldND, Validate: NumericND(model.FieldND), Invalid: invalid}
	}
	amountStep := func(state model.State) Step {
		return Step{State: state, Prompt: "amount.prompt", Field: model.FieldAmount, Validate: Amount(model.FieldAmount), Invalid: "amount.invalid"}
	}

	return []*Flow{
		{
			ID:      model.FlowLogin,
			Command: "login",
			Steps: []Step{
				ndStep(model.StateLoginAwaitND, "login.prompt_nd", "login.invalid_nd"),
				{State: model.StateLoginAwaitPassword, Prompt: "login.prompt_password", Field: model.FieldPassword, Validate: NonEmpty(model.FieldPassword), Invalid: "login.invalid_password"},
			},
			Terminal: NewLoginAction(deps),
		},
		{
			ID:       model.FlowPSTN,
			Command:  "fact",
			Steps:    []Step{ndStep(model.StatePSTNAwaitND, "pstn.prompt_nd", "pstn.invalid_nd")},
			Terminal: NewPaymentAction(deps, paymentPSTN),
		},
		{
			ID:      model.FlowLTE,
			Command: "4g",
			Steps: []Step{
				ndStep(model.StateLTEAwaitND, "lte.prompt_nd", "lte.invalid_nd"),
				amountStep(model.StateLTEAwaitAmount),
			},
			Terminal: NewPaymentAction(deps, paymentLTE),
		},
		{
			ID:      model.FlowADSL,
			Command: "adsl",
			Steps: []Step{
				ndStep(model.StateADSLAwaitND, "adsl.prompt_nd", "adsl.invalid_nd"),
				amountStep(model.StateADSLAwaitAmount),
			},
			Terminal: NewPaymentAction(deps, paymentADSL),
		},
		{
			ID:      model.FlowVoucher,
			Command: "voucher",
			Steps: []Step{
				ndStep(model.StateVoucherAwaitND, "voucher.prompt_nd", "voucher.invalid_nd"),
				{State: model.StateVoucherAwaitCode, Prompt: "voucher.prompt_code", Field: model.FieldVoucherCode, Validate: NonEmpty(model.FieldVoucherCode), Invalid: "voucher.invalid_code"},
			},
			Terminal: NewRedeemAction(deps, model.FlowVoucher, model.VoucherADSL),
		},
		{
			ID:      model.FlowVoucherScan,
			Command: "scanvoucher",
			Steps: []Step{
				{State: model.StateScanAwaitCode, Prompt: "scan.prompt", Field: model.FieldVoucherCode, Validate: NonEmpty(model.FieldVoucherCode), Invalid: "scan.invalid_text", AcceptsImage: true},
			},
			Terminal: NewScanAction(deps),
		},
		{
			ID: model.FlowVoucherApply,
			Steps: []Step{
				ndStep(model.StateApplyAwaitServiceNumber, "apply.prompt", "apply.invalid_nd"),
			},
			Terminal: NewApplyVoucherAction(deps),
		},
	}
}

// DefaultRegistry builds the registry and checks that every declared state is reachable.
func DefaultRegistry(deps ActionDeps) (*Registry, error) {
	r, err := NewRegistry(DefaultFlows(deps)...)
	if err != nil {
		return nil, err
	}
	if err := r.Covers(model.AllStates()); err != nil {
		return nil, err
	}
	return r, nil
}

type paymentKind int

const (
	paymentPSTN paymentKind = iota
	paymentLTE
	paymentADSL
)

// NewPaymentAction is check-then-pay for one service.
func NewPaymentAction(deps ActionDeps, kind paymentKind) *CheckThenAct {
	p := deps.Params
	a := &CheckThenAct{
		Required: []string{model.FieldND},
		Succeeded: func(r adapter.Response) (bool, string) {
			link := r.Message()
			return r.Code() == CodeSuccess && link != "", link
		},
		Messages: ActionMessages{
			CheckFailed: "pay.check_failed",
			Success:     "pay.link",
			Unknown:     "pay.failed",
			Error:       "pay.error",
		},
		deps: deps,
	}

	pay := func(endpoint string, serviceType func(CheckResult) string, typeClient any, amount func(model.Fields) string) BillingCall {
		return BillingCall{
			Endpoint: endpoint,
			Method:   adapter.MethodPost,
			Payload: func(f model.Fields, c CheckResult) adapter.Payload {
				return adapter.Payload{
					"nd":          f[model.FieldND],
					"ncli":        c.NCLI,
					"type":        serviceType(c),
					"montant":     amount(f),
					"ip":          p.ClientIP,
					"mode":        p.PayMode,
					"lang":        p.Lang,
					"type_client": typeClient,
				}
			},
		}
	}
	fromField := func(f model.Fields) string { return f[model.FieldAmount] }

	switch kind {
	case paymentPSTN:
		a.Flow, a.Label = model.FlowPSTN, LabelPSTN
		a.Check = checkCall("epay/checkNdFact", "Dus")
		a.Act = pay("epay/paiementFact", fixedType(LabelPSTN), nil, func(model.Fields) string { return p.PSTNAmount })
	case paymentLTE:
		a.Flow, a.Label = model.FlowLTE, LabelLTE
		a.Required = append(a.Required, model.FieldAmount)
		a.Check = checkCall("epay/checkNdLte", "")
		a.Act = pay("epay/paiementLte", fixedType(LabelLTE), nil, fromField)
	case paymentADSL:
		a.Flow, a.Label = model.FlowADSL, LabelADSL
		a.Required = append(a.Required, model.FieldAmount)
		a.Check = checkCall("epay/checkNdAdsl", "Paiement")
		a.Act = pay("epay/paiementAdsl", adslType, "Residential", fromField)
	}
	return a
}

// checkCall posts {nd} plus an optional service qualifier.
func checkCall(endpoint, service string) BillingCall {
	return BillingCall{
		Endpoint: endpoint,
		Method:   adapter.MethodPost,
		Payload: func(f model.Fields, _ CheckResult) adapter.Payload {
			p := adapter.Payload{"nd": f[model.FieldND]}
			if service != "" {
				p["service"] = service
			}
			return p
		},
	}
}

func fixedType(t string) func(CheckResult) string {
	return func(CheckResult) string { return t }
}

func adslType(c CheckResult) string {
	if t := adapter.Stringify(c.Info["type1"]); t != "" {
		return t
	}
	return defaultADSLType
}
