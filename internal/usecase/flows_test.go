package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonbarrel6/aakora/internal/domain/model"
)

type nopAction struct{}

func (nopAction) Execute(context.Context, int64, model.Fields) (Outcome, *model.Session, error) {
	return Outcome{}, nil, nil
}

func stepFor(state model.State) Step {
	return Step{State: state, Prompt: "p", Field: "f", Validate: NonEmpty("f"), Invalid: "i"}
}

func TestDefaultRegistry_CoversEveryState(t *testing.T) {
	reg, err := DefaultRegistry(ActionDeps{Tr: newTestTranslator(t), Log: newTestLogger(), Params: testParams()})
	require.NoError(t, err)

	for _, s := range model.AllStates() {
		if s == model.StateNone {
			continue
		}
		_, _, ok := reg.Lookup(s)
		assert.True(t, ok, "no flow owns %s", s)
	}
	assert.Equal(t, []string{"4g", "adsl", "fact", "login", "scanvoucher", "voucher"}, reg.Commands())

	f, ok := reg.ByCommand("/FACT")
	require.True(t, ok)
	assert.Equal(t, model.FlowPSTN, f.ID)

	_, ok = reg.Flow(model.FlowVoucherApply)
	assert.True(t, ok)
}

func TestDefaultFlows_PromptsExistInCatalog(t *testing.T) {
	tr := newTestTranslator(t)
	for _, f := range DefaultFlows(ActionDeps{Tr: tr, Log: newTestLogger()}) {
		for _, s := range f.Steps {
			assert.True(t, tr.Has(s.Prompt), "%s: missing prompt %q", f.ID, s.Prompt)
			assert.True(t, tr.Has(s.Invalid), "%s: missing message %q", f.ID, s.Invalid)
		}
	}
}

func TestNewRegistry_RejectsBrokenFlows(t *testing.T) {
	cases := map[string][]*Flow{
		"shared state": {
			{ID: "a", Steps: []Step{stepFor(model.StatePSTNAwaitND)}, Terminal: nopAction{}},
			{ID: "b", Steps: []Step{stepFor(model.StatePSTNAwaitND)}, Terminal: nopAction{}},
		},
		"none state": {
			{ID: "a", Steps: []Step{stepFor(model.StateNone)}, Terminal: nopAction{}},
		},
		"no steps": {
			{ID: "a", Terminal: nopAction{}},
		},
		"no terminal": {
			{ID: "a", Steps: []Step{stepFor(model.StateLTEAwaitND)}},
		},
		"duplicate command": {
			{ID: "a", Command: "x", Steps: []Step{stepFor(model.StateLTEAwaitND)}, Terminal: nopAction{}},
			{ID: "b", Command: "/X", Steps: []Step{stepFor(model.StateADSLAwaitND)}, Terminal: nopAction{}},
		},
		"image without image action": {
			{ID: "a", Steps: []Step{func() Step { s := stepFor(model.StateScanAwaitCode); s.AcceptsImage = true; return s }()}, Terminal: nopAction{}},
		},
	}
	for name, flows := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(flows...)
			assert.Error(t, err)
		})
	}
}

func TestRegistry_CoversReportsMissing(t *testing.T) {
	reg, err := NewRegistry(&Flow{ID: "a", Steps: []Step{stepFor(model.StateLTEAwaitND)}, Terminal: nopAction{}})
	require.NoError(t, err)

	assert.NoError(t, reg.Covers([]model.State{model.StateNone, model.StateLTEAwaitND}))
	err = reg.Covers(model.AllStates())
	require.Error(t, err)
	assert.Contains(t, err.Error(), model.StateADSLAwaitND.String())
}

func TestNormalizeVoucherType(t *testing.T) {
	assert.Equal(t, model.VoucherADSL, NormalizeVoucherType("adsl 2000"))
	assert.Equal(t, model.VoucherADSL, NormalizeVoucherType("FTTH"))
	assert.Equal(t, model.VoucherLTE, NormalizeVoucherType("4G"))
	assert.Equal(t, model.VoucherLTE, NormalizeVoucherType(""))
}
