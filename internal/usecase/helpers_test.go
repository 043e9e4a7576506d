package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/simonbarrel6/aakora/internal/domain"
	"github.com/simonbarrel6/aakora/internal/domain/model"
	"github.com/simonbarrel6/aakora/internal/domain/ports/adapter"
	"github.com/simonbarrel6/aakora/internal/domain/ports/repository"
	"github.com/simonbarrel6/aakora/internal/infra/i18n"
	"github.com/simonbarrel6/aakora/internal/infra/memory"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tr, err := i18n.Default("en")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return tr
}

// billingCall is one request seen by fakeBilling.
type billingCall struct {
	Endpoint string
	Payload  adapter.Payload
	Method   adapter.Method
	Bearer   string
}

type fakeReply struct {
	body string
	err  error
}

// fakeBilling replays scripted replies per endpoint and records every call.
type fakeBilling struct {
	t       *testing.T
	mu      sync.Mutex
	calls   []billingCall
	replies map[string][]fakeReply
}

func newFakeBilling(t *testing.T) *fakeBilling {
	return &fakeBilling{t: t, replies: map[string][]fakeReply{}}
}

func (f *fakeBilling) on(endpoint, body string) *fakeBilling {
	f.replies[endpoint] = append(f.replies[endpoint], fakeReply{body: body})
	return f
}

func (f *fakeBilling) fail(endpoint string, cause error) *fakeBilling {
	f.replies[endpoint] = append(f.replies[endpoint], fakeReply{
		err: &domain.APIError{Endpoint: endpoint, Attempts: 3, Cause: cause},
	})
	return f
}

func (f *fakeBilling) Call(_ context.Context, endpoint string, payload adapter.Payload, method adapter.Method, opts ...adapter.CallOption) (adapter.Response, error) {
	var o adapter.CallOptions
	for _, fn := range opts {
		fn(&o)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, billingCall{Endpoint: endpoint, Payload: payload, Method: method, Bearer: o.Bearer})

	queue := f.replies[endpoint]
	if len(queue) == 0 {
		f.t.Errorf("unexpected billing call to %s", endpoint)
		return adapter.Response{}, fmt.Errorf("no reply scripted for %s", endpoint)
	}
	r := queue[0]
	f.replies[endpoint] = queue[1:]
	if r.err != nil {
		return adapter.Response{}, r.err
	}
	return decodeResponse(f.t, r.body), nil
}

func (f *fakeBilling) endpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Endpoint)
	}
	return out
}

func (f *fakeBilling) call(i int) billingCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func decodeResponse(t *testing.T, body string) adapter.Response {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		t.Fatalf("bad scripted body %q: %v", body, err)
	}
	var raw bytes.Buffer
	_ = json.Compact(&raw, []byte(body))
	return adapter.Response{Body: m, Raw: raw.Bytes()}
}

// fakeJournal keeps recorded operations in memory.
type fakeJournal struct {
	mu  sync.Mutex
	ops []model.Operation
}

var _ repository.OperationJournal = (*fakeJournal)(nil)

func (j *fakeJournal) Record(_ context.Context, op *model.Operation) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = append(j.ops, *op)
	return nil
}

type harness struct {
	orch    *Orchestrator
	store   *memory.SessionStore
	billing *fakeBilling
	journal *fakeJournal
	tr      *i18n.Translator
}

func testParams() Params {
	return Params{ClientIP: "0.0.0.0", PSTNAmount: "595.0", PayMode: "Edahabia", Lang: "fr"}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   memory.NewSessionStore(),
		billing: newFakeBilling(t),
		journal: &fakeJournal{},
		tr:      newTestTranslator(t),
	}
	deps := ActionDeps{Billing: h.billing, Tr: h.tr, Log: newTestLogger(), Params: testParams()}
	reg, err := DefaultRegistry(deps)
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	h.orch = NewOrchestrator(h.store, reg, h.journal, h.tr, newTestLogger())
	return h
}

func (h *harness) session(t *testing.T, userID int64) *model.Session {
	t.Helper()
	s, err := h.store.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	return s
}
