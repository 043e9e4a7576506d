//go:build !integration

package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslator(t *testing.T) {
	translator, err := newTranslatorFromBytes([]byte("greeting: Salut\nwelcome_user: Salut %s"))
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("should translate a simple key", func(t *testing.T) {
		if got := translator.T("greeting"); got != "Salut" {
			t.Errorf("wanted 'Salut', got '%s'", got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		if got := translator.T("nonexistent_key"); got != "nonexistent_key" {
			t.Errorf("wanted 'nonexistent_key', got '%s'", got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		if got := translator.T("welcome_user", "Amel"); got != "Salut Amel" {
			t.Errorf("wanted 'Salut Amel', got '%s'", got)
		}
	})
}

func TestNewTranslator_FromFS(t *testing.T) {
	fsys := fstest.MapFS{"locales/xx.yaml": {Data: []byte("k: v")}}
	tr, err := NewTranslator(fsys, "xx")
	require.NoError(t, err)
	assert.Equal(t, "v", tr.T("k"))

	_, err = NewTranslator(fsys, "yy")
	assert.Error(t, err)
}

func TestEmbeddedCatalog(t *testing.T) {
	tr, err := Default("en")
	require.NoError(t, err)

	for _, key := range []string{
		"welcome", "cancel.done", "cancel.nothing", "text_only", "error.unexpected",
		"login.summary", "pay.link", "voucher.rejected", "scan.found_adsl", "apply.prompt",
	} {
		assert.True(t, tr.Has(key), key)
	}
	assert.Equal(t, "✅ PSTN Payment link: http://pay/link", tr.T("pay.link", "PSTN", "http://pay/link"))
	assert.NotContains(t, tr.T("welcome"), "/unpaid")
}
