package telegram

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonbarrel6/aakora/internal/application"
	"github.com/simonbarrel6/aakora/internal/config"
	"github.com/simonbarrel6/aakora/internal/domain/ports/adapter"
	"github.com/simonbarrel6/aakora/internal/infra/worker"
)

func newTestAdapter() *RealTelegramBotAdapter {
	l := zerolog.New(io.Discard)
	return &RealTelegramBotAdapter{cfg: &config.BotConfig{}, log: &l}
}

type handlerFunc func(ctx context.Context, t application.Turn) error

func (f handlerFunc) Handle(ctx context.Context, t application.Turn) error { return f(ctx, t) }

// keyRecorder runs tasks inline and remembers the keys they were queued under.
type keyRecorder struct{ keys []int64 }

func (k *keyRecorder) Submit(ctx context.Context, key int64, task worker.Task) error {
	k.keys = append(k.keys, key)
	return task(ctx)
}

func TestEnqueue_KeysBySender(t *testing.T) {
	r := newTestAdapter()
	rec := &keyRecorder{}
	var got []application.Turn
	h := handlerFunc(func(_ context.Context, t application.Turn) error {
		got = append(got, t)
		return nil
	})
	ctx := context.Background()

	require.NoError(t, r.enqueue(ctx, rec, h, &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, From: &tgbotapi.User{ID: 42}, Text: "a"}))
	require.NoError(t, r.enqueue(ctx, rec, h, &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -100}, From: &tgbotapi.User{ID: 42}, Text: "b"}))
	require.NoError(t, r.enqueue(ctx, rec, h, nil))
	require.NoError(t, r.enqueue(ctx, rec, h, &tgbotapi.Message{}))

	assert.Equal(t, []int64{42, 42}, rec.keys)
	require.Len(t, got, 2)
	assert.Equal(t, int64(-100), got[1].ChatID)
	assert.Equal(t, int64(42), got[1].UserID)
}

func TestEnqueue_SameSenderNeverOverlapsAcrossChats(t *testing.T) {
	r := newTestAdapter()
	pool := worker.NewKeyedPool(8, 4, r.log)
	pool.Start(context.Background())

	var (
		inflight atomic.Int32
		overlap  atomic.Bool
		mu       sync.Mutex
		order    []string
	)
	h := handlerFunc(func(_ context.Context, t application.Turn) error {
		if inflight.Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(time.Millisecond)
		mu.Lock()
		order = append(order, t.Text)
		mu.Unlock()
		inflight.Add(-1)
		return nil
	})

	chats := []int64{42, -100, -200}
	want := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		text := string(rune('a' + i%26))
		want = append(want, text)
		msg := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chats[i%len(chats)]}, From: &tgbotapi.User{ID: 42}, Text: text}
		require.NoError(t, r.enqueue(context.Background(), pool, h, msg))
	}
	pool.Stop()

	assert.False(t, overlap.Load(), "turns of one user ran concurrently")
	assert.Equal(t, want, order)
}

func TestTurnFromMessage(t *testing.T) {
	t.Run("command with bot suffix", func(t *testing.T) {
		msg := &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: 10},
			From: &tgbotapi.User{ID: 20},
			Text: "/Fact@aakora_bot",
		}
		turn := turnFromMessage(msg)
		assert.Equal(t, int64(10), turn.ChatID)
		assert.Equal(t, int64(20), turn.UserID)
		assert.Equal(t, "fact", turn.Command)
		assert.False(t, turn.HasImage)
	})

	t.Run("plain text", func(t *testing.T) {
		turn := turnFromMessage(&tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 5}, Text: "12345"})
		assert.Equal(t, int64(5), turn.UserID)
		assert.Empty(t, turn.Command)
		assert.Equal(t, "12345", turn.Text)
	})

	t.Run("photo", func(t *testing.T) {
		msg := &tgbotapi.Message{
			Chat:  &tgbotapi.Chat{ID: 5},
			Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
		}
		turn := turnFromMessage(msg)
		assert.True(t, turn.HasImage)
		assert.Empty(t, turn.Text)
	})
}

func TestInlineKeyboard(t *testing.T) {
	kb, ok := inlineKeyboard([][]adapter.InlineButton{
		{{Text: "Pay now", URL: "https://pay.example/x"}},
		{},
		{{Text: "Menu", Data: "cmd:menu"}, {Text: " "}},
	})
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)

	pay := kb.InlineKeyboard[0][0]
	require.NotNil(t, pay.URL)
	assert.Equal(t, "https://pay.example/x", *pay.URL)

	menu := kb.InlineKeyboard[1][0]
	require.NotNil(t, menu.CallbackData)
	assert.Equal(t, "cmd:menu", *menu.CallbackData)
	assert.Equal(t, "•", kb.InlineKeyboard[1][1].Text)

	_, ok = inlineKeyboard(nil)
	assert.False(t, ok)
}
