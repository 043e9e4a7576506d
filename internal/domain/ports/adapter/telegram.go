package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// Messenger delivers replies to a chat.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
}
