package bot

import "context"

// Button is an inline button that triggers an Action.
type Button struct {
	Label  string
	Action Action
}

// Message is an outbound text message with optional button rows.
type Message struct {
	Text    string
	Buttons [][]Button
}

// Event is one inbound user interaction, already stripped of transport
// details. Exactly one of Command, CallbackData, PhotoFileID or Text is
// expected to be set.
type Event struct {
	UserID   string
	Username string

	Command string // without the leading slash
	Args    string

	CallbackID   string
	CallbackData string

	PhotoFileID string
	Text        string
}

// Transport is the messaging platform the bot talks through.
type Transport interface {
	Send(ctx context.Context, userID string, msg Message) error
	SendPhoto(ctx context.Context, userID, path, caption string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	// FileURL resolves an attachment into a URL the inference service can fetch.
	FileURL(ctx context.Context, fileID string) (string, error)
}
