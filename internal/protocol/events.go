// Package protocol defines the inbound events sent by the conversation backend
// and the single point where raw text frames are decoded into them.
package protocol

import "encoding/json"

// Event is one inbound server event. The set of implementations is closed.
type Event interface {
	eventType() string
}

// Discriminator values carried in the "type" field.
const (
	TypeServerReady       = "server_ready"
	TypeUserSubtitleChunk = "user_subtitle_chunk"
	TypeUserSentence      = "user_sentence"
	TypeBotSubtitle       = "bot_subtitle"
	TypeTurnComplete      = "turn_complete"
	TypeEmotion           = "emotion"
	TypeInterrupted       = "interrupted"
	TypeError             = "error"
)

// ServerReady signals the backend accepted the session and is listening.
type ServerReady struct{}

func (ServerReady) eventType() string { return TypeServerReady }

// UserSubtitleChunk is a partial recognition of what the user is saying.
type UserSubtitleChunk struct {
	Text string
}

func (UserSubtitleChunk) eventType() string { return TypeUserSubtitleChunk }

// UserSentence is the final, authoritative text of a user utterance.
type UserSentence struct {
	Text string
}

func (UserSentence) eventType() string { return TypeUserSentence }

// BotSubtitle is a streamed piece of the bot reply.
type BotSubtitle struct {
	Text string
}

func (BotSubtitle) eventType() string { return TypeBotSubtitle }

// TurnComplete closes a conversational turn with both final texts.
type TurnComplete struct {
	UserText string
	BotText  string
}

func (TurnComplete) eventType() string { return TypeTurnComplete }

// Emotion carries the bot's current emotion tag.
type Emotion struct {
	Tag string
}

func (Emotion) eventType() string { return TypeEmotion }

// Interrupted means the user cut off the bot.
type Interrupted struct{}

func (Interrupted) eventType() string { return TypeInterrupted }

// Error is a backend-reported failure.
type Error struct {
	Code    string
	Message string
}

func (Error) eventType() string { return TypeError }

// Unknown wraps a well-formed frame with an unrecognized discriminator.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (e Unknown) eventType() string { return e.Type }

// TypeOf returns the discriminator of an event, mainly for logging.
func TypeOf(e Event) string {
	if e == nil {
		return ""
	}
	return e.eventType()
}
