package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

type wireEvent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	UserText string `json:"user_text,omitempty"`
	BotText  string `json:"bot_text,omitempty"`
	Emotion  string `json:"emotion,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Decode parses one text frame. Frames that are not JSON objects or lack a
// type are returned as errors; unknown types decode to Unknown.
func Decode(data []byte) (Event, error) {
	var msg wireEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	typ := strings.TrimSpace(msg.Type)
	if typ == "" {
		return nil, fmt.Errorf("decode event: missing type")
	}

	switch typ {
	case TypeServerReady:
		return ServerReady{}, nil
	case TypeUserSubtitleChunk:
		return UserSubtitleChunk{Text: msg.Text}, nil
	case TypeUserSentence:
		return UserSentence{Text: msg.Text}, nil
	case TypeBotSubtitle:
		return BotSubtitle{Text: msg.Text}, nil
	case TypeTurnComplete:
		return TurnComplete{UserText: msg.UserText, BotText: msg.BotText}, nil
	case TypeEmotion:
		return Emotion{Tag: strings.ToUpper(strings.TrimSpace(msg.Emotion))}, nil
	case TypeInterrupted:
		return Interrupted{}, nil
	case TypeError:
		return Error{Code: msg.Code, Message: msg.Message}, nil
	default:
		return Unknown{Type: typ, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}
