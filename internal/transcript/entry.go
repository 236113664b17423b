package transcript

import "time"

// Speaker identifies who produced an entry.
type Speaker string

const (
	User Speaker = "user"
	Bot  Speaker = "bot"
)

// Status of an entry.
type Status string

const (
	Streaming Status = "streaming"
	Complete  Status = "complete"
)

// Streaming entries use a fixed id per speaker so collaborators can update the
// same row in place while partial text arrives.
const (
	StreamingUserID = "streaming-user"
	StreamingBotID  = "streaming-bot"
)

// DefaultEmotion is reported until the backend sends an emotion event.
const DefaultEmotion = "NEUTRAL"

// Entry is one line of the session log.
type Entry struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Status    Status    `json:"status"`
}

func streamingID(s Speaker) string {
	if s == Bot {
		return StreamingBotID
	}
	return StreamingUserID
}
