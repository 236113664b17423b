// Package transcript reconciles streaming partials and final sentences from
// the conversation backend into an ordered session log.
package transcript

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leonardotrapani/voicelink/internal/protocol"
)

// BackendError is an error event reported by the server.
type BackendError struct {
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error %s: %s", e.Code, e.Message)
}

// Reconciler holds the session log. Every handler is a single state
// transition under the reconciler's own lock.
type Reconciler struct {
	mu            sync.Mutex
	entries       []Entry
	botResponding bool
	emotion       string
	ready         bool

	now   func() time.Time
	newID func() string

	// OnChange is called after every transition, outside the lock.
	OnChange func()
	// OnError receives backend error events.
	OnError func(*BackendError)
}

// NewReconciler returns an empty log.
func NewReconciler() *Reconciler {
	return &Reconciler{
		emotion: DefaultEmotion,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Apply dispatches an inbound event to its handler.
func (r *Reconciler) Apply(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.ServerReady:
		r.ServerReady()
	case protocol.UserSubtitleChunk:
		r.UserSubtitleChunk(e.Text)
	case protocol.UserSentence:
		r.UserSentence(e.Text)
	case protocol.BotSubtitle:
		r.BotSubtitle(e.Text)
	case protocol.TurnComplete:
		r.TurnComplete(e.UserText, e.BotText)
	case protocol.Emotion:
		r.Emotion(e.Tag)
	case protocol.Interrupted:
		r.Interrupted()
	case protocol.Error:
		r.Error(e.Code, e.Message)
	case protocol.Unknown:
		log.Printf("transcript: ignoring unknown event type %q", e.Type)
	default:
		log.Printf("transcript: ignoring unsupported event %T", ev)
	}
}

func (r *Reconciler) ServerReady() {
	r.mu.Lock()
	r.ready = true
	r.mu.Unlock()
	log.Printf("transcript: server ready")
	r.changed()
}

func (r *Reconciler) UserSubtitleChunk(text string) {
	r.mu.Lock()
	r.appendChunkLocked(User, text)
	r.mu.Unlock()
	r.changed()
}

func (r *Reconciler) BotSubtitle(text string) {
	r.mu.Lock()
	r.appendChunkLocked(Bot, text)
	r.mu.Unlock()
	r.changed()
}

// UserSentence replaces the accumulated partials with the final text.
func (r *Reconciler) UserSentence(text string) {
	r.mu.Lock()
	r.removeLocked(StreamingUserID)
	r.appendCompleteLocked(User, text)
	r.botResponding = true
	r.mu.Unlock()
	r.changed()
}

// TurnComplete finalizes the bot reply. The user text was already committed
// by UserSentence.
func (r *Reconciler) TurnComplete(userText, botText string) {
	r.mu.Lock()
	r.removeLocked(StreamingBotID)
	r.appendCompleteLocked(Bot, botText)
	r.botResponding = false
	r.mu.Unlock()
	r.changed()
}

func (r *Reconciler) Emotion(tag string) {
	r.mu.Lock()
	r.emotion = tag
	r.mu.Unlock()
	log.Printf("transcript: emotion changed to %s", tag)
	r.changed()
}

// Interrupted abandons any in-progress text from both speakers.
func (r *Reconciler) Interrupted() {
	r.mu.Lock()
	r.clearStreamingLocked()
	r.botResponding = false
	r.mu.Unlock()
	log.Printf("transcript: user interrupted the bot")
	r.changed()
}

// Error drops streaming entries and forwards the error; complete entries stay.
func (r *Reconciler) Error(code, message string) {
	r.mu.Lock()
	r.clearStreamingLocked()
	r.botResponding = false
	onErr := r.OnError
	r.mu.Unlock()

	log.Printf("transcript: backend error %s: %s", code, message)
	if onErr != nil {
		onErr(&BackendError{Code: code, Message: message})
	}
	r.changed()
}

// Entries returns a copy of the whole log.
func (r *Reconciler) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Complete returns only finalized entries, in arrival order.
func (r *Reconciler) Complete() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Status == Complete {
			out = append(out, e)
		}
	}
	return out
}

// Streaming returns the active streaming entry for a speaker.
func (r *Reconciler) Streaming(s Speaker) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := streamingID(s)
	for _, e := range r.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

func (r *Reconciler) BotResponding() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.botResponding
}

func (r *Reconciler) CurrentEmotion() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emotion
}

func (r *Reconciler) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// appendChunkLocked extends the speaker's streaming entry when it is the last
// one in the log. Otherwise the stale streaming entry is dropped and a new one
// carrying the combined text is appended at the tail, so each speaker has at
// most one streaming entry and it always follows the newest complete entry.
func (r *Reconciler) appendChunkLocked(s Speaker, chunk string) {
	id := streamingID(s)
	if n := len(r.entries); n > 0 && r.entries[n-1].ID == id {
		r.entries[n-1].Text += chunk
		return
	}

	text := chunk
	if prev, ok := r.removeLocked(id); ok {
		text = prev.Text + chunk
	}
	r.entries = append(r.entries, Entry{
		ID:        id,
		Speaker:   s,
		Text:      text,
		CreatedAt: r.now(),
		Status:    Streaming,
	})
}

func (r *Reconciler) appendCompleteLocked(s Speaker, text string) {
	r.entries = append(r.entries, Entry{
		ID:        r.newID(),
		Speaker:   s,
		Text:      text,
		CreatedAt: r.now(),
		Status:    Complete,
	})
}

func (r *Reconciler) removeLocked(id string) (Entry, bool) {
	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return e, true
		}
	}
	return Entry{}, false
}

func (r *Reconciler) clearStreamingLocked() {
	r.removeLocked(StreamingUserID)
	r.removeLocked(StreamingBotID)
}

func (r *Reconciler) changed() {
	r.mu.Lock()
	fn := r.OnChange
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}
