package notify

import (
	"fmt"
	"log"
	"os/exec"
)

const appName = "Voicelink"

// Notifier surfaces connection changes and fatal errors to the user.
type Notifier interface {
	Connected()
	Reconnecting(attempt, max int)
	Disconnected()
	Error(msg string)
	Notify(title, message string)
}

// New returns the notifier for a config type: "desktop", "log" or "none".
func New(kind string) Notifier {
	switch kind {
	case "log":
		return Log{}
	case "none":
		return Nop{}
	default:
		return Desktop{}
	}
}

// execCommand is swapped in tests.
var execCommand = exec.Command

type Desktop struct{}

func (d Desktop) Connected() { d.Notify(appName, "Connected") }

func (d Desktop) Reconnecting(attempt, max int) {
	d.Notify(appName, fmt.Sprintf("Connection lost, reconnecting (%d/%d)", attempt, max))
}

func (d Desktop) Disconnected() { d.Notify(appName, "Disconnected") }

func (Desktop) Error(msg string) {
	cmd := execCommand("notify-send", "-a", appName, "-u", "critical", appName+": "+msg)
	if err := cmd.Run(); err != nil {
		log.Printf("notify: failed to send error notification: %v", err)
	}
}

func (Desktop) Notify(title, message string) {
	cmd := execCommand("notify-send", "-a", appName, title, message)
	if err := cmd.Run(); err != nil {
		log.Printf("notify: failed to send notification: %v", err)
	}
}

// Log writes notifications to the standard logger.
type Log struct{}

func (Log) Connected() { log.Printf("%s: Connected", appName) }

func (Log) Reconnecting(attempt, max int) {
	log.Printf("%s: Reconnecting (%d/%d)", appName, attempt, max)
}

func (Log) Disconnected()                { log.Printf("%s: Disconnected", appName) }
func (Log) Error(msg string)             { log.Printf("%s Error: %s", appName, msg) }
func (Log) Notify(title, message string) { log.Printf("%s: %s", title, message) }

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless runs.
type Nop struct{}

func (Nop) Connected()            {}
func (Nop) Reconnecting(int, int) {}
func (Nop) Disconnected()         {}
func (Nop) Error(string)          {}
func (Nop) Notify(string, string) {}
