package notify

import (
	"bytes"
	"log"
	"os"
	"os/exec"
	"reflect"
	"strings"
	"testing"
)

func captureCommands(t *testing.T) *[][]string {
	t.Helper()
	var calls [][]string
	execCommand = func(name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		return exec.Command("true")
	}
	t.Cleanup(func() { execCommand = exec.Command })
	return &calls
}

func TestDesktopNotifier(t *testing.T) {
	calls := captureCommands(t)
	d := Desktop{}

	d.Connected()
	d.Reconnecting(2, 5)
	d.Disconnected()
	d.Error("boom")

	want := [][]string{
		{"notify-send", "-a", "Voicelink", "Voicelink", "Connected"},
		{"notify-send", "-a", "Voicelink", "Voicelink", "Connection lost, reconnecting (2/5)"},
		{"notify-send", "-a", "Voicelink", "Voicelink", "Disconnected"},
		{"notify-send", "-a", "Voicelink", "-u", "critical", "Voicelink: boom"},
	}
	if !reflect.DeepEqual(*calls, want) {
		t.Errorf("commands = %v, want %v", *calls, want)
	}
}

func TestDesktopNotifier_MissingBinary(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	execCommand = func(string, ...string) *exec.Cmd {
		return exec.Command("/nonexistent/notify-send")
	}
	defer func() { execCommand = exec.Command }()

	Desktop{}.Notify("t", "m")
	if !strings.Contains(buf.String(), "failed to send notification") {
		t.Errorf("expected failure to be logged, got %q", buf.String())
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	n := Log{}
	tests := []struct {
		name string
		call func()
		want string
	}{
		{"Connected", n.Connected, "Voicelink: Connected"},
		{"Reconnecting", func() { n.Reconnecting(1, 3) }, "Reconnecting (1/3)"},
		{"Disconnected", n.Disconnected, "Voicelink: Disconnected"},
		{"Error", func() { n.Error("oops") }, "Voicelink Error: oops"},
		{"Notify", func() { n.Notify("Title", "Body") }, "Title: Body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.call()
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("log output = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind string
		want Notifier
	}{
		{"desktop", Desktop{}},
		{"", Desktop{}},
		{"log", Log{}},
		{"none", Nop{}},
	}
	for _, tt := range tests {
		if got := New(tt.kind); reflect.TypeOf(got) != reflect.TypeOf(tt.want) {
			t.Errorf("New(%q) = %T, want %T", tt.kind, got, tt.want)
		}
	}
}

func TestNopNotifier(t *testing.T) {
	var n Notifier = Nop{}
	n.Connected()
	n.Reconnecting(1, 1)
	n.Disconnected()
	n.Error("x")
	n.Notify("a", "b")
}
