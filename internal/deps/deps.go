package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

const probeTimeout = 2 * time.Second

// Status represents the installation status of a dependency
type Status struct {
	Name      string
	Purpose   string
	Installed bool
	Path      string
	Version   string
}

var (
	lookPath = exec.LookPath
	output   = func(path string, args ...string) ([]byte, error) {
		return exec.Command(path, args...).Output()
	}
	// probe runs a liveness command with a short deadline.
	probe = func(path string, args ...string) error {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		return exec.CommandContext(ctx, path, args...).Run()
	}
)

func check(name, purpose string, versionArgs ...string) Status {
	status := Status{Name: name, Purpose: purpose}

	path, err := lookPath(name)
	if err != nil {
		return status
	}
	status.Installed = true
	status.Path = path

	out, err := output(path, versionArgs...)
	if err == nil {
		// first line carries the version for both tools
		lines := strings.Split(string(out), "\n")
		if len(lines) > 0 {
			status.Version = strings.TrimSpace(lines[0])
		}
	}

	return status
}

// CheckPwRecord checks for the PipeWire capture tool.
func CheckPwRecord() Status {
	return check("pw-record", "microphone capture (pipewire backend)", "--version")
}

// CheckPipeWireDaemon reports whether the PipeWire daemon answers pw-cli.
// pw-record starts fine without it and then captures nothing.
func CheckPipeWireDaemon() Status {
	status := Status{Name: "pipewire", Purpose: "audio server answering pw-cli info"}
	path, err := lookPath("pw-cli")
	if err != nil {
		return status
	}
	status.Path = path
	status.Installed = probe(path, "info") == nil
	return status
}

// CheckNotifySend checks for the desktop notification tool.
func CheckNotifySend() Status {
	return check("notify-send", "desktop notifications", "--version")
}

// Check reports the external tools needed by a capture backend and
// notification type. The malgo backend links its audio library directly.
func Check(backend, notifyType string) []Status {
	var out []Status
	if backend == "pipewire" {
		out = append(out, CheckPwRecord(), CheckPipeWireDaemon())
	}
	if notifyType == "desktop" {
		out = append(out, CheckNotifySend())
	}
	return out
}
