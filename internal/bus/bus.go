// Package bus is the local control channel between the CLI and a running
// voicelink daemon: a unix socket taking one-byte commands and answering
// with a single line, plus a PID file guarding against double starts.
package bus

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const SockName = "control.sock"
const PidName = "voicelink.pid"
const ProtoVer = "1.0"

// Commands understood by the daemon.
const (
	CmdStatus     byte = 's'
	CmdTranscript byte = 'l'
	CmdReconnect  byte = 'r'
	CmdQuit       byte = 'q'
	CmdVersion    byte = 'v'
)

// replyTimeout covers a reconnect, which waits for one dial.
const replyTimeout = 30 * time.Second

func runtimeDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "voicelink"), nil
}

// ~/.cache/voicelink/control.sock
func getSockPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SockName), nil
}

// ~/.cache/voicelink/voicelink.pid
func getPidPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PidName), nil
}

func SockPath() (string, error) { return getSockPath() }

type socketManager struct {
	path string
}

func newSocketManager() (*socketManager, error) {
	p, err := getSockPath()
	if err != nil {
		return nil, err
	}
	return &socketManager{path: p}, nil
}

func (s *socketManager) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(s.path) // stale socket from last run
	return net.Listen("unix", s.path)
}

func (s *socketManager) dial() (net.Conn, error) {
	return net.Dial("unix", s.path)
}

func (s *socketManager) send(cmd byte) (string, error) {
	c, err := s.dial()
	if err != nil {
		return "", err
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(replyTimeout))

	if _, err := c.Write([]byte{cmd, '\n'}); err != nil {
		return "", err
	}
	return bufio.NewReader(c).ReadString('\n')
}

type pidManager struct {
	path string
}

func newPidManager() (*pidManager, error) {
	p, err := getPidPath()
	if err != nil {
		return nil, err
	}
	return &pidManager{path: p}, nil
}

func (p *pidManager) create() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (p *pidManager) remove() error {
	return os.Remove(p.path)
}

func (p *pidManager) checkExisting() error {
	pidData, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil // no existing daemon
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return nil // invalid pid file, assume stale
	}
	if !p.isProcessAlive(pid) {
		return nil
	}
	return fmt.Errorf("daemon already running with PID %d", pid)
}

func (p *pidManager) isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}

func Listen() (net.Listener, error) {
	sm, err := newSocketManager()
	if err != nil {
		return nil, err
	}
	return sm.listen()
}

func Dial() (net.Conn, error) {
	sm, err := newSocketManager()
	if err != nil {
		return nil, err
	}
	return sm.dial()
}

// SendCommand sends one command to the daemon and returns its reply line.
func SendCommand(cmd byte) (string, error) {
	sm, err := newSocketManager()
	if err != nil {
		return "", err
	}
	return sm.send(cmd)
}

func CheckExistingDaemon() error {
	pm, err := newPidManager()
	if err != nil {
		return err
	}
	return pm.checkExisting()
}

func CreatePidFile() error {
	pm, err := newPidManager()
	if err != nil {
		return err
	}
	return pm.create()
}

func RemovePidFile() error {
	pm, err := newPidManager()
	if err != nil {
		return err
	}
	return pm.remove()
}
