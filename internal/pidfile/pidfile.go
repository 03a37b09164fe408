// Package pidfile writes and guards the daemon's PID file, grounded on the
// original lib-daemon-manager's DaemonManager: refuse to start over a live
// process, clean a stale file, and remove the file on exit.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// daemonizedMarker is the environment variable a re-exec'd child checks to
// tell it apart from the foreground parent that spawned it.
const daemonizedMarker = "FILTERSERVICED_DAEMONIZED"

// Daemonize detaches the process from its controlling terminal (§6
// --daemon), the idiomatic Go substitute for the original DaemonManager's
// double fork + setsid + chdir("/") + close(stdin/stdout/stderr)
// (DaemonManager::daemonize): Go cannot safely fork a running
// multi-threaded runtime, so detachment is done by re-executing the same
// binary with a new session and /dev/null-backed standard streams, the
// same self-re-exec pattern cmonit uses for its own -daemon flag. Returns
// true when the calling process is the still-attached parent that must now
// exit; false when it is the detached child that should continue into run().
func Daemonize() (isParent bool, err error) {
	if os.Getenv(daemonizedMarker) == "1" {
		return false, nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return false, fmt.Errorf("daemonize: resolve executable: %w", err)
	}
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return false, fmt.Errorf("daemonize: open %s: %w", os.DevNull, err)
	}
	defer devnull.Close()

	attr := &syscall.ProcAttr{
		Dir: "/",
		Env: append(os.Environ(), daemonizedMarker+"=1"),
		Files: []uintptr{
			devnull.Fd(), // stdin
			devnull.Fd(), // stdout
			devnull.Fd(), // stderr
		},
		Sys: &syscall.SysProcAttr{Setsid: true},
	}
	pid, err := syscall.ForkExec(execPath, os.Args, attr)
	if err != nil {
		return false, fmt.Errorf("daemonize: fork/exec: %w", err)
	}
	fmt.Printf("%s daemonized with pid %d\n", execPath, pid)
	return true, nil
}

// PidFile tracks one PID file on disk; Remove is safe to call more than
// once and is a no-op once the file has been removed or was never written.
type PidFile struct {
	path    string
	written bool
}

// New checks path for a stale or live PID file (CheckExisting semantics)
// and returns a handle ready for Write.
func New(path string) (*PidFile, error) {
	pf := &PidFile{path: path}
	if err := pf.checkExisting(); err != nil {
		return nil, err
	}
	return pf, nil
}

func (pf *PidFile) checkExisting() error {
	data, err := os.ReadFile(pf.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return nil
	}
	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		_ = os.Remove(pf.path)
		return nil
	}
	if processAlive(pid) {
		return fmt.Errorf("pidfile: process already running with pid %d (%s)", pid, pf.path)
	}
	_ = os.Remove(pf.path)
	return nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == syscall.EPERM {
		return true
	}
	return false
}

// Write stores the current process's PID, mode 0644.
func (pf *PidFile) Write() error {
	if err := os.WriteFile(pf.path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("pidfile: write %s: %w", pf.path, err)
	}
	if err := os.Chmod(pf.path, 0o644); err != nil {
		return fmt.Errorf("pidfile: chmod %s: %w", pf.path, err)
	}
	pf.written = true
	return nil
}

// Remove deletes the PID file if this handle wrote it.
func (pf *PidFile) Remove() {
	if !pf.written {
		return
	}
	_ = os.Remove(pf.path)
	pf.written = false
}

// Path returns the path resolved for this daemon/foreground mode (§4/§9):
// /var/run/<service>.pid when running as a daemon, otherwise
// $HOME/.<service>.pid.
func Path(service string, daemon bool) string {
	if daemon {
		return fmt.Sprintf("/var/run/%s.pid", service)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return fmt.Sprintf("%s/.%s.pid", home, service)
}
