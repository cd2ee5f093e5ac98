// Package vnc opens a remote desktop session to a machine with the TightVNC viewer
package vnc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidIP is returned when the target is empty after removing spaces
	ErrInvalidIP = errors.New("invalid IP address")
	// ErrViewerNotFound is returned when the configured viewer executable does not exist
	ErrViewerNotFound = errors.New("VNC viewer not found")
)

// StartFunc starts a detached process
type StartFunc func(ctx context.Context, exe string, args ...string) error

// Launcher starts the viewer connected to a host
type Launcher struct {
	exe      string
	password string
	log      logrus.FieldLogger
	start    StartFunc
}

// NewLauncher creates a launcher for the viewer at exe
func NewLauncher(exe, password string, log logrus.FieldLogger) *Launcher {
	return &Launcher{exe: exe, password: password, log: log, start: startDetached}
}

// WithStarter replaces the process starter
func (l *Launcher) WithStarter(fn StartFunc) *Launcher {
	l.start = fn
	return l
}

// Args returns the viewer command line for ip
func (l *Launcher) Args(ip string) []string {
	args := []string{"-host=" + ip}
	if l.password != "" {
		args = append(args, "-password="+l.password)
	}
	return args
}

// Connect opens the viewer on ip. It does not wait for the session to end.
func (l *Launcher) Connect(ctx context.Context, ip string) error {
	ip = strings.ReplaceAll(ip, " ", "")
	if ip == "" {
		return ErrInvalidIP
	}
	if _, err := os.Stat(l.exe); err != nil {
		return fmt.Errorf("%w: %s", ErrViewerNotFound, l.exe)
	}

	log := l.log.WithField("ip", ip)
	if l.password == "" {
		log.Warn("VNC_PASSWORD is not set, the viewer will ask for it")
	}

	log.Infof("Starting VNC viewer %s", l.exe)
	if err := l.start(ctx, l.exe, l.Args(ip)...); err != nil {
		return fmt.Errorf("failed to start VNC viewer: %w", err)
	}
	return nil
}

func startDetached(_ context.Context, exe string, args ...string) error {
	cmd := exec.Command(exe, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
