// Package network checks machine reachability with the operating system's ping binary
package network

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single echo request
const DefaultTimeout = 1200 * time.Millisecond

// waitDelay bounds how long output pipes are drained after a killed ping
const waitDelay = 200 * time.Millisecond

// ErrInvalidIP is returned when the target is empty after removing spaces
var ErrInvalidIP = errors.New("invalid IP address")

// Windows prints "Tiempo=12ms" or "time<1ms", unix "time=12.3 ms"
var latencyPattern = regexp.MustCompile(`[Tt]i?me[=<]\s*([\d\.]+)\s*ms`)

// Result is the outcome of a single ping
type Result struct {
	Reachable bool
	Latency   time.Duration
	// LatencyKnown is false when the output could not be parsed
	LatencyKnown bool
}

func (r Result) String() string {
	switch {
	case !r.Reachable:
		return "no response"
	case r.LatencyKnown:
		return fmt.Sprintf("reachable, %s", r.Latency.Round(100*time.Microsecond))
	default:
		return "reachable"
	}
}

// CommandFunc builds the process for a ping. The continuous flag selects
// the never-ending variant.
type CommandFunc func(ctx context.Context, ip string, continuous bool) *exec.Cmd

// Pinger runs ping processes
type Pinger struct {
	log     logrus.FieldLogger
	timeout time.Duration
	command CommandFunc
}

// NewPinger creates a pinger for the current operating system
func NewPinger(log logrus.FieldLogger) *Pinger {
	bin := resolvePing(runtime.GOOS)
	return &Pinger{
		log:     log,
		timeout: DefaultTimeout,
		command: func(ctx context.Context, ip string, continuous bool) *exec.Cmd {
			return exec.CommandContext(ctx, bin, Args(runtime.GOOS, ip, continuous)...)
		},
	}
}

// WithCommand replaces the process builder
func (p *Pinger) WithCommand(fn CommandFunc) *Pinger {
	p.command = fn
	return p
}

// WithTimeout replaces the single ping timeout
func (p *Pinger) WithTimeout(d time.Duration) *Pinger {
	p.timeout = d
	return p
}

// Args returns the ping arguments for goos
func Args(goos, ip string, continuous bool) []string {
	windows := goos == "windows"
	switch {
	case continuous && windows:
		return []string{"-t", ip}
	case continuous:
		return []string{ip}
	case windows:
		return []string{"-n", "1", "-w", "800", ip}
	default:
		return []string{"-c", "1", "-W", "1", ip}
	}
}

// Once sends a single echo request. A timeout or a non-zero exit means the
// host is unreachable; an error is only returned when ping cannot be started.
func (p *Pinger) Once(ctx context.Context, ip string) (Result, error) {
	ip = SanitizeIP(ip)
	if ip == "" {
		return Result{}, ErrInvalidIP
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := p.command(ctx, ip, false)
	cmd.WaitDelay = waitDelay
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || ctx.Err() != nil {
			p.log.WithField("ip", ip).Debugf("Host did not answer: %v", err)
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("failed to run ping: %w", err)
	}

	latency, ok := ParseLatency(string(out))
	return Result{Reachable: true, Latency: latency, LatencyKnown: ok}, nil
}

// ParseLatency extracts the round trip time from ping output
func ParseLatency(out string) (time.Duration, bool) {
	m := latencyPattern.FindStringSubmatch(out)
	if m == nil {
		return 0, false
	}
	ms, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}

// SanitizeIP removes every space from an address
func SanitizeIP(ip string) string {
	return strings.ReplaceAll(ip, " ", "")
}

// resolvePing finds ping.exe on Windows, where PATH may not include System32
// for services; elsewhere the shell lookup is enough.
func resolvePing(goos string) string {
	if goos != "windows" {
		return "ping"
	}
	if p, err := exec.LookPath("ping"); err == nil {
		return p
	}
	windir := os.Getenv("WINDIR")
	if windir == "" {
		windir = os.Getenv("SystemRoot")
	}
	if windir == "" {
		windir = `C:\Windows`
	}
	for _, dir := range []string{"System32", "Sysnative"} {
		candidate := filepath.Join(windir, dir, "PING.EXE")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "ping"
}
