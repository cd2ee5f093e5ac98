package network

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Runner runs a continuous ping in the background and hands every output
// line to OnLine. OnStop is called exactly once per Start, after the
// process has exited. Callbacks must not call Start or Stop.
type Runner struct {
	pinger *Pinger
	ip     string

	OnLine func(line string)
	OnStop func()

	mu      sync.Mutex
	running bool
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRunner creates a runner for ip
func NewRunner(p *Pinger, ip string, onLine func(string), onStop func()) *Runner {
	return &Runner{pinger: p, ip: SanitizeIP(ip), OnLine: onLine, OnStop: onStop}
}

// Start launches the ping process. It does nothing while already running,
// and waits for the OnStop of a previous run to return before starting.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	prev := r.done
	r.mu.Unlock()
	if prev != nil {
		<-prev
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if r.ip == "" {
		return ErrInvalidIP
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := r.pinger.command(ctx, r.ip, true)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start ping: %w", err)
	}
	r.pinger.log.WithField("ip", r.ip).Infof("Continuous ping started")

	r.gen++
	gen := r.gen
	done := make(chan struct{})
	r.running = true
	r.cancel = cancel
	r.done = done

	go func() {
		_ = cmd.Wait()
		pw.Close()
	}()

	go func() {
		defer close(done)

		// Drain until the writer closes so the process never blocks on output
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r\n")
			if ctx.Err() == nil && strings.TrimSpace(line) != "" && r.OnLine != nil {
				r.OnLine(line)
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil && r.OnLine != nil {
			r.OnLine(fmt.Sprintf("[ping] error: %v", err))
		}
		cancel()

		r.mu.Lock()
		if r.gen == gen {
			r.running = false
		}
		r.mu.Unlock()

		r.pinger.log.WithField("ip", r.ip).Infof("Continuous ping stopped")
		if r.OnStop != nil {
			r.OnStop()
		}
	}()
	return nil
}

// Stop kills the ping process and waits until OnStop has returned
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the ping process is alive
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Wait blocks until the current process has exited
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}
