// Package syncstatus reads and writes the status file listing the machines
// whose Cartir and Tasks were synced in the current run.
//
// The file has exactly two lines. Names are joined with dashes, so a name
// must not contain one:
//
//	Ejecutado: 2025-02-26 08:15:00
//	LE001-LE003-LE007
package syncstatus

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/abelzeko/onemine/internal/timerange"
)

const (
	executedPrefix = "Ejecutado: "
	separator      = "-"
)

// Status is the parsed content of the status file
type Status struct {
	// Executed is the raw first line, empty when the file is missing
	Executed string
	Machines []string
}

// Missing returns the machines of all that are not in the status, in input order
func (s Status) Missing(all []string) []string {
	reported := lo.SliceToMap(s.Machines, func(m string) (string, struct{}) { return m, struct{}{} })
	return lo.Filter(all, func(m string, _ int) bool {
		_, ok := reported[m]
		return !ok
	})
}

// File is a status file on disk. It is safe for concurrent use within one process.
type File struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFile creates a status file handle for path
func NewFile(path string) *File {
	return &File{path: path, now: time.Now}
}

// Path returns the location of the file
func (f *File) Path() string {
	return f.path
}

// Read parses the file. A missing or incomplete file yields an empty status.
func (f *File) Read() (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *File) read() (Status, error) {
	lines, err := readLines(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Status{}, nil
		}
		return Status{}, fmt.Errorf("failed to read status file: %w", err)
	}
	if len(lines) < 2 {
		return Status{}, nil
	}
	return Status{
		Executed: strings.TrimSpace(lines[0]),
		Machines: splitNames(lines[1]),
	}, nil
}

// MarkSynced adds machines to the file and stamps it with the current time
func (f *File) MarkSynced(machines ...string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read()
	if err != nil {
		return Status{}, err
	}
	return f.write(append(current.Machines, machines...))
}

// MergeCompleted adds the machines listed on the last non-empty line of
// another dash-joined file. A missing file adds nothing but still restamps.
func (f *File) MergeCompleted(path string) (Status, error) {
	lines, err := readLines(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Status{}, fmt.Errorf("failed to read completed machines: %w", err)
	}

	var completed []string
	nonEmpty := lo.Filter(lines, func(l string, _ int) bool { return strings.TrimSpace(l) != "" })
	if len(nonEmpty) > 0 {
		completed = splitNames(nonEmpty[len(nonEmpty)-1])
	}
	return f.MarkSynced(completed...)
}

func (f *File) write(machines []string) (Status, error) {
	names := lo.Uniq(lo.Filter(machines, func(m string, _ int) bool { return strings.TrimSpace(m) != "" }))
	sort.Strings(names)

	status := Status{
		Executed: executedPrefix + f.now().In(timerange.Location).Format("2006-01-02 15:04:05"),
		Machines: names,
	}
	content := status.Executed + "\n" + strings.Join(names, separator)

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Status{}, fmt.Errorf("failed to create status directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return Status{}, fmt.Errorf("failed to create temporary status file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return Status{}, fmt.Errorf("failed to write status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Status{}, fmt.Errorf("failed to write status file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return Status{}, fmt.Errorf("failed to replace status file: %w", err)
	}
	return status, nil
}

func readLines(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var lines []string
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	return lines, scanner.Err()
}

func splitNames(line string) []string {
	return lo.Filter(strings.Split(strings.TrimSpace(line), separator), func(s string, _ int) bool { return s != "" })
}
