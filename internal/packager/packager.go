package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

/*
Responsibilities
- Locate the WARC files the capture proxy wrote during the crawl
- Invoke the archive packager with an explicit, validated option set
- Stream the packager's output to the caller

The packager runs only after a crawl finished without interruption.
*/

// ArchiveSubdir is where the capture proxy writes WARC files, relative to
// the work directory.
const ArchiveSubdir = "collections/capture/archive"

const archiveGlob = "*.warc.gz"

type Options struct {
	// Binary is the packager executable, looked up in PATH when not absolute.
	Binary string
	// URL is the main page of the archive, normally the crawl seed.
	URL    string
	Name   string
	Output string
	// WorkDir holds the capture collections.
	WorkDir     string
	Title       string
	Description string
	Favicon     string
	Lang        string
}

func (o Options) validate() error {
	var missing []string
	if o.Binary == "" {
		missing = append(missing, "binary")
	}
	if o.URL == "" {
		missing = append(missing, "url")
	}
	if o.Name == "" {
		missing = append(missing, "name")
	}
	if o.Output == "" {
		missing = append(missing, "output")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ArchiveDir returns the directory WARC files are read from.
func (o Options) ArchiveDir() string {
	workDir := o.WorkDir
	if workDir == "" {
		workDir = "."
	}
	return filepath.Join(workDir, filepath.FromSlash(ArchiveSubdir))
}

// Archives lists the WARC files to package, sorted by name.
func (o Options) Archives() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(o.ArchiveDir(), archiveGlob))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Args builds the packager command line for the given archives.
func (o Options) Args(archives []string) []string {
	args := []string{
		"--url", o.URL,
		"--name", o.Name,
		"--output", o.Output,
	}
	optional := []struct {
		flag  string
		value string
	}{
		{"--title", o.Title},
		{"--description", o.Description},
		{"--favicon", o.Favicon},
		{"--lang", o.Lang},
	}
	for _, opt := range optional {
		if opt.value != "" {
			args = append(args, opt.flag, opt.value)
		}
	}
	return append(args, archives...)
}

type Packager struct {
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// NewPackager returns a packager that forwards the child's output to stdout
// and stderr. Nil writers discard output.
func NewPackager(logger *slog.Logger, stdout, stderr io.Writer) *Packager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Packager{logger: logger, stdout: stdout, stderr: stderr}
}

func (p *Packager) Run(ctx context.Context, opts Options) error {
	if err := opts.validate(); err != nil {
		return &PackageError{Message: err.Error(), Cause: ErrCauseInvalidInput}
	}

	archives, err := opts.Archives()
	if err != nil {
		return &PackageError{Message: err.Error(), Cause: ErrCauseInvalidInput}
	}
	if len(archives) == 0 {
		return &PackageError{
			Message: fmt.Sprintf("no %s files in %s", archiveGlob, opts.ArchiveDir()),
			Cause:   ErrCauseNoArchives,
		}
	}

	if err := os.MkdirAll(opts.Output, 0755); err != nil {
		return &PackageError{Message: err.Error(), Cause: ErrCauseInvalidInput}
	}

	args := opts.Args(archives)
	p.logger.Info("packaging archive",
		slog.String("binary", opts.Binary),
		slog.Int("archives", len(archives)),
		slog.String("name", opts.Name),
		slog.String("output", opts.Output),
	)

	cmd := exec.CommandContext(ctx, opts.Binary, args...)
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &PackageError{
				Message:  err.Error(),
				Cause:    ErrCauseExitStatus,
				ExitCode: exitErr.ExitCode(),
			}
		}
		return &PackageError{Message: err.Error(), Cause: ErrCauseStartFailure}
	}
	return nil
}
