package features

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chess-tuner/schema"
)

// Bridge runs an external terms process: FENs go in on stdin one per line,
// a CSV header and then one row or "error" line per FEN come back on stdout.
type Bridge struct {
	Args []string
	Env  []string // appended to the parent environment

	schema *schema.Schema
	log    zerolog.Logger
}

// NewBridge returns a bridge backend running args.
func NewBridge(s *schema.Schema, args []string, log zerolog.Logger) *Bridge {
	return &Bridge{Args: args, schema: s, log: log}
}

func (b *Bridge) Identity() string { return "bridge:" + strings.Join(b.Args, " ") }

// Extract runs one process for the whole batch.
func (b *Bridge) Extract(ctx context.Context, fens []string) ([]*Row, error) {
	// The child is killed only when the caller gives up or a pump fails; a
	// child that closes stdout before exiting is left to exit on its own.
	cctx, kill := context.WithCancel(ctx)
	defer kill()
	var g errgroup.Group
	cmd := exec.CommandContext(cctx, b.Args[0], b.Args[1:]...)
	if len(b.Env) > 0 {
		cmd.Env = append(os.Environ(), b.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start bridge: %w", err)
	}
	b.log.Debug().Str("cmd", b.Identity()).Int("positions", len(fens)).Msg("bridge started")

	rows := make([]*Row, 0, len(fens))
	g.Go(func() error {
		defer stdin.Close()
		w := bufio.NewWriter(stdin)
		for _, fen := range fens {
			// keep one line per position even for junk input
			line := strings.TrimSpace(strings.ReplaceAll(fen, "\n", " "))
			if line == "" {
				line = "-"
			}
			if _, err := w.WriteString(line + "\n"); err != nil {
				return killOn(kill, ignorePipe(err))
			}
		}
		return killOn(kill, ignorePipe(w.Flush()))
	})
	g.Go(func() error {
		var err error
		rows, err = b.read(stdout, len(fens))
		return killOn(kill, err)
	})

	groupErr := g.Wait()
	waitErr := cmd.Wait()

	// A positive status means the child exited on its own; -1 means we killed it.
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) && exitErr.ExitCode() > 0 && ctx.Err() == nil {
		return nil, &ProcessError{
			Command:  b.Identity(),
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(tail(stderr.String(), 512)),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ee *ExtractionError
	if errors.As(groupErr, &ee) {
		return nil, groupErr
	}
	if groupErr != nil {
		return nil, fmt.Errorf("bridge io: %w", groupErr)
	}
	if waitErr != nil {
		return nil, waitErr
	}
	if len(rows) < len(fens) {
		return nil, &ExtractionError{
			Backend: b.Identity(),
			Reason:  fmt.Sprintf("got %d rows for %d positions", len(rows), len(fens)),
		}
	}
	return rows, nil
}

func (b *Bridge) read(r io.Reader, want int) ([]*Row, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, &ExtractionError{Backend: b.Identity(), Reason: "no header"}
	}
	header := strings.Split(sc.Text(), ",")
	m, err := newMapping(b.Identity(), header, b.schema)
	if err != nil {
		return nil, err
	}

	rows := make([]*Row, 0, want)
	skipped := 0
	vals := make([]int, len(header))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if len(rows) == want {
			return nil, &ExtractionError{Backend: b.Identity(), Reason: "more rows than positions"}
		}
		fields := strings.Split(line, ",")
		if strings.TrimSpace(fields[0]) == "error" {
			rows = append(rows, nil)
			skipped++
			continue
		}
		if len(fields) != len(header) {
			return nil, &ExtractionError{
				Backend: b.Identity(),
				Reason:  fmt.Sprintf("row %d has %d fields, header has %d", len(rows)+1, len(fields), len(header)),
			}
		}
		for i, f := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, &ExtractionError{
					Backend: b.Identity(),
					Reason:  fmt.Sprintf("row %d column %s: %v", len(rows)+1, header[i], err),
				}
			}
			vals[i] = v
		}
		rows = append(rows, m.row(vals))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		b.log.Warn().Int("skipped", skipped).Msg("bridge rejected positions")
	}
	return rows, nil
}

func killOn(kill context.CancelFunc, err error) error {
	if err != nil {
		kill()
	}
	return err
}

// ignorePipe drops the write error seen when the process stops reading early;
// the exit status and row count decide the outcome instead.
func ignorePipe(err error) error {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
