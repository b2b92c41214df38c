package evaluator

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"chess-tuner/board"
)

// Mode selects what Serve prints per position.
type Mode int

const (
	// ModeTerms prints a CSV header then one term row per position.
	ModeTerms Mode = iota
	// ModeEval prints one score per position.
	ModeEval
)

// ParseMode maps "terms" or "eval" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "terms":
		return ModeTerms, true
	case "eval":
		return ModeEval, true
	}
	return 0, false
}

// Serve reads one FEN per line from r and answers on w until r is exhausted.
// A position that does not parse is answered with an "error,<reason>" line so
// the reader stays aligned with the input.
func Serve(r io.Reader, w io.Writer, p *Params, mode Mode) error {
	out := bufio.NewWriter(w)
	if mode == ModeTerms {
		out.WriteString(strings.Join(Header(), ","))
		out.WriteByte('\n')
		if err := out.Flush(); err != nil {
			return err
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		pos, err := board.Parse(line)
		if err != nil {
			out.WriteString("error," + strings.ReplaceAll(err.Error(), ",", ";"))
		} else {
			t := Trace(p, pos)
			switch mode {
			case ModeEval:
				out.WriteString(strconv.Itoa(t.Score()))
			default:
				vals := t.Values()
				for i, v := range vals {
					if i > 0 {
						out.WriteByte(',')
					}
					out.WriteString(strconv.Itoa(v))
				}
			}
		}
		out.WriteByte('\n')
		if err := out.Flush(); err != nil {
			return err
		}
	}
	return sc.Err()
}
