package config

import (
	"io"
	"os"
	"time"

	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
)

// NewLogger builds the run logger: console output for humans, JSON lines when
// asJSON is set. Colour is dropped when w is not a colour-capable terminal.
func NewLogger(w io.Writer, level string, asJSON bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if !asJSON {
		noColor := true
		if f, ok := w.(*os.File); ok {
			noColor = termenv.NewOutput(f).Profile == termenv.Ascii
		}
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: noColor}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
