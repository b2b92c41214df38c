// Package features turns labelled positions into per-feature contributions.
package features

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"chess-tuner/schema"
)

// Extractor decomposes positions into feature rows. A nil entry in the
// result marks a position the backend could not evaluate.
type Extractor interface {
	Identity() string
	Extract(ctx context.Context, fens []string) ([]*Row, error)
}

// Backend names accepted by New.
const (
	BackendReference = "reference"
	BackendBridge    = "bridge"
)

// New builds the backend named by kind. bridgeCmd is split on whitespace.
func New(kind string, s *schema.Schema, bridgeCmd string, log zerolog.Logger) (Extractor, error) {
	switch kind {
	case "", BackendReference:
		return NewReference(s, log)
	case BackendBridge:
		args := strings.Fields(bridgeCmd)
		if len(args) == 0 {
			return nil, fmt.Errorf("bridge backend needs a command")
		}
		return NewBridge(s, args, log), nil
	}
	return nil, fmt.Errorf("unknown feature backend %q", kind)
}
