package diag

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Diagnostic struct {
	Kind    Kind
	Message string
}

func (d Diagnostic) String() string {
	return d.Kind.String() + ": " + d.Message
}

// Bag accumulates diagnostics in the order they were reported. Every diagnostic is
// also logged at warn level.
type Bag struct {
	items  []Diagnostic
	logger *zap.Logger
}

func NewBag(logger *zap.Logger) *Bag {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bag{logger: logger}
}

func (b *Bag) Add(kind Kind, message string) {
	b.items = append(b.items, Diagnostic{Kind: kind, Message: message})
	b.logger.Warn(message, zap.Stringer("kind", kind))
}

func (b *Bag) Addf(kind Kind, format string, args ...any) {
	b.Add(kind, fmt.Sprintf(format, args...))
}

// Len returns the number of diagnostics recorded.
func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns the backing slice; callers must not modify it.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Count returns the number of diagnostics of the given kind.
func (b *Bag) Count(kind Kind) int {
	n := 0
	for i := range b.items {
		if b.items[i].Kind == kind {
			n++
		}
	}
	return n
}

// Merge appends the diagnostics of other without logging them again.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.items = append(b.items, other.items...)
}

// Text joins the messages with newlines, in report order.
func (b *Bag) Text() string {
	var sb strings.Builder
	for i := range b.items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(b.items[i].Message)
	}
	return sb.String()
}
