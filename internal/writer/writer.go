// internal/writer/writer.go
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Multi fans one record out to every sink. A failing sink does not stop
// delivery to the others.
type Multi struct {
	names   []string
	writers []Writer
}

func NewMulti() *Multi { return &Multi{} }

// Add registers a sink under name.
func (m *Multi) Add(name string, w Writer) {
	m.names = append(m.names, name)
	m.writers = append(m.writers, w)
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.writers) }

func (m *Multi) Write(ctx context.Context, rec Record) error {
	var errs []string

	for i, w := range m.writers {
		if err := w.Write(ctx, rec); err != nil {
			errs = append(errs, fmt.Sprintf(
				"writer: sink=%s source=%s err=%v",
				m.names[i], rec.Source, err,
			))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}

	return nil
}
