package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFHandler returns a handler shipping records to a Graylog GELF UDP input at addr.
func NewGELFHandler(addr, level string) (slog.Handler, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("creating gelf writer: %w", err)
	}
	w.Facility = InstrumentationName
	return slog.NewJSONHandler(w, HandlerOptions(level)), nil
}
