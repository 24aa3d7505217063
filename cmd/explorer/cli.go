package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/adventurelime/explorer/internal/dispatcher"
	"github.com/adventurelime/explorer/internal/parser"
)

const maxLineSize = 64 * 1024

// openInput returns stdin for an empty path, otherwise the named file.
func openInput(path string) (io.Reader, func(), error) {
	if path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// readCommands dispatches one command per input line until the input ends or ctx is cancelled.
// Replies of synchronous commands are written to out.
func readCommands(ctx context.Context, in io.Reader, d *dispatcher.Dispatcher, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading input: %w", err)
					}
				default:
				}
				Logger.Info("Input closed")
				return nil
			}
			handleLine(d, line, out)
		}
	}
}

func handleLine(d *dispatcher.Dispatcher, raw string, out io.Writer) {
	line, ok := parser.SplitLine(raw)
	if !ok {
		return
	}
	result, err := d.Dispatch(dispatcher.Command{
		Name:     line.Command,
		Args:     line.Args,
		Received: time.Now(),
	})
	if err != nil {
		Logger.Warn("Command rejected", "command", line.Command, "error", err)
		fmt.Fprintf(out, "%s error: %v\n", line.Command, err)
		return
	}
	if result == nil || result == "queued" {
		return
	}
	fmt.Fprintf(out, "%s %v\n", line.Command, result)
}
