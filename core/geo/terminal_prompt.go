package geo

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// TerminalPrompt is a ManualEntry for the CLI. Lines come from a shared
// channel so the same stdin reader can serve other prompts.
type TerminalPrompt struct {
	lines <-chan string
	out   io.Writer
}

func NewTerminalPrompt(lines <-chan string, out io.Writer) *TerminalPrompt {
	return &TerminalPrompt{lines: lines, out: out}
}

func (p *TerminalPrompt) Open(ctx context.Context) error {
	_, err := fmt.Fprintln(p.out, "Location unavailable. Enter coordinates (e.g. 51.50851, -0.12572), empty line to cancel:")
	return err
}

// Next treats an empty line or a closed input as cancellation.
func (p *TerminalPrompt) Next(ctx context.Context) (Submission, error) {
	fmt.Fprint(p.out, "> ")
	select {
	case <-ctx.Done():
		return Submission{}, ctx.Err()
	case line, ok := <-p.lines:
		text := strings.TrimSpace(line)
		if !ok || text == "" {
			return Submission{Action: ActionCancel}, nil
		}
		return Submission{Action: ActionConfirm, Text: text}, nil
	}
}

func (p *TerminalPrompt) Reject(ctx context.Context, err error) error {
	_, werr := fmt.Fprintf(p.out, "invalid coordinates: %v\n", err)
	return werr
}

func (p *TerminalPrompt) Close(ctx context.Context) error {
	return nil
}
