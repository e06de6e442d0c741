// Package repl runs the interactive lookup console.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/TomasB/geoalloc/internal/lookup"
)

const prompt = "> "

// Console reads one query per line and prints the lookup result.
type Console struct {
	locator lookup.Locator
	in      io.Reader
	out     io.Writer
}

// New creates a console reading queries from in and writing to out.
func New(locator lookup.Locator, in io.Reader, out io.Writer) *Console {
	return &Console{locator: locator, in: in, out: out}
}

// startInputReader scans lines in a goroutine so that ctx cancellation
// does not wait for the next line of input.
func startInputReader(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	inputCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(inputCh)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case inputCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
		}
	}()

	return inputCh, errCh
}

// Run loops until "exit" (any case), end of input or ctx cancellation.
// Malformed queries are reported and the loop continues.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "Enter an IP address to look up (IPv4 or IPv6), or 'exit' to quit:")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inputCh, errCh := startInputReader(ctx, c.in)
	for {
		fmt.Fprint(c.out, prompt)

		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case err := <-errCh:
			return fmt.Errorf("failed to read input: %w", err)
		case line, ok := <-inputCh:
			if !ok {
				select {
				case err := <-errCh:
					return fmt.Errorf("failed to read input: %w", err)
				default:
				}
				fmt.Fprintln(c.out)
				return nil
			}
			if c.handle(ctx, strings.TrimSpace(line)) {
				return nil
			}
		}
	}
}

// handle processes one line and reports whether the console should stop.
func (c *Console) handle(ctx context.Context, line string) bool {
	if line == "" {
		fmt.Fprintln(c.out, "Enter an IP address or 'exit'.")
		return false
	}
	if strings.EqualFold(line, "exit") {
		fmt.Fprintln(c.out, "Exiting...")
		return true
	}

	Render(c.out, c.locator.Lookup(ctx, line))
	return false
}

// Render writes a human-readable form of res.
func Render(w io.Writer, res lookup.Result) {
	switch res.Kind {
	case lookup.KindLocated:
		rec := res.Record
		fmt.Fprintf(w, "Country: %s (%s)\n", rec.CountryName, rec.CountryCode)
		fmt.Fprintf(w, "State: %s (%s)\n", rec.StateName, rec.StateCode)
		fmt.Fprintf(w, "Network: %s [%s - %s]\n", rec.Network, rec.Start, rec.End)
	case lookup.KindNotFound:
		fmt.Fprintln(w, "IP not found in the dataset.")
	default:
		if res.ErrorKind() == lookup.ErrorKindAmbiguousInput {
			fmt.Fprintln(w, "That looks like a subnet. Enter a single IP address.")
			return
		}
		fmt.Fprintf(w, "Error: %v\n", res.Err)
	}
}
