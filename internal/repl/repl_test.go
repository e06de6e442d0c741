package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/TomasB/geoalloc/internal/data"
	"github.com/TomasB/geoalloc/internal/lookup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newConsole(t *testing.T, input string) (*Console, *bytes.Buffer) {
	t.Helper()
	store := data.NewAllocationStore(data.NewMemoryBackend())
	_, err := store.Load(context.Background(), []string{
		"network,a,b,country_code,country_name,state_code,state_name",
		"203.0.113.0/24,0,0,US,United States,CA,California",
	})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return New(lookup.NewService(store), strings.NewReader(input), out), out
}

func TestConsole_Session(t *testing.T) {
	defer goleak.VerifyNone(t)

	c, out := newConsole(t, strings.Join([]string{
		"203.0.113.5",
		"",
		"203.0.113.0/24",
		"999.1.1.1",
		"8.8.8.8",
		"EXIT",
		"203.0.113.6",
	}, "\n"))

	require.NoError(t, c.Run(context.Background()))

	got := out.String()
	assert.Contains(t, got, "Country: United States (US)")
	assert.Contains(t, got, "State: California (CA)")
	assert.Contains(t, got, "Network: 203.0.113.0/24 [203.0.113.0 - 203.0.113.255]")
	assert.Contains(t, got, "Enter an IP address or 'exit'.")
	assert.Contains(t, got, "That looks like a subnet. Enter a single IP address.")
	assert.Contains(t, got, "Error: invalid IP address")
	assert.Contains(t, got, "IP not found in the dataset.")
	assert.Contains(t, got, "Exiting...")
	// input after exit is never processed
	assert.Equal(t, 1, strings.Count(got, "Country:"))
}

func TestConsole_EndOfInput(t *testing.T) {
	c, out := newConsole(t, "203.0.113.5\n")

	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "Country: United States (US)")
	assert.NotContains(t, out.String(), "Exiting...")
}

func TestConsole_ContextCancelled(t *testing.T) {
	// the reader goroutine exits once the pipe is closed
	defer goleak.VerifyNone(t)

	pr, pw := io.Pipe()
	defer pw.Close()

	store := data.NewAllocationStore(data.NewMemoryBackend())
	c := New(lookup.NewService(store), pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.Run(ctx))
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("tty gone") }

func TestConsole_ReadError(t *testing.T) {
	store := data.NewAllocationStore(data.NewMemoryBackend())
	c := New(lookup.NewService(store), errReader{}, io.Discard)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tty gone")
}
