package cli

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	reader := NewNonBlockingReader(strings.NewReader("hello world\nsecond\n"))
	ctx := context.Background()

	line, err := reader.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello world", line)

	line, err = reader.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", line)
}

func TestReadLineTrimsWhitespace(t *testing.T) {
	reader := NewNonBlockingReader(strings.NewReader("  spaced  \n"))

	line, err := reader.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "spaced", line)
}

func TestReadStringCancellation(t *testing.T) {
	// A pipe with no writer never produces input, so only cancellation can
	// unblock the read.
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	reader := NewNonBlockingReader(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := reader.ReadString(ctx, '\n')
	assert.ErrorIs(t, err, ErrInputCancelled)
}

func TestNewNonBlockingReaderPanicsOnNil(t *testing.T) {
	assert.Panics(t, func() {
		NewNonBlockingReader(nil)
	})
}
