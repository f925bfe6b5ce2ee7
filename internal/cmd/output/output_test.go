package output

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string `json:"name"  yaml:"name"`
	State string `json:"state" yaml:"state"`
}

type itemPrinter struct{}

func (p *itemPrinter) Header(w io.Writer, count int) {
	fmt.Fprintf(w, "%d item(s)\n", count)
}

func (p *itemPrinter) Item(w io.Writer, it item) error {
	_, err := fmt.Fprintf(w, "%s: %s\n", it.Name, it.State)
	return err
}

func (p *itemPrinter) Footer(io.Writer, int) {}

func TestJSONHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewJSONHandler[item](&buf, 2)

	require.NoError(t, h.HandleResults(item{Name: "alpha", State: "healthy"}))

	assert.JSONEq(t, `{"results":[{"name":"alpha","state":"healthy"}]}`, buf.String())
}

func TestJSONHandler_Error(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewJSONHandler[item](&buf, 0)

	require.NoError(t, h.HandleError(fmt.Errorf("boom")))
	assert.JSONEq(t, `{"error":"boom"}`, buf.String())
}

func TestYAMLHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewYAMLHandler[item](&buf, 2)

	require.NoError(t, h.HandleResults(item{Name: "alpha", State: "healthy"}))

	assert.Contains(t, buf.String(), "results:")
	assert.Contains(t, buf.String(), "name: alpha")
	assert.Contains(t, buf.String(), "state: healthy")
}

func TestTextHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewTextHandler[item](&buf, &itemPrinter{})

	require.NoError(t, h.HandleResults(
		item{Name: "alpha", State: "healthy"},
		item{Name: "beta", State: "expired"},
	))

	assert.Contains(t, buf.String(), "2 item(s)")
	assert.Contains(t, buf.String(), "alpha: healthy")
	assert.Contains(t, buf.String(), "beta: expired")
}

func TestTextHandler_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewTextHandler[item](&buf, &itemPrinter{})

	require.NoError(t, h.HandleResults())
	assert.Equal(t, "No items found\n", buf.String())
}
