package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_VerboseWritesDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, true).With("component", "test")
	log.Debug("parsed fragment", "id", "cart-get")

	out := buf.String()
	assert.Contains(t, out, "parsed fragment")
	assert.Contains(t, out, "id=cart-get")
	assert.Contains(t, out, "component=test")
}

func TestNew_QuietSkipsInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, false)
	log.Info("wrote file")
	log.Debug("details")
	assert.Empty(t, buf.String())

	log.Warn("duplicate example file", "name", "cart-response.json")
	assert.Contains(t, buf.String(), "duplicate example file")
}

func TestNopAndOrNop(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		l := OrNop(nil)
		l.Error("ignored", "k", "v")
		l.With("a", 1).Info("ignored")
	})
	l := Nop()
	assert.Same(t, l, OrNop(l))
}
