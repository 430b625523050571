package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_StatusVariants(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing each kind of status line
	w.Status("", "plain")
	w.Successf("wrote %s", "config.yaml")
	w.Warningf("chunk size %d raised to %d", 50, 200)

	// Then: each line carries its icon
	assert.Equal(t, "   plain\n✓ wrote config.yaml\n! chunk size 50 raised to 200\n", buf.String())
}

func TestWriter_Field_AlignsValues(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a field
	w.Field("Documents", "12")

	// Then: the value starts after the padded label
	assert.Equal(t, "Documents:           12\n", buf.String())
}

func TestWriter_Hit_CollapsesWhitespace(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a hit whose body spans lines
	w.Hit(1, "EFTA00000001  a.txt", "first line\n\n  second   line")
	w.Hit(2, "EFTA00000002", "")

	// Then: the body is a single indented line and empty bodies are omitted
	assert.Equal(t, "  1. EFTA00000001  a.txt\n     first line second line\n  2. EFTA00000002\n", buf.String())
}

func TestWriter_JSON_KeepsHTMLCharacters(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: encoding a value containing HTML characters
	require.NoError(t, w.JSON(map[string]string{"q": "<a&b>"}))

	// Then: they are not escaped
	assert.Equal(t, "{\n  \"q\": \"<a&b>\"\n}\n", buf.String())
}
