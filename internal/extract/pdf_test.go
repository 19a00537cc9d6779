package extract

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/zlynx/assistkb/internal/pkg/errors"
)

func TestExtract_TextOperators(t *testing.T) {
	data := []byte("%PDF-1.4\n1 0 obj\nBT /F1 12 Tf (Hello world from the quarterly report.) Tj ET\nendobj")
	text, err := Extract(data)
	require.NoError(t, err)
	require.Contains(t, text, "Hello world from the quarterly report.")
}

func TestExtract_ArrayTJ(t *testing.T) {
	data := []byte("%PDF-1.4\nBT [(Quar)(terly) (results follow.)] TJ ET")
	text, err := Extract(data)
	require.NoError(t, err)
	require.Contains(t, text, "Quarterly")
	require.Contains(t, text, "results follow.")
}

func TestExtract_EscapeSequences(t *testing.T) {
	data := []byte(`BT (Line one\nLine two \(quoted\) with \101 octal) Tj ET`)
	text, err := Extract(data)
	require.NoError(t, err)
	require.Contains(t, text, "Line one\nLine two (quoted) with A octal")
}

func TestExtract_FlateStream(t *testing.T) {
	content := []byte("BT (Compressed annual summary text inside a content stream.) Tj ET")
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var pdf bytes.Buffer
	fmt.Fprintf(&pdf, "%%PDF-1.4\n4 0 obj\n<< /Filter /FlateDecode /Length %d >>\nstream\n", buf.Len())
	pdf.Write(buf.Bytes())
	pdf.WriteString("\nendstream\nendobj")

	text, err := Extract(pdf.Bytes())
	require.NoError(t, err)
	require.Contains(t, text, "Compressed annual summary text")
}

func TestExtract_SkipsImageStreams(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write([]byte("BT (should not appear) Tj ET"))
	_ = w.Close()

	var pdf bytes.Buffer
	pdf.WriteString("<< /Subtype /Image /Filter /FlateDecode >>\nstream\n")
	pdf.Write(buf.Bytes())
	pdf.WriteString("\nendstream\nBT (Visible caption text for the image.) Tj ET")

	text, err := Extract(pdf.Bytes())
	require.NoError(t, err)
	require.Contains(t, text, "Visible caption text")
	require.NotContains(t, text, "should not appear")
}

func TestExtract_ReadableStringFallback(t *testing.T) {
	data := []byte("\x00\x01\x02(Payment confirmation for consulting services rendered)\x03\x04")
	text, err := Extract(data)
	require.NoError(t, err)
	require.Contains(t, text, "Payment confirmation for consulting services")
}

func TestExtract_HexStringFallback(t *testing.T) {
	// "Totals reviewed and approved" in hex pairs.
	data := []byte("\x00<546F74616C7320726576696577656420616E6420617070726F766564>\x00")
	text, err := Extract(data)
	require.NoError(t, err)
	require.Contains(t, text, "Totals reviewed and approved")
}

func TestExtract_StructuredTokenFallback(t *testing.T) {
	data := []byte("\x00\x01Invoice 12345678 total $1,234.56 due 12/31/2024\x02")
	text, err := Extract(data)
	require.NoError(t, err)
	require.Contains(t, text, "12345678")
	require.Contains(t, text, "$1,234.56")
	require.Contains(t, text, "12/31/2024")
}

func TestExtract_Unextractable(t *testing.T) {
	_, err := Extract(nil)
	require.ErrorIs(t, err, appErr.ErrUnextractable)

	junk := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x7f}, 64)
	_, err = Extract(junk)
	require.ErrorIs(t, err, appErr.ErrUnextractable)
}

func TestDecodePDFString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "named escapes", in: `a\tb\nc`, want: "a\tb\nc"},
		{name: "escaped parens", in: `\(x\)`, want: "(x)"},
		{name: "octal", in: `\110\151`, want: "Hi"},
		{name: "short octal stops at non digit", in: `\65x`, want: "5x"},
		{name: "unknown escape keeps char", in: `\q`, want: "q"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, decodePDFString(tt.in))
		})
	}
}

func TestIsReadable(t *testing.T) {
	require.True(t, isReadable("Invoice total 42"))
	require.False(t, isReadable("a+b"))
	require.False(t, isReadable("-- :: == ||"))
	require.False(t, isReadable("123456789"))
}
