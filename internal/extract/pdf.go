package extract

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"io"
	"regexp"
	"strconv"
	"strings"

	appErr "github.com/zlynx/assistkb/internal/pkg/errors"
)

// Extract pulls best-effort plain text out of raw PDF bytes. There is no
// real PDF parser here: a set of fallback heuristics scan the binary
// structure directly, and later strategies only run while the combined
// output stays meager. Callers must pass the result through Clean before
// trusting it.
func Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", appErr.ErrUnextractable
	}

	var parts []string
	if s := extractTextOperators(data); s != "" {
		parts = append(parts, s)
	}
	if s := extractFlateStreams(data); s != "" {
		parts = append(parts, s)
	}
	if combinedLen(parts) < minStrategyChars {
		if s := extractReadableStrings(data); s != "" {
			parts = append(parts, s)
		}
	}
	if combinedLen(parts) < minStrategyChars {
		if s := extractStructuredTokens(data); s != "" {
			parts = append(parts, s)
		}
	}

	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return "", appErr.ErrUnextractable
	}
	return text, nil
}

// Below this many characters the next fallback strategy is still tried.
const minStrategyChars = 100

var (
	btEtRegex      = regexp.MustCompile(`(?s)BT(.*?)ET`)
	literalTjRegex = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)\s*(?:Tj|'|")`)
	arrayTJRegex   = regexp.MustCompile(`(?s)\[((?:\\.|[^\\\]])*)\]\s*TJ`)
	parenRegex     = regexp.MustCompile(`\(((?:\\.|[^\\()])+)\)`)
	hexStrRegex    = regexp.MustCompile(`<([0-9A-Fa-f]{8,})>`)
	streamRegex    = regexp.MustCompile(`(?s)<<([^<>]*(?:<<[^<>]*>>[^<>]*)*)>>\s*stream\r?\n`)
)

// extractTextOperators walks BT...ET text blocks and pulls the literal
// strings fed to text-show operators, decoding PDF escape sequences.
func extractTextOperators(data []byte) string {
	var out []string
	for _, block := range btEtRegex.FindAllSubmatch(data, -1) {
		body := block[1]
		for _, m := range literalTjRegex.FindAllSubmatch(body, -1) {
			if s := decodePDFString(string(m[1])); s != "" {
				out = append(out, s)
			}
		}
		for _, m := range arrayTJRegex.FindAllSubmatch(body, -1) {
			var sb strings.Builder
			for _, elem := range parenRegex.FindAllSubmatch(m[1], -1) {
				sb.WriteString(decodePDFString(string(elem[1])))
			}
			if sb.Len() > 0 {
				out = append(out, sb.String())
			}
		}
	}
	return strings.TrimSpace(strings.Join(out, " "))
}

// extractFlateStreams locates deflate-compressed stream objects, inflates
// them and re-runs the operator scan plus a generic string scan on the
// recovered bytes. Image streams are skipped.
func extractFlateStreams(data []byte) string {
	var out []string
	locs := streamRegex.FindAllSubmatchIndex(data, -1)
	for _, loc := range locs {
		dict := data[loc[2]:loc[3]]
		if !bytes.Contains(dict, []byte("FlateDecode")) {
			continue
		}
		if bytes.Contains(dict, []byte("/Image")) {
			continue
		}
		start := loc[1]
		end := bytes.Index(data[start:], []byte("endstream"))
		if end < 0 {
			continue
		}
		raw := bytes.TrimRight(data[start:start+end], "\r\n")
		inflated := inflate(raw)
		if len(inflated) == 0 {
			continue
		}
		if s := extractTextOperators(inflated); s != "" {
			out = append(out, s)
		}
		for _, m := range parenRegex.FindAllSubmatch(inflated, -1) {
			s := decodePDFString(string(m[1]))
			if isReadable(s) {
				out = append(out, s)
			}
		}
	}
	return strings.TrimSpace(strings.Join(out, " "))
}

// inflate tries standard zlib first, then a raw deflate stream. Truncated
// input is tolerated: whatever decompressed before the error is kept.
func inflate(data []byte) []byte {
	if r, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
		out, _ := io.ReadAll(r)
		r.Close()
		if len(out) > 0 {
			return out
		}
	}
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, _ := io.ReadAll(r)
	return out
}

// extractReadableStrings scans the whole byte stream for parenthesis or
// angle-bracket hex strings that look like human text.
func extractReadableStrings(data []byte) string {
	var out []string
	for _, m := range parenRegex.FindAllSubmatch(data, -1) {
		s := decodePDFString(string(m[1]))
		if isReadable(s) {
			out = append(out, s)
		}
	}
	for _, m := range hexStrRegex.FindAllSubmatch(data, -1) {
		s := decodeHexString(string(m[1]))
		if isReadable(s) {
			out = append(out, s)
		}
	}
	return strings.TrimSpace(strings.Join(out, " "))
}

var structuredPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d{1,2})?`),
	regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b`),
	regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`),
	regexp.MustCompile(`\b\d{6,}\b`),
	regexp.MustCompile(`\+?\d{1,3}[-.\s]\(?\d{2,4}\)?[-.\s]\d{3,4}[-.\s]?\d{0,4}`),
	regexp.MustCompile(`(?i)\b(?:invoice|receipt|total|amount|balance|date|due|paid|account|statement|summary|report|reference|order|customer|page)\b`),
}

// extractStructuredTokens is the last-resort net: generic structured tokens
// (amounts, dates, long digit groups, phone shapes, common keywords) pulled
// from anywhere in the file.
func extractStructuredTokens(data []byte) string {
	seen := make(map[string]bool)
	var out []string
	for _, re := range structuredPatterns {
		for _, m := range re.FindAll(data, -1) {
			token := strings.TrimSpace(string(m))
			if token == "" || seen[token] {
				continue
			}
			seen[token] = true
			out = append(out, token)
		}
	}
	return strings.Join(out, " ")
}

// decodePDFString resolves the escape sequences allowed inside literal
// parenthesis strings: named control escapes, escaped delimiters and
// 1-3 digit octal codes.
func decodePDFString(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' || i+1 >= len(s) {
			sb.WriteByte(ch)
			continue
		}
		i++
		switch next := s[i]; next {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '(', ')', '\\':
			sb.WriteByte(next)
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j-i < 3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			if code, err := strconv.ParseUint(s[i:j], 8, 16); err == nil && code < 256 {
				sb.WriteByte(byte(code))
			}
			i = j - 1
		default:
			sb.WriteByte(next)
		}
	}
	return sb.String()
}

// decodeHexString decodes byte pairs, keeping printable ASCII only.
func decodeHexString(s string) string {
	var sb strings.Builder
	for i := 0; i+1 < len(s); i += 2 {
		code, err := strconv.ParseUint(s[i:i+2], 16, 8)
		if err != nil {
			continue
		}
		if code >= 0x20 && code < 0x7f {
			sb.WriteByte(byte(code))
		}
	}
	return sb.String()
}

// isReadable accepts strings whose alphanumeric share exceeds 0.4 and that
// contain at least one letter.
func isReadable(s string) bool {
	if len(s) < 4 {
		return false
	}
	var alnum, letters int
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			alnum++
			letters++
		case r >= '0' && r <= '9':
			alnum++
		}
	}
	return letters > 0 && float64(alnum)/float64(len(s)) > 0.4
}

func combinedLen(parts []string) int {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	return total
}
