package extract

import (
	"regexp"
	"strings"

	"github.com/zlynx/assistkb/internal/config"
	appErr "github.com/zlynx/assistkb/internal/pkg/errors"
)

var (
	objBlockRegex  = regexp.MustCompile(`(?s)\b\d+\s+\d+\s+obj\b.*?\bendobj\b`)
	hexRunRegex    = regexp.MustCompile(`\b[0-9A-Fa-f]{16,}\b`)
	longTokenRegex = regexp.MustCompile(`\S{40,}`)
	multiBlankLine = regexp.MustCompile(`\n{3,}`)
	spaceRunRegex  = regexp.MustCompile(`[ \t]{2,}`)
	textOpRegex    = regexp.MustCompile(`\b(?:BT|ET|Tj|TJ|Td|TD|Tm|Tf|Tc|Tw|Tz|TL|Ts|Tr|Do|cm|gs|re|rg|RG|scn|SCN|cs|CS)\b`)
)

// Structural keywords that leak into text when a stream-oriented parse hits
// dictionary data instead of content.
var structuralKeywords = []string{
	"/Filter", "/FlateDecode", "/DCTDecode", "/ASCIIHexDecode", "/Length",
	"/Type", "/Subtype", "/Pages", "/Kids", "/MediaBox", "/Parent",
	"/Resources", "/Font", "/BaseFont", "/FontDescriptor", "/Encoding",
	"/ToUnicode", "/Widths", "/XObject", "/Encrypt", "/Catalog", "/Contents",
	"xref", "startxref", "trailer",
}

// Clean normalizes extracted candidate text and rejects it when the result
// does not look like readable prose. Very short passages get a contextual
// document-name prefix before the minimum-length check so that legitimately
// tiny documents still index.
func Clean(raw, docName string, cfg config.ExtractConfig) (string, error) {
	text := stripControl(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = objBlockRegex.ReplaceAllString(text, " ")
	text = dropNoiseLines(text)
	text = textOpRegex.ReplaceAllString(text, " ")
	text = hexRunRegex.ReplaceAllString(text, " ")
	text = longTokenRegex.ReplaceAllString(text, " ")
	text = collapseRuns(text, 4)
	text = spaceRunRegex.ReplaceAllString(text, " ")
	text = multiBlankLine.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if len(text) < cfg.MinTextChars && docName != "" && text != "" {
		text = "Document: " + docName + "\n" + text
	}
	if len(text) < cfg.MinTextChars {
		return "", appErr.ErrUnreadableText
	}

	letters, vowels, digits := countClasses(text)
	total := len(text)
	if float64(letters)/float64(total) < cfg.MinLetterRatio {
		return "", appErr.ErrUnreadableText
	}
	if letters == 0 || float64(vowels)/float64(letters) < cfg.MinVowelRatio {
		return "", appErr.ErrUnreadableText
	}
	if float64(digits)/float64(total) > cfg.MaxDigitRatio {
		return "", appErr.ErrUnreadableText
	}
	return text, nil
}

// stripControl removes control characters (keeping newline and tab) and the
// Unicode replacement character.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if r < 0x20 || r == 0x7f || r == '�' {
			return -1
		}
		return r
	}, s)
}

// dropNoiseLines removes lines carrying PDF dictionary keywords, lines that
// are mostly numeric width arrays and lines made of bare graphics operands.
func dropNoiseLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if hasStructuralKeyword(line) {
			continue
		}
		if isNumericArrayLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func hasStructuralKeyword(line string) bool {
	for _, kw := range structuralKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

// isNumericArrayLine flags lines like "[ 250 500 722 611 ]" that come from
// font width tables.
func isNumericArrayLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 10 {
		return false
	}
	noise := 0
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			noise++
		case r == ' ' || r == '[' || r == ']' || r == '.' || r == '-':
			noise++
		}
	}
	return float64(noise)/float64(len(trimmed)) >= 0.9
}

// collapseRuns caps runs of the same character at max occurrences (glyph
// noise shows up as long repeats).
func collapseRuns(s string, max int) string {
	var sb strings.Builder
	sb.Grow(len(s))
	var prev rune = -1
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run > max {
				continue
			}
		} else {
			prev = r
			run = 1
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func countClasses(s string) (letters, vowels, digits int) {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letters++
			switch r | 0x20 {
			case 'a', 'e', 'i', 'o', 'u':
				vowels++
			}
		case r >= '0' && r <= '9':
			digits++
		}
	}
	return
}
