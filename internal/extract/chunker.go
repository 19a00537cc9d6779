package extract

import (
	"errors"
	"regexp"
	"strings"

	"github.com/zlynx/assistkb/internal/config"
)

// ErrNoChunks reports that filtering discarded every candidate passage.
var ErrNoChunks = errors.New("no prose chunks survived filtering")

// Chunk is one bounded passage of cleaned document text. Index reflects the
// position within the original document; filtered-out passages leave gaps,
// so indices are strictly increasing but not contiguous.
type Chunk struct {
	Index int
	Text  string
}

var (
	paragraphSep  = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd   = regexp.MustCompile(`[.!?]+[\s"')\]]`)
	sentenceBreak = regexp.MustCompile(`[.!?]+\s+`)
)

// SplitChunks splits cleaned text into passages within cfg.MaxChars,
// preferring paragraph boundaries and falling back to sentence boundaries,
// then filters out passages that do not look like prose.
func SplitChunks(text string, cfg config.ChunkConfig) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	pieces := accumulate(splitParagraphs(text), cfg.MaxChars)
	survivors := filterChunks(pieces, cfg)
	if len(survivors) == 0 {
		pieces = accumulate(splitSentences(text), cfg.MaxChars)
		survivors = filterChunks(pieces, cfg)
	}
	return survivors
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphSep.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceBreak.FindAllStringIndex(text, -1) {
		s := strings.TrimSpace(text[last:loc[1]])
		if s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		out = append(out, s)
	}
	return out
}

// accumulate packs units into a running buffer, flushing before the buffer
// would exceed max. A single unit longer than max is hard-split on word
// boundaries. Any residual over-long piece gets the same treatment.
func accumulate(units []string, max int) []string {
	var out []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, buf.String())
		buf.Reset()
	}

	for _, unit := range units {
		if len(unit) > max {
			flush()
			out = append(out, splitWords(unit, max)...)
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(unit)+2 > max {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(unit)
	}
	flush()

	// Defensive re-split: sentence units can themselves exceed max.
	final := out[:0]
	for _, piece := range out {
		if len(piece) > max {
			final = append(final, splitWords(piece, max)...)
			continue
		}
		final = append(final, piece)
	}
	return final
}

// splitWords force-splits an over-long run, cutting at the last space past
// 60% of the maximum width so words stay intact where possible.
func splitWords(s string, max int) []string {
	var out []string
	floor := max * 6 / 10
	for len(s) > max {
		cut := strings.LastIndexByte(s[:max], ' ')
		if cut < floor {
			cut = max
		}
		out = append(out, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// filterChunks assigns ordinal indices and drops passages presumed to be
// non-prose artifacts.
func filterChunks(pieces []string, cfg config.ChunkConfig) []Chunk {
	var out []Chunk
	for i, piece := range pieces {
		if !isProse(piece, cfg.MinChars) {
			continue
		}
		out = append(out, Chunk{Index: i, Text: piece})
	}
	return out
}

func isProse(s string, minChars int) bool {
	usable := strings.TrimSpace(s)
	if len(usable) <= minChars {
		return false
	}
	var alnum, letters, vowels, digits int
	for _, r := range usable {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			alnum++
			letters++
			switch r | 0x20 {
			case 'a', 'e', 'i', 'o', 'u':
				vowels++
			}
		case r >= '0' && r <= '9':
			alnum++
			digits++
		}
	}
	total := len(usable)
	if float64(alnum)/float64(total) < 0.5 {
		return false
	}
	if letters == 0 || float64(vowels)/float64(letters) < 0.2 {
		return false
	}
	if float64(digits)/float64(total) >= 0.4 {
		return false
	}
	// Prose shows sentence or paragraph structure; end-of-text counts as a
	// sentence boundary.
	if !sentenceEnd.MatchString(usable) &&
		!strings.ContainsAny(usable, "\n") &&
		!strings.HasSuffix(usable, ".") && !strings.HasSuffix(usable, "!") && !strings.HasSuffix(usable, "?") {
		return false
	}
	return true
}
