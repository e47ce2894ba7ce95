// SPDX-License-Identifier: Apache-2.0

package dipchart

// ConcatenatedRowMinLen is the shortest digit run treated as several
// depth/volume records printed without separators.
const ConcatenatedRowMinLen = 15

// NumericToken is a maximal run of ASCII digits and its byte offset in the
// source text.
type NumericToken struct {
	Digits string
	Offset int
}

// Tokens is the result of a single tokenization pass.
type Tokens struct {
	Text string
	// All holds every digit run in document order.
	All []NumericToken
	// Rows holds the runs of at least ConcatenatedRowMinLen digits, in order.
	Rows []NumericToken
}

// Tokenize extracts every maximal digit run from text. No numeric
// interpretation happens here.
func Tokenize(text string) Tokens {
	toks := Tokens{Text: text}
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		tok := NumericToken{Digits: text[start:end], Offset: start}
		toks.All = append(toks.All, tok)
		if end-start >= ConcatenatedRowMinLen {
			toks.Rows = append(toks.Rows, tok)
		}
		start = -1
	}
	for i := 0; i < len(text); i++ {
		if isDigit(text[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return toks
}

// Strings returns the digit runs of All.
func (t Tokens) Strings() []string {
	out := make([]string, len(t.All))
	for i, tok := range t.All {
		out[i] = tok.Digits
	}
	return out
}

// Isolated reports whether tok is bounded by non-word characters in the
// source text, the way a regular expression \b would see it.
func (t Tokens) Isolated(tok NumericToken) bool {
	if tok.Offset > 0 && isWordChar(t.Text[tok.Offset-1]) {
		return false
	}
	end := tok.Offset + len(tok.Digits)
	if end < len(t.Text) && isWordChar(t.Text[end]) {
		return false
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordChar(c byte) bool {
	return isDigit(c) || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
