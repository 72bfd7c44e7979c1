package voice

import (
	"regexp"
	"strings"
	"unicode"
)

// Agent lines come from templates and CRM-fed slots, so the markup that can
// reach synthesis is narrow: markdown links and bare URLs from listing notes,
// plus emphasis and bullet glyphs in imported descriptions.
var (
	markdownLinkExpr = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	bareURLExpr      = regexp.MustCompile(`https?://\S+`)
)

type speechRuneClass int

const (
	speechRuneKeep speechRuneClass = iota
	speechRuneBreak
	speechRuneDrop
)

// SanitizeSpeechText reduces agent text to what reads naturally aloud.
// Links collapse to their label, URLs disappear, and markup or symbol
// glyphs either vanish or become a word break.
func SanitizeSpeechText(raw string) string {
	raw = markdownLinkExpr.ReplaceAllString(raw, "$1")
	raw = bareURLExpr.ReplaceAllString(raw, " ")

	var b strings.Builder
	b.Grow(len(raw))
	pendingSpace := false
	for _, r := range raw {
		switch classifySpeechRune(r) {
		case speechRuneDrop:
		case speechRuneBreak:
			if b.Len() > 0 {
				pendingSpace = true
			}
		case speechRuneKeep:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func classifySpeechRune(r rune) speechRuneClass {
	switch {
	case unicode.IsSpace(r):
		return speechRuneBreak
	case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
		// Emoji joiners and modifiers, invisible on their own.
		return speechRuneDrop
	case unicode.IsControl(r):
		return speechRuneDrop
	case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
		// Emoji and symbol glyphs sound wrong spoken aloud.
		return speechRuneDrop
	case isSpokenPunctuation(r):
		return speechRuneKeep
	case unicode.IsPunct(r):
		// Emphasis markers, bullets, heading glyphs: a word break, not speech.
		return speechRuneBreak
	default:
		return speechRuneKeep
	}
}

func isSpokenPunctuation(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', '\'', '"', '-', '(', ')':
		return true
	}
	return false
}
