// Package textutil provides transcript text utilities: label joining,
// normalization and error rates.
package textutil

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	newlineRe    = regexp.MustCompile(`[\n\r]`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
)

// NormalizeWhitespaces replaces newlines and multiple whitespace with a single space.
func NormalizeWhitespaces(text string) string {
	text = newlineRe.ReplaceAllString(text, " ")
	return multiSpaceRe.ReplaceAllString(text, " ")
}

// Normalize lowercases text, normalizes whitespace and trims it.
func Normalize(text string) string {
	return strings.TrimSpace(NormalizeWhitespaces(strings.ToLower(text)))
}

// JoinLabels concatenates decoded labels into a transcript. Every occurrence of
// wordDelimiter (e.g. "|" for wav2vec2 vocabularies) becomes a space.
func JoinLabels(labels []string, wordDelimiter string) string {
	text := strings.Join(labels, "")
	if wordDelimiter != "" {
		text = strings.ReplaceAll(text, wordDelimiter, " ")
	}
	return strings.TrimSpace(NormalizeWhitespaces(text))
}

// SplitLabels maps text onto vocabulary indices by greedy longest match.
// Spaces are written as wordDelimiter when one is set.
func SplitLabels(text string, vocab map[string]int, wordDelimiter string) ([]int, error) {
	text = strings.TrimSpace(NormalizeWhitespaces(text))
	if wordDelimiter != "" {
		text = strings.ReplaceAll(text, " ", wordDelimiter)
	}

	longest := 0
	for label := range vocab {
		longest = max(longest, len(label))
	}

	out := []int{}
	for pos := 0; pos < len(text); {
		n := min(longest, len(text)-pos)
		for ; n > 0; n-- {
			if id, ok := vocab[text[pos:pos+n]]; ok {
				out = append(out, id)
				break
			}
		}
		if n == 0 {
			return nil, fmt.Errorf("no label matches %q at offset %d", text[pos:], pos)
		}
		pos += n
	}
	return out, nil
}

func newDiffer() *diffmatchpatch.DiffMatchPatch {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return dmp
}

// CharErrors returns the character edit distance between ref and hyp.
func CharErrors(ref, hyp string) int {
	dmp := newDiffer()
	return dmp.DiffLevenshtein(dmp.DiffMain(ref, hyp, false))
}

// WordErrors returns the word edit distance between ref and hyp, and the
// number of reference words.
func WordErrors(ref, hyp string) (int, int) {
	refWords := strings.Fields(ref)
	hypWords := strings.Fields(hyp)

	// Every distinct word becomes one rune so the character diff works on words.
	ids := make(map[string]rune)
	encode := func(words []string) []rune {
		out := make([]rune, len(words))
		for i, w := range words {
			id, ok := ids[w]
			if !ok {
				id = rune(len(ids) + 1)
				ids[w] = id
			}
			out[i] = id
		}
		return out
	}
	dmp := newDiffer()
	diffs := dmp.DiffMainRunes(encode(refWords), encode(hypWords), false)
	return dmp.DiffLevenshtein(diffs), len(refWords)
}
