// Package dedup removes the sentence repeats speech models emit when they loop
// over silence.
//
// Sentences are found with a plain ". " split. Abbreviations, missing spaces
// after a period and other terminal punctuation (?, !) are not recognized, and
// only exact, case-sensitive repeats that follow each other are collapsed.
package dedup

import "strings"

// Delimiter separates sentence fragments, both when splitting and when joining.
const Delimiter = ". "

// Filter collapses consecutive duplicate sentences of text into one and makes
// sure a non-empty result ends with a period. Repeats that are not adjacent
// are kept. Filter is idempotent.
func Filter(text string) string {
	kept := Collapse(Split(text))

	if Join(kept) == "" {
		return ""
	}

	last := len(kept) - 1
	if !strings.HasSuffix(kept[last], ".") {
		kept[last] += "."
		// "X.. X" gains its period here and becomes a repeat of "X."
		if last > 0 && kept[last-1] == kept[last] {
			kept = kept[:last]
		}
	}
	return Join(kept)
}

// Split cuts text on Delimiter and trims every fragment.
func Split(text string) []string {
	fragments := strings.Split(text, Delimiter)
	for i, f := range fragments {
		fragments[i] = strings.TrimSpace(f)
	}
	return fragments
}

// Collapse drops every fragment equal to the last fragment kept before it.
func Collapse(fragments []string) []string {
	kept := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if len(kept) > 0 && kept[len(kept)-1] == f {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// Join glues fragments back together with Delimiter.
func Join(fragments []string) string {
	return strings.Join(fragments, Delimiter)
}
