package questionbank

import (
	"encoding/json"
	"fmt"
	"sort"
)

// NamedBank is one qb.json document tagged with where it came from.
type NamedBank struct {
	Name    string
	Entries map[string]Entry
}

// DecodeEntries decodes a qb.json document without validating the entries. Values that
// do not decode as an Entry are skipped and counted.
func DecodeEntries(data []byte) (entries map[string]Entry, skipped int, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedBank, err)
	}
	if raw == nil {
		return nil, 0, ErrMalformedBank
	}
	entries = make(map[string]Entry, len(raw))
	for prompt, msg := range raw {
		var e Entry
		if err := json.Unmarshal(msg, &e); err != nil {
			skipped++
			continue
		}
		entries[prompt] = e
	}
	return entries, skipped, nil
}

// Conflict is a prompt that appears in two banks with different answers or option sets.
type Conflict struct {
	Prompt      string `json:"prompt"`
	KeptFrom    string `json:"kept_from"`
	Kept        Entry  `json:"kept"`
	DroppedFrom string `json:"dropped_from"`
	Dropped     Entry  `json:"dropped"`
}

// MergeResult is the outcome of Merge.
type MergeResult struct {
	Merged    map[string]Entry
	Conflicts []Conflict
	// Added counts, per bank name, the prompts that bank contributed first.
	Added map[string]int
}

// Merge combines banks in order. A prompt seen again with the same answer text and the
// same option set is a duplicate and keeps the most recently updated copy; anything else
// is a conflict and the first copy wins.
func Merge(banks ...NamedBank) MergeResult {
	res := MergeResult{
		Merged: make(map[string]Entry),
		Added:  make(map[string]int),
	}
	origin := make(map[string]string)

	for _, bank := range banks {
		prompts := make([]string, 0, len(bank.Entries))
		for p := range bank.Entries {
			prompts = append(prompts, p)
		}
		sort.Strings(prompts)

		for _, prompt := range prompts {
			entry := bank.Entries[prompt]
			existing, ok := res.Merged[prompt]
			if !ok {
				res.Merged[prompt] = entry
				origin[prompt] = bank.Name
				res.Added[bank.Name]++
				continue
			}
			if sameQuestion(existing, entry) {
				if entry.UpdatedAt > existing.UpdatedAt {
					res.Merged[prompt] = entry
				}
				continue
			}
			res.Conflicts = append(res.Conflicts, Conflict{
				Prompt:      prompt,
				KeptFrom:    origin[prompt],
				Kept:        existing,
				DroppedFrom: bank.Name,
				Dropped:     entry,
			})
		}
	}
	return res
}

// sameQuestion compares answers by text and options as sets.
func sameQuestion(a, b Entry) bool {
	if answerText(a) != answerText(b) {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	counts := make(map[string]int, len(a.Options))
	for _, o := range a.Options {
		counts[o]++
	}
	for _, o := range b.Options {
		if counts[o] == 0 {
			return false
		}
		counts[o]--
	}
	return true
}

func answerText(e Entry) string {
	if e.Answer < 0 || e.Answer >= len(e.Options) {
		return ""
	}
	return e.Options[e.Answer]
}
