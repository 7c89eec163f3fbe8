package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mcdev12/quizbattle/go/internal/battle/questionbank"
)

// ConflictReport is written next to the merged bank when prompts disagree
type ConflictReport struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Count       int                     `json:"count"`
	Conflicts   []questionbank.Conflict `json:"conflicts"`
}

func main() {
	dir := flag.String("dir", ".", "directory holding the *.json banks to merge")
	out := flag.String("out", "qb.json", "merged bank output path")
	conflictsOut := flag.String("conflicts", "conflicts.json", "conflict report output path")
	flag.Parse()

	// 1) Collect input banks; explicit args win over -dir
	paths := flag.Args()
	if len(paths) == 0 {
		var err error
		paths, err = filepath.Glob(filepath.Join(*dir, "*.json"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "glob banks: %v\n", err)
			os.Exit(1)
		}
	}
	sort.Strings(paths)

	var banks []questionbank.NamedBank
	for _, p := range paths {
		if sameFile(p, *out) || sameFile(p, *conflictsOut) {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", p, err)
			continue
		}
		entries, skipped, err := questionbank.DecodeEntries(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", p, err)
			continue
		}
		fmt.Printf("loaded %s (%d questions, %d unreadable)\n", filepath.Base(p), len(entries), skipped)
		banks = append(banks, questionbank.NamedBank{Name: filepath.Base(p), Entries: entries})
	}
	if len(banks) == 0 {
		fmt.Fprintln(os.Stderr, "no banks to merge")
		os.Exit(1)
	}

	// 2) Merge
	res := questionbank.Merge(banks...)

	// 3) Write outputs
	if err := writeJSON(*out, res.Merged); err != nil {
		fmt.Fprintf(os.Stderr, "write merged bank: %v\n", err)
		os.Exit(1)
	}
	if len(res.Conflicts) > 0 {
		report := ConflictReport{
			GeneratedAt: time.Now().UTC(),
			Count:       len(res.Conflicts),
			Conflicts:   res.Conflicts,
		}
		if err := writeJSON(*conflictsOut, report); err != nil {
			fmt.Fprintf(os.Stderr, "write conflicts: %v\n", err)
			os.Exit(1)
		}
	}

	// 4) Print summary
	for _, b := range banks {
		fmt.Printf("  %s contributed %d new questions\n", b.Name, res.Added[b.Name])
	}
	fmt.Printf(
		"Merge complete: %d banks, %d questions, %d conflicts\n",
		len(banks), len(res.Merged), len(res.Conflicts),
	)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
