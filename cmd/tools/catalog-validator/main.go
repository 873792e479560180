// cmd/tools/catalog-validator/main.go
//
// Validates a requirement catalog override file without starting the server.
// Exits non-zero when the file fails schema validation or contains duplicate
// entry ids, so it can gate catalog changes in CI.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"rpas-compliance/pkg/catalog"
)

func main() {
	verbose := flag.Bool("v", false, "print every entry after validation")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-v] <catalog.json>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cat, err := catalog.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	byCategory := make(map[string]int)
	always := 0
	for _, e := range cat.Entries {
		byCategory[e.Category]++
		if e.AlwaysRequired {
			always++
		}
	}

	fmt.Printf("OK: %s\n", path)
	fmt.Printf("  entries:          %d\n", len(cat.Entries))
	fmt.Printf("  always required:  %d\n", always)

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Printf("  %-16s  %d\n", c, byCategory[c])
	}

	if *verbose {
		fmt.Println()
		for _, e := range cat.Entries {
			req := "conditional"
			if e.AlwaysRequired {
				req = "always"
			}
			fmt.Printf("  %-28s  %-14s  %s\n", e.ID, e.Category, req)
		}
	}
}
