// Command bytestuff is the byte-stuffer CLI (spec.md §6): it reads stdin,
// writes stdout, takes no arguments, and exits non-zero on any stdio
// error so the RETR pipeline's parent can treat a failing child as a
// truncated body.
package main

import (
	"fmt"
	"os"

	"github.com/infodancer/popd/internal/bytestuff"
)

func main() {
	if err := bytestuff.Stuff(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "bytestuff:", err)
		os.Exit(1)
	}
}
