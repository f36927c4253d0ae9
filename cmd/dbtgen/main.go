// Package main provides dbtgen, a generator of ACC scenario images for
// exercising the translator.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/dbtvm/benchmarks"
	"github.com/sarchlab/dbtvm/loader"
)

var (
	seed   = flag.Int64("seed", 1, "Random seed")
	loops  = flag.Int("loops", 8, "Number of back-branch loops")
	linear = flag.Int("linear", 0, "Generate a straight-line program of N instructions instead")
	out    = flag.String("o", "scenario.acc", "Output image path")
)

func main() {
	flag.Parse()

	g := benchmarks.NewGenerator(*seed)

	var prog *loader.Program
	if *linear > 0 {
		prog = g.GenerateLinear(*linear)
	} else {
		prog = g.GenerateLoops(*loops)
	}

	if err := os.WriteFile(*out, loader.Encode(prog), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing image: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s: %d code bytes, ACC=%d, LC=%d\n",
		*out, len(prog.Code), prog.InitialAcc, prog.InitialLC)
}
