// Package main provides the entry point for dbtvm.
// dbtvm is a dynamic binary translator for the ACC guest ISA: it interprets
// guest basic blocks and transparently upgrades hot ones to compiled
// routines.
//
// For the full CLI, use: go run ./cmd/dbtvm
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("dbtvm - ACC dynamic binary translator")
	fmt.Println("")
	fmt.Println("Usage: dbtvm [options] <program.acc>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -threshold  Interpreted executions before a block is compiled")
	fmt.Println("  -timing     Enable the timing model")
	fmt.Println("  -profile    Persist block heat across runs")
	fmt.Println("  -v          Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/dbtvm' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/dbtvm' instead.")
	}
}
