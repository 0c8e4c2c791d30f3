// Package main provides the entry point for cusim.
// cusim is a two-tier page-residency simulator layered on an L1/L2 cache
// model.
//
// For the full CLI, use: go run ./cmd/cusim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("cusim - two-tier page-residency simulator")
	fmt.Println("")
	fmt.Println("Usage: cusim [options] <trace-file>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  go run ./cmd/cusim      replay a memory-access trace")
	fmt.Println("  go run ./cmd/cubench    run a synthetic workload")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/cusim' instead.")
	}
}
