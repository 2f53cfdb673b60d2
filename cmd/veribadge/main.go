// Package main is the entry point for the veribadge CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "veribadge",
	Short: "Contract Verification Badge Service",
	Long: `Issues, verifies, and revokes cryptographically signed verification
badges for smart contracts. Tokens are HMAC-signed JWS artifacts with
replay protection, so a badge cannot be forged, reused, or displayed by
anyone other than the contract it was issued for.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
