package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veribadge/veribadge-core/pkg/signer"
)

var keygenBytes int

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a random application key",
	Long: `Generate a random application key suitable for VERIBADGE_APP_KEY.

Per-version signing secrets are derived from the app key, so rotating a
key version never requires redistributing this value.`,
	Example: `  # Generate a key and export it
  export VERIBADGE_APP_KEY=$(veribadge keygen)`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if keygenBytes < signer.MinSecretLen {
			return fmt.Errorf("key must be at least %d bytes", signer.MinSecretLen)
		}
		buf := make([]byte, keygenBytes)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		fmt.Println(hex.EncodeToString(buf))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().IntVar(&keygenBytes, "bytes", 32, "Key length in bytes")
}
