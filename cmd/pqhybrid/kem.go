package main

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remiblancher/pqhybrid/internal/audit"
	"github.com/remiblancher/pqhybrid/internal/cli"
	"github.com/remiblancher/pqhybrid/pkg/engine"
)

var kemCmd = &cobra.Command{
	Use:   "kem",
	Short: "Key encapsulation commands",
	Long: `Encapsulate and decapsulate shared secrets with KEM or hybrid KEM keys.

For a hybrid key the ciphertext is the classical ephemeral public key
followed by the ML-KEM ciphertext, and the shared secret is the classical
ECDH secret followed by the ML-KEM secret. X25519MLKEM768 carries the
ML-KEM parts first.`,
}

var kemEncapsCmd = &cobra.Command{
	Use:   "encaps",
	Short: "Encapsulate a fresh shared secret",
	Long: `Encapsulate a fresh shared secret to a public key.

Examples:
  pqhybrid kem encaps --key kem.pub --ct-out ct.bin --ss-out ss.bin`,
	Args: cobra.NoArgs,
	RunE: runKEMEncaps,
}

var kemDecapsCmd = &cobra.Command{
	Use:   "decaps",
	Short: "Recover a shared secret from a ciphertext",
	Long: `Recover the shared secret from a ciphertext with the private key.

Examples:
  pqhybrid kem decaps --key kem.key --in ct.bin --out ss.bin`,
	Args: cobra.NoArgs,
	RunE: runKEMDecaps,
}

var (
	kemEncapsKey   string
	kemEncapsCTOut string
	kemEncapsSSOut string

	kemDecapsKey string
	kemDecapsIn  string
	kemDecapsOut string
)

func init() {
	kemCmd.AddCommand(kemEncapsCmd)
	kemCmd.AddCommand(kemDecapsCmd)

	flags := kemEncapsCmd.Flags()
	flags.StringVarP(&kemEncapsKey, "key", "k", "", "Public or private key file (required)")
	flags.StringVar(&kemEncapsCTOut, "ct-out", "", "Ciphertext output file (required)")
	flags.StringVar(&kemEncapsSSOut, "ss-out", "", "Shared secret output file (required)")
	_ = kemEncapsCmd.MarkFlagRequired("key")
	_ = kemEncapsCmd.MarkFlagRequired("ct-out")
	_ = kemEncapsCmd.MarkFlagRequired("ss-out")

	flags = kemDecapsCmd.Flags()
	flags.StringVarP(&kemDecapsKey, "key", "k", "", "Private key file (required)")
	flags.StringVarP(&kemDecapsIn, "in", "i", "-", "Ciphertext file (default: stdin)")
	flags.StringVarP(&kemDecapsOut, "out", "o", "", "Shared secret output file (required)")
	_ = kemDecapsCmd.MarkFlagRequired("key")
	_ = kemDecapsCmd.MarkFlagRequired("out")
}

func runKEMEncaps(cmd *cobra.Command, args []string) error {
	if kemEncapsSSOut == cli.Stdio {
		return fmt.Errorf("refusing to write a shared secret to stdout")
	}
	k, err := cli.LoadKey(registry(), kemEncapsKey)
	if err != nil {
		return fmt.Errorf("failed to load key: %w", err)
	}
	defer k.Free()

	id, err := cli.KeyID(k)
	if err != nil {
		return err
	}
	alg := k.Algorithm().Name

	ct, ss, err := k.Encapsulate(rand.Reader)
	if auditErr := audit.LogEncapsulate(id, alg, err); auditErr != nil {
		return auditErr
	}
	if err != nil {
		return fmt.Errorf("failed to encapsulate: %w", err)
	}
	defer engine.Zeroize(ss)

	if err := cli.WriteOutput(cmd.OutOrStdout(), kemEncapsCTOut, ct, 0644); err != nil {
		return err
	}
	if err := cli.WriteOutput(cmd.OutOrStdout(), kemEncapsSSOut, ss, 0600); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Encapsulated %d-byte secret in %d-byte ciphertext (%s)\n", len(ss), len(ct), alg)
	return nil
}

func runKEMDecaps(cmd *cobra.Command, args []string) error {
	if kemDecapsOut == cli.Stdio {
		return fmt.Errorf("refusing to write a shared secret to stdout")
	}
	k, err := cli.LoadKey(registry(), kemDecapsKey)
	if err != nil {
		return fmt.Errorf("failed to load key: %w", err)
	}
	defer k.Free()

	ct, err := cli.ReadInput(cmd.InOrStdin(), kemDecapsIn)
	if err != nil {
		return err
	}

	id, err := cli.KeyID(k)
	if err != nil {
		return err
	}
	alg := k.Algorithm().Name

	ss, err := k.Decapsulate(ct)
	if auditErr := audit.LogDecapsulate(id, alg, len(ct), err); auditErr != nil {
		return auditErr
	}
	if err != nil {
		return fmt.Errorf("failed to decapsulate: %w", err)
	}
	defer engine.Zeroize(ss)

	return cli.WriteOutput(cmd.OutOrStdout(), kemDecapsOut, ss, 0600)
}
