package main

import (
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/remiblancher/pqhybrid/internal/audit"
	"github.com/remiblancher/pqhybrid/internal/cli"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Key management commands",
	Long:  `Commands for generating and inspecting hybrid keys.`,
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a key pair",
	Long: `Generate a new key pair and write it as a PKCS #8 PEM file.

Without --algorithm the configured default algorithm is used.
Run "pqhybrid algs" for the full list.

Examples:
  pqhybrid key gen --algorithm p384_mldsa65 --out sig.key
  pqhybrid key gen --algorithm X25519MLKEM768 --out kem.key --pub-out kem.pub`,
	Args: cobra.NoArgs,
	RunE: runKeyGen,
}

var keyPubCmd = &cobra.Command{
	Use:   "pub",
	Short: "Extract public key from private key",
	Long: `Extract the public key from a private key file.

The output is a PEM-encoded SubjectPublicKeyInfo that can be shared freely.

Examples:
  pqhybrid key pub --key kem.key --out kem.pub`,
	Args: cobra.NoArgs,
	RunE: runKeyPub,
}

var keyInfoCmd = &cobra.Command{
	Use:   "info <keyfile>",
	Short: "Display information about a key",
	Long: `Display the algorithm, components and sizes of a PEM or DER key file.

Examples:
  pqhybrid key info sig.key`,
	Args: cobra.ExactArgs(1),
	RunE: runKeyInfo,
}

var (
	keyGenAlgorithm string
	keyGenOutput    string
	keyGenPubOutput string

	keyPubKey string
	keyPubOut string
)

func init() {
	keyCmd.AddCommand(keyGenCmd)
	keyCmd.AddCommand(keyPubCmd)
	keyCmd.AddCommand(keyInfoCmd)

	flags := keyGenCmd.Flags()
	flags.StringVarP(&keyGenAlgorithm, "algorithm", "a", "", "Key algorithm (default from config)")
	flags.StringVarP(&keyGenOutput, "out", "o", "", "Private key output file (required)")
	flags.StringVar(&keyGenPubOutput, "pub-out", "", "Also write the public key to this file")
	_ = keyGenCmd.MarkFlagRequired("out")

	flags = keyPubCmd.Flags()
	flags.StringVarP(&keyPubKey, "key", "k", "", "Private key file (required)")
	flags.StringVarP(&keyPubOut, "out", "o", "", "Output file (default: stdout)")
	_ = keyPubCmd.MarkFlagRequired("key")
}

func runKeyGen(cmd *cobra.Command, args []string) error {
	alg := algorithmOrDefault(keyGenAlgorithm)

	k, err := registry().Generate(rand.Reader, alg)
	if err != nil {
		_ = audit.LogKeyGenerated("", alg, err)
		return fmt.Errorf("failed to generate key: %w", err)
	}
	defer k.Free()

	id, err := cli.KeyID(k)
	if err != nil {
		return err
	}
	if err := audit.LogKeyGenerated(id, alg, nil); err != nil {
		return err
	}

	if err := cli.SaveKey(cmd.OutOrStdout(), keyGenOutput, k, true); err != nil {
		return fmt.Errorf("failed to save private key: %w", err)
	}
	if err := audit.LogKeyExported(id, keyGenOutput, alg, true); err != nil {
		return err
	}
	if keyGenPubOutput != "" {
		if err := cli.SaveKey(cmd.OutOrStdout(), keyGenPubOutput, k, false); err != nil {
			return fmt.Errorf("failed to save public key: %w", err)
		}
	}

	logger.Info("key generated", slog.String("algorithm", alg), slog.String("key_id", id))
	fmt.Fprintf(cmd.OutOrStdout(), "Key generated: %s (%s)\n", keyGenOutput, alg)
	fmt.Fprintf(cmd.OutOrStdout(), "  Key ID: %s\n", id)
	return nil
}

func runKeyPub(cmd *cobra.Command, args []string) error {
	k, err := cli.LoadKey(registry(), keyPubKey)
	if err != nil {
		return fmt.Errorf("failed to load key: %w", err)
	}
	defer k.Free()

	id, err := cli.KeyID(k)
	if err != nil {
		return err
	}
	_ = audit.LogKeyImported(id, keyPubKey, k.Algorithm().Name, k.HasPrivate(), nil)

	if err := cli.SaveKey(cmd.OutOrStdout(), keyPubOut, k, false); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	if keyPubOut != "" && keyPubOut != cli.Stdio {
		return audit.LogKeyExported(id, keyPubOut, k.Algorithm().Name, false)
	}
	return nil
}

func runKeyInfo(cmd *cobra.Command, args []string) error {
	k, err := cli.LoadKey(registry(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load key: %w", err)
	}
	defer k.Free()

	d := k.Algorithm()
	id, err := cli.KeyID(k)
	if err != nil {
		return err
	}

	status := "public-only"
	if k.HasPrivate() {
		status = "ok"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Key: %s\n", args[0])
	fmt.Fprintf(out, "  Key ID:         %s\n", id)
	fmt.Fprintf(out, "  Algorithm:      %s\n", d.Name)
	fmt.Fprintf(out, "  OID:            %s\n", d.OID)
	fmt.Fprintf(out, "  Category:       %s\n", d.Category)
	fmt.Fprintf(out, "  Security level: %d (%d-bit)\n", d.SecurityLevel, d.BitSecurity)
	fmt.Fprintf(out, "  Components:     %d\n", k.ComponentCount())
	if d.IsHybrid() {
		fmt.Fprintf(out, "  Classical:      %d-byte public component\n", len(k.PublicComponent(k.ClassicalIndex())))
	}
	fmt.Fprintf(out, "  Post-quantum:   %d-byte public component\n", len(k.PublicComponent(k.PQIndex())))
	if k.ReverseShare() {
		fmt.Fprintln(out, "  Share order:    post-quantum first")
	}
	fmt.Fprintf(out, "  Private key:    %s\n", cli.FormatStatus(status))

	if d.IsSignature() {
		size, err := k.SignatureSize()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  Signature size: up to %d bytes\n", size)
	}
	if d.IsKEM() {
		ctLen, ssLen, err := k.EncapsulationSizes()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  Ciphertext:     up to %d bytes\n", ctLen)
		fmt.Fprintf(out, "  Shared secret:  up to %d bytes\n", ssLen)
	}
	return nil
}
