package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remiblancher/pqhybrid/internal/audit"
	"github.com/remiblancher/pqhybrid/internal/cli"
	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a message",
	Long: `Sign a message with a signature or hybrid signature key.

A hybrid signature is u32be(L) || classical signature (L bytes) || PQ
signature. The classical component signs a digest of the message sized to
the algorithm security level; the PQ component signs the message itself.

Examples:
  pqhybrid sign --key sig.key --in doc.txt --out doc.sig
  cat doc.txt | pqhybrid sign --key sig.key --base64 > doc.sig.b64
  pqhybrid sign --key sig.key --in doc.txt --context "app v1" --out doc.sig`,
	Args: cobra.NoArgs,
	RunE: runSign,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a signature",
	Long: `Verify a signature with a public or private key file.

Both components of a hybrid signature must verify. On failure the
component that did not verify is reported (classical first).

Examples:
  pqhybrid verify --key sig.pub --in doc.txt --sig doc.sig`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var (
	signKey     string
	signIn      string
	signOut     string
	signContext string
	signBase64  bool

	verifyKey     string
	verifyIn      string
	verifySig     string
	verifyContext string
	verifyBase64  bool
)

func init() {
	flags := signCmd.Flags()
	flags.StringVarP(&signKey, "key", "k", "", "Private key file (required)")
	flags.StringVarP(&signIn, "in", "i", "-", "Message file (default: stdin)")
	flags.StringVarP(&signOut, "out", "o", "-", "Signature output file (default: stdout)")
	flags.StringVar(&signContext, "context", "", "Context string bound to the PQ signature")
	flags.BoolVar(&signBase64, "base64", false, "Write the signature base64 encoded")
	_ = signCmd.MarkFlagRequired("key")

	flags = verifyCmd.Flags()
	flags.StringVarP(&verifyKey, "key", "k", "", "Public or private key file (required)")
	flags.StringVarP(&verifyIn, "in", "i", "-", "Message file (default: stdin)")
	flags.StringVarP(&verifySig, "sig", "s", "", "Signature file (required)")
	flags.StringVar(&verifyContext, "context", "", "Context string used when signing")
	flags.BoolVar(&verifyBase64, "base64", false, "Signature file is base64 encoded")
	_ = verifyCmd.MarkFlagRequired("key")
	_ = verifyCmd.MarkFlagRequired("sig")
}

func signOptions(context string) *crypto.SignOpts {
	if context == "" {
		return nil
	}
	return &crypto.SignOpts{Context: []byte(context)}
}

func runSign(cmd *cobra.Command, args []string) error {
	k, err := cli.LoadKey(registry(), signKey)
	if err != nil {
		return fmt.Errorf("failed to load key: %w", err)
	}
	defer k.Free()

	msg, err := cli.ReadInput(cmd.InOrStdin(), signIn)
	if err != nil {
		return err
	}

	id, err := cli.KeyID(k)
	if err != nil {
		return err
	}
	alg := k.Algorithm().Name

	sig, err := k.Sign(rand.Reader, msg, signOptions(signContext))
	if auditErr := audit.LogSign(id, alg, len(msg), err); auditErr != nil {
		return auditErr
	}
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	logger.Debug("message signed", slog.String("algorithm", alg), slog.Int("signature_size", len(sig)))

	if signBase64 {
		sig = []byte(base64.StdEncoding.EncodeToString(sig) + "\n")
	}
	return cli.WriteOutput(cmd.OutOrStdout(), signOut, sig, 0644)
}

func runVerify(cmd *cobra.Command, args []string) error {
	k, err := cli.LoadKey(registry(), verifyKey)
	if err != nil {
		return fmt.Errorf("failed to load key: %w", err)
	}
	defer k.Free()

	msg, err := cli.ReadInput(cmd.InOrStdin(), verifyIn)
	if err != nil {
		return err
	}
	sig, err := cli.ReadInput(cmd.InOrStdin(), verifySig)
	if err != nil {
		return err
	}
	if verifyBase64 {
		sig, err = base64.StdEncoding.DecodeString(strings.TrimSpace(string(sig)))
		if err != nil {
			return fmt.Errorf("invalid base64 signature: %w", err)
		}
	}

	id, err := cli.KeyID(k)
	if err != nil {
		return err
	}
	alg := k.Algorithm().Name

	err = k.Verify(msg, sig, signOptions(verifyContext))
	if auditErr := audit.LogVerify(id, alg, len(msg), err); auditErr != nil {
		return auditErr
	}

	out := cmd.OutOrStdout()
	var ve *crypto.VerificationError
	switch {
	case err == nil:
		fmt.Fprintf(out, "Signature: %s (%s)\n", cli.FormatStatus("valid"), alg)
		return nil
	case errors.As(err, &ve):
		fmt.Fprintf(out, "Signature: %s (%s component)\n", cli.FormatStatus("invalid"), ve.Component)
		return fmt.Errorf("signature verification failed: %w", err)
	default:
		return fmt.Errorf("failed to verify: %w", err)
	}
}
