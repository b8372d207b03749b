package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/pqhybrid/internal/audit"
	"github.com/remiblancher/pqhybrid/internal/cli"
	"github.com/remiblancher/pqhybrid/pkg/cose"
	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

var coseCmd = &cobra.Command{
	Use:   "cose",
	Short: "COSE_Sign1 and CWT operations (RFC 9052, RFC 8392)",
	Long: `Sign and verify COSE_Sign1 messages and CWTs with ML-DSA, SLH-DSA or
hybrid signature keys.

Hybrid algorithms use private-use COSE algorithm identifiers in the
-70101..-70107 range.

Examples:
  # Sign arbitrary data
  pqhybrid cose sign --key sig.key --in file.txt --out signed.cbor

  # Issue a CWT valid for one hour
  pqhybrid cose sign --type cwt --key sig.key --iss https://issuer.example.com \
    --sub user-42 --exp 1h --out token.cbor

  # Verify
  pqhybrid cose verify signed.cbor --key sig.pub

  # Display message information
  pqhybrid cose info token.cbor`,
}

var coseSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Create a COSE_Sign1 message or CWT",
	Args:  cobra.NoArgs,
	RunE:  runCOSESign,
}

var coseVerifyCmd = &cobra.Command{
	Use:   "verify <message>",
	Short: "Verify a COSE_Sign1 message or CWT",
	Args:  cobra.ExactArgs(1),
	RunE:  runCOSEVerify,
}

var coseInfoCmd = &cobra.Command{
	Use:   "info <message>",
	Short: "Display COSE_Sign1 message information",
	Args:  cobra.ExactArgs(1),
	RunE:  runCOSEInfo,
}

var (
	coseSignType        string
	coseSignKey         string
	coseSignIn          string
	coseSignOut         string
	coseSignContentType string
	coseSignIssuer      string
	coseSignSubject     string
	coseSignAudience    string
	coseSignExpiration  time.Duration

	coseVerifyKey string
)

func init() {
	coseCmd.AddCommand(coseSignCmd)
	coseCmd.AddCommand(coseVerifyCmd)
	coseCmd.AddCommand(coseInfoCmd)

	flags := coseSignCmd.Flags()
	flags.StringVar(&coseSignType, "type", "sign1", "Message type: sign1, cwt")
	flags.StringVarP(&coseSignKey, "key", "k", "", "Private key file (required)")
	flags.StringVarP(&coseSignIn, "in", "i", "-", "Payload file for sign1 (default: stdin)")
	flags.StringVarP(&coseSignOut, "out", "o", "-", "Output file (default: stdout)")
	flags.StringVar(&coseSignContentType, "content-type", "", "Content type header for sign1")
	flags.StringVar(&coseSignIssuer, "iss", "", "CWT issuer claim")
	flags.StringVar(&coseSignSubject, "sub", "", "CWT subject claim")
	flags.StringVar(&coseSignAudience, "aud", "", "CWT audience claim")
	flags.DurationVar(&coseSignExpiration, "exp", 0, "CWT lifetime (e.g. 1h, 24h)")
	_ = coseSignCmd.MarkFlagRequired("key")

	coseVerifyCmd.Flags().StringVarP(&coseVerifyKey, "key", "k", "", "Public or private key file (required)")
	_ = coseVerifyCmd.MarkFlagRequired("key")
}

func runCOSESign(cmd *cobra.Command, args []string) error {
	if coseSignType != "sign1" && coseSignType != "cwt" {
		return fmt.Errorf("invalid --type %q (expected sign1 or cwt)", coseSignType)
	}

	k, err := cli.LoadKey(registry(), coseSignKey)
	if err != nil {
		return fmt.Errorf("failed to load key: %w", err)
	}
	defer k.Free()

	id, err := cli.KeyID(k)
	if err != nil {
		return err
	}
	kid, _ := hex.DecodeString(id)

	var (
		msg  []byte
		size int
	)
	if coseSignType == "cwt" {
		claims := cose.NewClaims()
		claims.Issuer = coseSignIssuer
		claims.Subject = coseSignSubject
		claims.Audience = coseSignAudience
		if coseSignExpiration > 0 {
			claims.SetExpiration(coseSignExpiration)
		}
		msg, err = cose.IssueCWT(rand.Reader, claims, k, kid)
	} else {
		var payload []byte
		payload, err = cli.ReadInput(cmd.InOrStdin(), coseSignIn)
		if err != nil {
			return err
		}
		size = len(payload)
		msg, err = cose.Sign1(rand.Reader, payload, k, &cose.MessageConfig{
			KeyID:       kid,
			ContentType: coseSignContentType,
		})
	}
	if auditErr := audit.LogSign(id, k.Algorithm().Name, size, err); auditErr != nil {
		return auditErr
	}
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	return cli.WriteOutput(cmd.OutOrStdout(), coseSignOut, msg, 0644)
}

func runCOSEVerify(cmd *cobra.Command, args []string) error {
	data, err := cli.ReadInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	k, err := cli.LoadKey(registry(), coseVerifyKey)
	if err != nil {
		return fmt.Errorf("failed to load key: %w", err)
	}
	defer k.Free()

	id, err := cli.KeyID(k)
	if err != nil {
		return err
	}

	msg, err := cose.Verify1(data, k, nil)
	if auditErr := audit.LogVerify(id, k.Algorithm().Name, len(data), err); auditErr != nil {
		return auditErr
	}

	out := cmd.OutOrStdout()
	var ve *crypto.VerificationError
	if errors.As(err, &ve) {
		fmt.Fprintf(out, "Signature: %s (%s component)\n", cli.FormatStatus("invalid"), ve.Component)
		return fmt.Errorf("signature verification failed: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to verify: %w", err)
	}

	fmt.Fprintf(out, "Signature: %s (%s)\n", cli.FormatStatus("valid"), msg.AlgorithmName())
	if msg.Claims != nil {
		if err := msg.Claims.ValidateAt(time.Now()); err != nil {
			fmt.Fprintf(out, "Claims:    %s\n", cli.FormatStatus("expired"))
			return err
		}
		fmt.Fprintf(out, "Claims:    %s\n", cli.FormatStatus("valid"))
	}
	return nil
}

func runCOSEInfo(cmd *cobra.Command, args []string) error {
	data, err := cli.ReadInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	msg, err := cose.Parse(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "COSE_Sign1 Message:")
	fmt.Fprintf(out, "  Algorithm:    %s (%d)\n", msg.AlgorithmName(), int64(msg.Algorithm))
	if len(msg.KeyID) > 0 {
		fmt.Fprintf(out, "  Key ID:       %x\n", msg.KeyID)
	}
	if msg.ContentType != "" {
		fmt.Fprintf(out, "  Content-Type: %s\n", msg.ContentType)
	}
	fmt.Fprintf(out, "  Payload:      %d bytes\n", len(msg.Payload))
	fmt.Fprintf(out, "  Signature:    %d bytes\n", len(msg.Signature))

	if c := msg.Claims; c != nil {
		fmt.Fprintln(out, "\nCWT Claims:")
		printClaim(out, "Issuer", c.Issuer)
		printClaim(out, "Subject", c.Subject)
		printClaim(out, "Audience", c.Audience)
		printTime(out, "Issued At", c.IssuedAt)
		printTime(out, "Not Before", c.NotBefore)
		printTime(out, "Expires", c.Expiration)
		if len(c.CWTID) > 0 {
			fmt.Fprintf(out, "  %-12s %x\n", "CWT ID:", c.CWTID)
		}
	}
	return nil
}

func printClaim(out io.Writer, label, value string) {
	if value != "" {
		fmt.Fprintf(out, "  %-12s %s\n", label+":", value)
	}
}

func printTime(out io.Writer, label string, t time.Time) {
	if !t.IsZero() {
		fmt.Fprintf(out, "  %-12s %s\n", label+":", t.Format(time.RFC3339))
	}
}
