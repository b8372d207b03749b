// Command pqhybrid is the CLI for hybrid post-quantum keys: generation,
// signatures, key encapsulation, COSE messages and the REST server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/pqhybrid/internal/audit"
	"github.com/remiblancher/pqhybrid/internal/config"
	"github.com/remiblancher/pqhybrid/internal/logging"
	"github.com/remiblancher/pqhybrid/pkg/crypto"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath   string
	auditLogPath string
	logLevel     string
	logFormat    string
)

// Resolved by PersistentPreRunE.
var (
	cfg    = config.Default()
	logger = logging.Discard()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		_ = audit.Close()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pqhybrid",
	Short: "Hybrid post-quantum key toolkit",
	Long: `pqhybrid generates and uses hybrid keys that pair a classical algorithm
(ECDH, ECDSA, RSA-PSS) with a NIST post-quantum scheme (ML-KEM, ML-DSA,
SLH-DSA). Pure post-quantum algorithms are supported as well.

A hybrid signature only verifies when both components verify. A hybrid KEM
shared secret is the concatenation of both component secrets.

Examples:
  # List supported algorithms
  pqhybrid algs

  # Generate a hybrid signature key and sign a file
  pqhybrid key gen --algorithm p256_mldsa44 --out sig.key
  pqhybrid sign --key sig.key --in doc.txt --out doc.sig
  pqhybrid verify --key sig.key --in doc.txt --sig doc.sig

  # Hybrid key agreement
  pqhybrid key gen --algorithm X25519MLKEM768 --out kem.key
  pqhybrid key pub --key kem.key --out kem.pub
  pqhybrid kem encaps --key kem.pub --ct-out ct.bin --ss-out ss.bin
  pqhybrid kem decaps --key kem.key --in ct.bin --out ss.bin

  # Serve the REST API
  pqhybrid serve --port 8443`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c := config.Default()
		if configPath == "" {
			configPath = os.Getenv("PQHYBRID_CONFIG")
		}
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			c = loaded
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		if logFormat != "" {
			c.Log.Format = logFormat
		}
		l, err := logging.New(cmd.ErrOrStderr(), c.Log)
		if err != nil {
			return err
		}
		cfg, logger = c, l

		// Check for audit log path from environment if not set via flag
		if auditLogPath == "" {
			auditLogPath = os.Getenv("PQHYBRID_AUDIT_LOG")
		}
		if auditLogPath == "" {
			auditLogPath = c.AuditLog
		}
		if auditLogPath != "" {
			if err := audit.InitFile(auditLogPath); err != nil {
				return fmt.Errorf("failed to initialize audit log: %w", err)
			}
			logger.Debug("audit log enabled", slog.String("path", auditLogPath))
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return audit.Close()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to YAML config file (or set PQHYBRID_CONFIG)")
	flags.StringVar(&auditLogPath, "audit-log", "", "Path to audit log file (or set PQHYBRID_AUDIT_LOG)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "Log format: text, json")

	rootCmd.AddCommand(algsCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(kemCmd)
	rootCmd.AddCommand(coseCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(serveCmd)
}

// registry is the algorithm registry used by every command.
func registry() *crypto.Registry {
	return crypto.DefaultRegistry()
}

// algorithmOrDefault returns name, or the configured default algorithm.
func algorithmOrDefault(name string) string {
	if name != "" {
		return name
	}
	return cfg.DefaultAlgorithm
}
