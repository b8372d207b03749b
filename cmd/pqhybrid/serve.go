package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/remiblancher/pqhybrid/internal/api/server"
	"github.com/remiblancher/pqhybrid/internal/api/service"
	"github.com/remiblancher/pqhybrid/internal/config"
	"github.com/remiblancher/pqhybrid/internal/metrics"
)

// Serve command flags
var (
	servePort       int
	serveHost       string
	serveMaxKeys    int
	serveNoMetrics  bool
	serveDefaultAlg string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the REST API server with an in-memory keystore.

Keys generated or imported through the API live until they are deleted or
the server stops. Prometheus metrics are exposed on /metrics.

Environment variables:
  PQHYBRID_HOST      Host to bind to
  PQHYBRID_PORT      Port to listen on
  PQHYBRID_MAX_KEYS  Keystore capacity

Examples:
  pqhybrid serve --port 8443
  pqhybrid serve --config pqhybrid.yaml --log-format json`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config: 8443)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: all interfaces)")
	serveCmd.Flags().IntVar(&serveMaxKeys, "max-keys", 0, "Keystore capacity (default from config)")
	serveCmd.Flags().StringVar(&serveDefaultAlg, "default-algorithm", "", "Algorithm used when a request names none")
	serveCmd.Flags().BoolVar(&serveNoMetrics, "no-metrics", false, "Disable Prometheus metric recording")
}

func runServe(cmd *cobra.Command, args []string) error {
	applyServeEnvVars()

	sc, err := serverConfig(cfg.Server)
	if err != nil {
		return err
	}
	metrics.Enable(!serveNoMetrics)

	keys := service.NewKeyService(service.Config{
		Registry:         registry(),
		DefaultAlgorithm: algorithmOrDefault(serveDefaultAlg),
		MaxKeys:          sc.MaxKeys,
		Logger:           logger,
	})
	return server.New(sc, version, keys, logger).Start()
}

// serverConfig applies the command-line overrides to base.
func serverConfig(base config.ServerConfig) (config.ServerConfig, error) {
	sc := base
	if serveHost != "" {
		sc.Host = serveHost
	}
	if servePort != 0 {
		sc.Port = servePort
	}
	if serveMaxKeys != 0 {
		sc.MaxKeys = serveMaxKeys
	}
	if sc.Port < 1 || sc.Port > 65535 {
		return sc, fmt.Errorf("invalid port %d", sc.Port)
	}
	if sc.MaxKeys < 1 {
		return sc, fmt.Errorf("--max-keys must be at least 1")
	}
	if serveDefaultAlg != "" {
		if _, err := registry().Lookup(serveDefaultAlg); err != nil {
			return sc, fmt.Errorf("--default-algorithm: %w", err)
		}
	}
	return sc, nil
}

func applyServeEnvVars() {
	if serveHost == "" {
		serveHost = os.Getenv("PQHYBRID_HOST")
	}
	if servePort == 0 {
		if v := os.Getenv("PQHYBRID_PORT"); v != "" {
			if p, err := strconv.Atoi(v); err == nil {
				servePort = p
			}
		}
	}
	if serveMaxKeys == 0 {
		if v := os.Getenv("PQHYBRID_MAX_KEYS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				serveMaxKeys = n
			}
		}
	}
}
