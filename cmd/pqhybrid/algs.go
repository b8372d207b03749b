package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/remiblancher/pqhybrid/internal/api/dto"
	"github.com/remiblancher/pqhybrid/internal/api/service"
)

var algsCmd = &cobra.Command{
	Use:   "algs",
	Short: "List supported algorithms",
	Long: `List every registered algorithm with its OID, category, claimed NIST
security level and maximum composite key sizes.

Examples:
  pqhybrid algs
  pqhybrid algs --type kem --hybrid
  pqhybrid algs --json`,
	Args: cobra.NoArgs,
	RunE: runAlgs,
}

var (
	algsJSON   bool
	algsType   string
	algsHybrid bool
)

func init() {
	algsCmd.Flags().BoolVar(&algsJSON, "json", false, "Output as JSON")
	algsCmd.Flags().StringVar(&algsType, "type", "", "Filter by type: kem, signature")
	algsCmd.Flags().BoolVar(&algsHybrid, "hybrid", false, "Only list hybrid algorithms")
}

func runAlgs(cmd *cobra.Command, args []string) error {
	switch algsType {
	case "", "kem", "signature":
	default:
		return fmt.Errorf("invalid --type %q (expected kem or signature)", algsType)
	}

	var list []dto.AlgorithmInfo
	for _, d := range registry().Descriptors() {
		info := service.AlgorithmInfo(d)
		if algsType != "" && info.Type != algsType {
			continue
		}
		if algsHybrid && !info.Hybrid {
			continue
		}
		list = append(list, info)
	}

	out := cmd.OutOrStdout()
	if algsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dto.AlgorithmListResponse{Algorithms: list})
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tCATEGORY\tLEVEL\tPUB\tPRIV\tOID")
	for _, a := range list {
		name := a.Name
		if a.ReverseShare {
			name += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			name, a.Type, a.Category, a.SecurityLevel, a.PublicKeySize, a.PrivateKeySize, a.OID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out, "\n* ML-KEM component carried first (reverse share order)")
	return nil
}
