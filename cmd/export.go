package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/vin-dashboard/internal/model"
	"github.com/sells-group/vin-dashboard/internal/refresh"
	"github.com/sells-group/vin-dashboard/internal/report"
)

var (
	exportOutput string
	exportPreset string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build and publish one dashboard snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		ctx := cmd.Context()

		env, err := initRefresh(ctx, exportOutput, exportPreset)
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Runner.Run(ctx, model.TriggerCLI)
		if err != nil {
			return err
		}
		printExportSummary(os.Stdout, out, env.Layout)
		return nil
	},
}

// printExportSummary writes the snapshot location and headline counts.
func printExportSummary(w io.Writer, out *refresh.Outcome, layout report.Layout) {
	p := message.NewPrinter(language.English)
	_, _ = fmt.Fprintln(w, out.Message())
	_, _ = fmt.Fprintf(w, "  Written to: %s\n", out.Receipt.Location)
	_, _ = p.Fprintf(w, "  Total VINs: %d\n", out.TotalVINs)
	for _, s := range layout.Sources {
		label := s.Label
		if label == "" {
			label = s.Name
		}
		if n, ok := out.SourceCounts[s.Name]; ok {
			_, _ = p.Fprintf(w, "  %s: %d\n", label, n)
		}
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "write the snapshot to this local file instead of the configured sink")
	exportCmd.Flags().StringVar(&exportPreset, "preset", "", "layout preset (four-source, five-source; default from config)")
	rootCmd.AddCommand(exportCmd)
}
