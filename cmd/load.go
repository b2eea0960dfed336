package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vin-dashboard/internal/fetcher"
	"github.com/sells-group/vin-dashboard/internal/source"
)

var (
	loadFile   string
	loadFormat string
	loadSheet  string
	loadPreset string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Seed the reconciliation table from a CSV or XLSX extract",
	Long: "Reads VIN records (vin, status, priority, make, model, year, price, age and one 0/1 column per source) " +
		"from a local path, http(s):// or ftp:// URL and inserts them into the configured source table. " +
		"Postgres and SQLite only.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("load"); err != nil {
			return err
		}
		ctx := cmd.Context()

		layout, err := initLayout(loadPreset)
		if err != nil {
			return err
		}

		records, err := fetcher.New(fetcher.Options{Sheet: loadSheet}).
			Records(ctx, loadFile, fetcher.Format(loadFormat))
		if err != nil {
			return eris.Wrap(err, "load")
		}

		q, err := initQuerier(ctx)
		if err != nil {
			return err
		}
		defer q.Close() //nolint:errcheck

		loader, ok := q.(source.Loader)
		if !ok {
			return eris.Errorf("load: source driver %s does not support loading", cfg.Source.Driver)
		}

		rows := make([][]any, len(records))
		for i, rec := range records {
			rows[i] = layout.LoadRow(rec)
		}
		n, err := loader.Load(ctx, cfg.Source.Table, layout.LoadColumns(), rows)
		if err != nil {
			return err
		}

		zap.L().Info("records loaded", zap.String("table", cfg.Source.Table), zap.Int64("rows", n))
		fmt.Printf("Loaded %d records into %s\n", n, cfg.Source.Table)
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadFile, "file", "", "extract to load: local path, http(s):// or ftp:// URL")
	loadCmd.Flags().StringVar(&loadFormat, "format", "", "csv or xlsx (default from the file extension)")
	loadCmd.Flags().StringVar(&loadSheet, "sheet", "", "xlsx sheet name (default first sheet)")
	loadCmd.Flags().StringVar(&loadPreset, "preset", "", "layout preset naming the source columns (default from config)")
	_ = loadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(loadCmd)
}
