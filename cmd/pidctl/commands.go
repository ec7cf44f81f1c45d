package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pid-asset-extractor/internal/bootstrap"
	"github.com/kirillkom/pid-asset-extractor/internal/config"
	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
	"github.com/kirillkom/pid-asset-extractor/internal/core/usecase"
	"github.com/kirillkom/pid-asset-extractor/internal/observability/logging"
)

type batchRunner interface {
	Process(ctx context.Context, owner string, items []usecase.BatchItem) []usecase.BatchStatus
}

// cli holds the services used by the commands. Fields left nil are filled
// from the environment configuration before a command runs.
type cli struct {
	reader   ports.DiagramReader
	reviewer ports.AssetReviewer
	exporter ports.AssetRegisterExporter
	newBatch func(onUpdate func(usecase.BatchStatus)) batchRunner

	app *bootstrap.App
}

func (c *cli) ready() bool {
	return c.reader != nil && c.reviewer != nil && c.exporter != nil && c.newBatch != nil
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if c.ready() {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), "pidctl", cfg.LogLevel, "text")
	// Batch extraction runs in-process, so the queue is not needed.
	app, err := bootstrap.New(cmd.Context(), cfg, bootstrap.WithLogger(logger), bootstrap.WithoutQueue())
	if err != nil {
		return err
	}
	c.app = app
	c.reader = app.ReviewUC
	c.reviewer = app.ReviewUC
	c.exporter = app.OverlayUC
	c.newBatch = func(onUpdate func(usecase.BatchStatus)) batchRunner {
		return app.NewBatchProcessor(onUpdate)
	}
	return nil
}

func (c *cli) close(*cobra.Command, []string) {
	if c.app != nil {
		c.app.Close()
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:               "pidctl",
		Short:             "Ingest P&ID diagrams and review extracted assets",
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: c.close,
	}
	root.AddCommand(
		newIngestCmd(c),
		newDiagramCmd(c),
		newAssetsCmd(c),
		newVerifyCmd(c),
		newExportCmd(c),
	)
	return root
}

func newIngestCmd(c *cli) *cobra.Command {
	var owner string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Upload diagrams and extract their assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]usecase.BatchItem, 0, len(args))
			for _, path := range args {
				items = append(items, fileItem(path))
			}

			out := cmd.OutOrStdout()
			onUpdate := func(s usecase.BatchStatus) {
				if !asJSON {
					fmt.Fprintf(out, "%-10s %s %s\n", s.State, s.Filename, s.Message)
				}
			}
			statuses := c.newBatch(onUpdate).Process(cmd.Context(), owner, items)

			if asJSON {
				return writeJSON(out, statuses)
			}
			failed := printBatchSummary(out, statuses)
			if failed > 0 {
				return fmt.Errorf("%d of %d diagrams failed", failed, len(statuses))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "user", "", "owner reference (default anonymous)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statuses as JSON")
	return cmd
}

func newDiagramCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "diagram ID",
		Short: "Show a diagram record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diagram, err := c.reader.GetDiagram(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), diagram)
		},
	}
}

func newAssetsCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "assets ID",
		Short: "List the assets of a diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assets, err := c.reader.ListAssets(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				if assets == nil {
					assets = []domain.Asset{}
				}
				return writeJSON(cmd.OutOrStdout(), assets)
			}
			return printAssets(cmd.OutOrStdout(), assets)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print assets as JSON")
	return cmd
}

func newVerifyCmd(c *cli) *cobra.Command {
	var unverify bool
	cmd := &cobra.Command{
		Use:   "verify ASSET_ID",
		Short: "Mark an asset as verified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := c.reviewer.SetAssetVerified(cmd.Context(), args[0], !unverify)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), asset)
		},
	}
	cmd.Flags().BoolVar(&unverify, "undo", false, "clear the verified flag instead")
	return cmd
}

func newExportCmd(c *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Write the asset register of a diagram as XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _, err := c.exporter.ExportAssets(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0] + "-assets.xlsx"
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default ID-assets.xlsx)")
	return cmd
}

func fileItem(path string) usecase.BatchItem {
	return usecase.BatchItem{
		Filename: filepath.Base(path),
		MimeType: mimeForFile(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

func mimeForFile(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".jpg" || ext == ".jpeg" {
		return domain.MimeJPEG
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func printBatchSummary(w io.Writer, statuses []usecase.BatchStatus) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATE\tDIAGRAM\tASSETS\tMESSAGE")
	failed := 0
	for _, s := range statuses {
		if s.State == usecase.BatchError {
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.Filename, s.State, s.DiagramID, s.Inserted, s.Message)
	}
	_ = tw.Flush()
	return failed
}

func printAssets(w io.Writer, assets []domain.Asset) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tTYPE\tX\tY\tVERIFIED\tID")
	for _, a := range assets {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%t\t%s\n", a.Tag, a.Type, a.Coordinates.X, a.Coordinates.Y, a.Verified, a.ID)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
