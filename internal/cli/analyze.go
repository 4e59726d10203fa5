package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aliskhannn/plantphoto/internal/analyzer"
	"github.com/aliskhannn/plantphoto/internal/config"
)

// fileResult is the per-file output of the analyze command.
type fileResult struct {
	File   string           `json:"file" yaml:"file"`
	Error  string           `json:"error,omitempty" yaml:"error,omitempty"`
	Report *analyzer.Report `json:"report,omitempty" yaml:"report,omitempty"`
}

// featureRow is one parquet row per analyzed file.
type featureRow struct {
	File              string  `parquet:"file"`
	Accepted          bool    `parquet:"accepted"`
	Reasons           string  `parquet:"reasons"`
	Issues            string  `parquet:"issues"`
	Error             string  `parquet:"error"`
	Format            string  `parquet:"format"`
	Width             int32   `parquet:"width"`
	Height            int32   `parquet:"height"`
	Brightness        float64 `parquet:"brightness"`
	Contrast          float64 `parquet:"contrast"`
	GreenRatio        float64 `parquet:"green_ratio"`
	BrownRatio        float64 `parquet:"brown_ratio"`
	TextureComplexity float64 `parquet:"texture_complexity"`
	EdgeStrength      float64 `parquet:"edge_strength"`
	DominantColor     string  `parquet:"dominant_color"`
}

type analyzeOptions struct {
	format      string
	parquetPath string
	configPath  string
	minDim      int
	maxDim      int
	workers     int
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Analyze plant photos and print the admission verdict",
		Long: `Analyze runs every photo through normalization, feature extraction and
validation, then prints one verdict per file. The command fails when at least
one photo is not admitted.`,
		Example: `  # Check a folder of samples
  photocheck analyze samples/*.jpg

  # Full reports as YAML, features exported for a notebook
  photocheck analyze --format yaml --parquet features.parquet samples/*.jpg

  # Try a stricter size gate
  photocheck analyze --min 300 --max 800 leaf.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format (text, json or yaml)")
	cmd.Flags().StringVar(&opts.parquetPath, "parquet", "", "Write one row of features per file to this parquet file")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Read analyzer settings from a service config file")
	cmd.Flags().IntVar(&opts.minDim, "min", 0, "Minimum width and height in pixels (overrides config)")
	cmd.Flags().IntVar(&opts.maxDim, "max", 0, "Maximum width and height after normalization (overrides config)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of parallel workers (0 means one per CPU)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, files []string, opts analyzeOptions) error {
	switch opts.format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format: %s", opts.format)
	}

	cfg := analyzer.DefaultConfig()
	if opts.configPath != "" {
		c, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		cfg = c.Analyzer
	}
	if opts.minDim > 0 {
		cfg.MinDimension = opts.minDim
	}
	if opts.maxDim > 0 {
		cfg.MaxDimension = opts.maxDim
	}

	results := analyzeFiles(cmd, analyzer.New(cfg), files, opts.workers)

	if err := printResults(cmd.OutOrStdout(), opts.format, results); err != nil {
		return err
	}

	if opts.parquetPath != "" {
		if err := parquet.WriteFile(opts.parquetPath, featureRows(results)); err != nil {
			return fmt.Errorf("failed to write parquet: %w", err)
		}
	}

	rejected := 0
	for _, r := range results {
		if r.Report == nil || !r.Report.Verdict.Accepted {
			rejected++
		}
	}
	if rejected > 0 {
		return fmt.Errorf("%d of %d photos not admitted", rejected, len(results))
	}

	return nil
}

func analyzeFiles(cmd *cobra.Command, a *analyzer.Analyzer, files []string, workers int) []fileResult {
	results := make([]fileResult, len(files))
	items := make([]analyzer.Item, 0, len(files))
	index := make([]int, 0, len(files))

	for i, f := range files {
		results[i].File = f

		data, err := os.ReadFile(f)
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		items = append(items, analyzer.Item{Name: f, Data: data})
		index = append(index, i)
	}

	for j, r := range analyzer.NewPool(a, workers).AnalyzeAll(cmd.Context(), items) {
		i := index[j]
		if r.Err != nil {
			results[i].Error = r.Err.Error()
			continue
		}
		results[i].Report = r.Report
	}

	return results
}

func printResults(w io.Writer, format string, results []fileResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(results)
	}

	for _, r := range results {
		name := filepath.Base(r.File)

		if r.Error != "" {
			fmt.Fprintf(w, "%s: error: %s\n", name, r.Error)
			continue
		}

		f := r.Report.Features
		verdict := "rejected"
		if r.Report.Verdict.Accepted {
			verdict = "accepted"
		}
		fmt.Fprintf(w, "%s: %s (green %.2f%%, brightness %.1f, contrast %.1f)\n",
			name, verdict, f.GreenRatio*100, f.Brightness, f.Contrast)

		for _, reason := range r.Report.Verdict.Reasons {
			fmt.Fprintf(w, "  reason: %s\n", reason)
		}
		for _, issue := range r.Report.Verdict.Issues {
			fmt.Fprintf(w, "  issue:  %s\n", issue)
		}
	}

	return nil
}

func featureRows(results []fileResult) []featureRow {
	rows := make([]featureRow, 0, len(results))

	for _, r := range results {
		row := featureRow{File: r.File, Error: r.Error}

		if r.Report != nil {
			f, m, v := r.Report.Features, r.Report.Meta, r.Report.Verdict

			row.Accepted = v.Accepted
			row.Reasons = strings.Join(v.Reasons, "; ")
			row.Issues = strings.Join(v.Issues, "; ")
			row.Format = m.Format
			row.Width = int32(m.Width)
			row.Height = int32(m.Height)
			row.Brightness = f.Brightness
			row.Contrast = f.Contrast
			row.GreenRatio = f.GreenRatio
			row.BrownRatio = f.BrownRatio
			row.TextureComplexity = f.TextureComplexity
			row.EdgeStrength = f.EdgeStrength
			if len(f.DominantColors) > 0 {
				row.DominantColor = f.DominantColors[0].Hex
			}
		}

		rows = append(rows, row)
	}

	return rows
}
