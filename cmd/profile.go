package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/csvinsights/internal/analysis"
	"github.com/KaramelBytes/csvinsights/internal/utils"
)

var (
	profFormat      string
	profPreviewRows int
	profMaxRows     int
	profOutputPath  string
)

var profileCmd = &cobra.Command{
	Use:   "profile <files...>",
	Short: "Profile local CSV files (types, missing values, statistics, preview)",
	Example: `  csvinsights profile sales.csv
  csvinsights profile 'data/*.csv' --format markdown
  csvinsights profile people.csv --format yaml --preview-rows 3 -o people.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(strings.TrimSpace(profFormat))
		switch format {
		case "json", "yaml", "markdown", "md":
		default:
			return fmt.Errorf("unsupported --format: %s (use json|yaml|markdown)", profFormat)
		}
		files, err := expandInputs(args)
		if err != nil {
			return err
		}

		opt := analysis.DefaultOptions()
		if profPreviewRows > 0 {
			opt.PreviewRows = profPreviewRows
		}
		opt.MaxRows = profMaxRows

		profiles := make([]*analysis.Profile, 0, len(files))
		for _, path := range files {
			p, err := profileFile(path, opt)
			if err != nil {
				return err
			}
			profiles = append(profiles, p)
		}

		out, err := renderProfiles(profiles, format)
		if err != nil {
			return err
		}
		if profOutputPath != "" {
			if err := utils.SafeWriteFile(profOutputPath, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d profile(s) to %s\n", len(profiles), profOutputPath)
			return nil
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// profileFile reads and profiles one CSV, naming it by its base name like an
// upload would be.
func profileFile(path string, opt analysis.Options) (*analysis.Profile, error) {
	if !utils.HasCSVExtension(path) {
		return nil, fmt.Errorf("%s: only CSV files are supported", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	_, p, err := analysis.ProfileCSV(filepath.Base(path), raw, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func renderProfiles(profiles []*analysis.Profile, format string) ([]byte, error) {
	switch format {
	case "yaml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		for _, p := range profiles {
			if err := enc.Encode(p); err != nil {
				return nil, fmt.Errorf("encode yaml: %w", err)
			}
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case "markdown", "md":
		parts := make([]string, 0, len(profiles))
		for _, p := range profiles {
			parts = append(parts, p.Markdown())
		}
		return []byte(strings.Join(parts, "\n---\n\n")), nil
	default:
		var v any = profiles
		if len(profiles) == 1 {
			v = profiles[0]
		}
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}
}

// expandInputs resolves globs, keeps literal paths that exist and drops
// duplicates. The result is sorted.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&profFormat, "format", "f", "json", "output format: json|yaml|markdown")
	profileCmd.Flags().IntVar(&profPreviewRows, "preview-rows", 10, "number of preview rows to include")
	profileCmd.Flags().IntVar(&profMaxRows, "max-rows", 0, "maximum data rows to read (0 = unlimited)")
	profileCmd.Flags().StringVarP(&profOutputPath, "output", "o", "", "write output to this path instead of stdout")
}
