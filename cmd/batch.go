package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tanq16/fget/internal/output"
	"github.com/tanq16/fget/internal/utils"
)

// BatchFile groups entries by source: http (or https) links and s3 locations.
type BatchFile map[string][]utils.DownloadEntry

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Process multiple downloads from a YAML file",
		Long: `Process multiple downloads from a YAML file. Either a plain list:

  - link: https://example.com/a.iso
    op: a.iso

or sections by source:

  http:
    - link: https://example.com/a.iso
  s3:
    - link: mybucket/path/file.zip
      op: file.zip`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				output.PrintError(fmt.Sprintf("Error reading YAML file: %v", err))
				os.Exit(1)
			}
			batchFile, err := parseBatchFile(data)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error parsing YAML file: %v", err))
				os.Exit(1)
			}
			var jobs []utils.FgetJob
			for source, entries := range batchFile {
				for _, entry := range entries {
					if entry.URL == "" {
						output.PrintWarning(fmt.Sprintf("Empty link found in %s section, skipping...", source))
						continue
					}
					switch strings.ToLower(source) {
					case "http", "https":
						jobs = append(jobs, buildJob(entry.URL, entry.OutputPath))
					case "s3":
						s3Jobs, err := resolveS3Jobs(cmd.Context(), entry.URL, entry.OutputPath)
						if err != nil {
							output.PrintError(fmt.Sprintf("Error resolving %s: %v", entry.URL, err))
							os.Exit(1)
						}
						jobs = append(jobs, s3Jobs...)
					default:
						output.PrintWarning(fmt.Sprintf("Unknown section '%s', skipping...", source))
					}
				}
			}
			if len(jobs) == 0 {
				output.PrintError("No valid jobs found in the batch file")
				os.Exit(1)
			}
			runJobs(cmd.Context(), jobs, cfg.Workers)
		},
	}
}

// parseBatchFile accepts the sectioned form or a bare list, which is read as http.
func parseBatchFile(data []byte) (BatchFile, error) {
	var entries []utils.DownloadEntry
	if err := yaml.Unmarshal(data, &entries); err == nil {
		return BatchFile{"http": entries}, nil
	}
	var batchFile BatchFile
	if err := yaml.Unmarshal(data, &batchFile); err != nil {
		return nil, err
	}
	return batchFile, nil
}
