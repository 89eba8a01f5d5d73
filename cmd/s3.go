package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tanq16/fget/internal/downloaders/s3"
	"github.com/tanq16/fget/internal/output"
	"github.com/tanq16/fget/internal/utils"
)

var s3Profile string

func newS3Cmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "s3 [BUCKET/KEY or s3://BUCKET/KEY]",
		Short: "Download files from AWS S3",
		Long: `Download files or folders from AWS S3 through pre-signed URLs.

Examples:
  fget s3 mybucket/path/to/file.zip
  fget s3 s3://mybucket/path/to/folder/
  fget s3 mybucket/file.zip --profile myprofile`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			jobs, err := resolveS3Jobs(cmd.Context(), args[0], outputPath)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error resolving S3 location: %v", err))
				os.Exit(1)
			}
			runJobs(cmd.Context(), jobs, max(cfg.Workers, 1))
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path")
	cmd.Flags().StringVar(&s3Profile, "profile", "", "AWS profile to use")
	return cmd
}

func resolveS3Jobs(ctx context.Context, location, outputPath string) ([]utils.FgetJob, error) {
	profile := s3Profile
	if profile == "" {
		profile = cfg.S3Profile
	}
	client, err := s3.NewClient(ctx, profile, cfg.S3PresignExpires)
	if err != nil {
		return nil, err
	}
	targets, err := client.Resolve(ctx, location, outputPath)
	if err != nil {
		return nil, err
	}
	jobs := make([]utils.FgetJob, 0, len(targets))
	for _, target := range targets {
		jobs = append(jobs, buildJob(target.URL, target.OutputPath))
	}
	return jobs, nil
}
