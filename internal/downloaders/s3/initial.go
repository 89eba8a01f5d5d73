package s3

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Target is one object ready for the HTTP engine.
type Target struct {
	Key        string
	Size       int64
	URL        string // pre-signed GET
	OutputPath string
}

// Resolve expands an S3 location into download targets. A single object maps to one
// target; a prefix maps to every object under it, laid out below outputPath.
func (c *Client) Resolve(ctx context.Context, rawURL, outputPath string) ([]Target, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	fileType, size, err := c.objectInfo(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("error getting S3 object info: %v", err)
	}
	log.Debug().Str("op", "s3/initial").Msgf("Determined object type: %s, size: %d", fileType, size)

	if fileType == "file" {
		if outputPath == "" {
			outputPath = path.Base(key)
		}
		signed, err := c.presign(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		log.Info().Str("op", "s3/initial").Msgf("Resolved s3://%s/%s", bucket, key)
		return []Target{{Key: key, Size: size, URL: signed, OutputPath: outputPath}}, nil
	}

	if outputPath == "" {
		parts := strings.Split(strings.TrimSuffix(key, "/"), "/")
		outputPath = parts[len(parts)-1]
		if outputPath == "" {
			outputPath = bucket
		}
	}
	objects, err := c.listObjects(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no objects found in s3://%s/%s", bucket, key)
	}
	targets := make([]Target, 0, len(objects))
	for _, obj := range objects {
		relPath := strings.TrimPrefix(strings.TrimPrefix(obj.Key, key), "/")
		signed, err := c.presign(ctx, bucket, obj.Key)
		if err != nil {
			return nil, err
		}
		targets = append(targets, Target{
			Key:        obj.Key,
			Size:       obj.Size,
			URL:        signed,
			OutputPath: filepath.Join(outputPath, filepath.FromSlash(relPath)),
		})
	}
	log.Info().Str("op", "s3/initial").Msgf("Resolved %d objects under s3://%s/%s", len(targets), bucket, key)
	return targets, nil
}

// ParseS3URL accepts "s3://bucket/key" or "bucket/key".
func ParseS3URL(url string) (string, string, error) {
	url = strings.TrimPrefix(url, "s3://")
	bucket, key, _ := strings.Cut(url, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid S3 URL format: %q", url)
	}
	return bucket, key, nil
}
