package s3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultPresignExpiry = 15 * time.Minute

type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Client lists objects and signs plain HTTPS GETs for them; the bytes themselves are
// fetched by the HTTP engine.
type Client struct {
	api       objectAPI
	presigner presignAPI
	expires   time.Duration
}

type s3Object struct {
	Key  string
	Size int64
}

func NewClient(ctx context.Context, profile string, expires time.Duration) (*Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRetryMode("adaptive")}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	client := s3.NewFromConfig(cfg)
	return newClient(client, s3.NewPresignClient(client), expires), nil
}

func newClient(api objectAPI, presigner presignAPI, expires time.Duration) *Client {
	if expires <= 0 {
		expires = DefaultPresignExpiry
	}
	return &Client{api: api, presigner: presigner, expires: expires}
}

// objectInfo reports "file" with its size, or "folder" with -1 when key is only a prefix.
func (c *Client) objectInfo(ctx context.Context, bucket, key string) (string, int64, error) {
	if key != "" && !strings.HasSuffix(key, "/") {
		headObj, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return "file", aws.ToInt64(headObj.ContentLength), nil
		}
	}
	result, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(key),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return "", 0, fmt.Errorf("error accessing S3 object: %v", err)
	}
	if len(result.Contents) > 0 || len(result.CommonPrefixes) > 0 {
		return "folder", -1, nil
	}
	return "", 0, fmt.Errorf("S3 object not found: s3://%s/%s", bucket, key)
}

func (c *Client) listObjects(ctx context.Context, bucket, prefix string) ([]s3Object, error) {
	var objects []s3Object
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing objects: %v", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			// Skip directory markers
			if aws.ToInt64(obj.Size) == 0 && strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			objects = append(objects, s3Object{Key: *obj.Key, Size: aws.ToInt64(obj.Size)})
		}
	}
	return objects, nil
}

func (c *Client) presign(ctx context.Context, bucket, key string) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.expires))
	if err != nil {
		return "", fmt.Errorf("error presigning s3://%s/%s: %v", bucket, key, err)
	}
	return req.URL, nil
}
