package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/xxxsen/docembed/internal/config"
	"github.com/xxxsen/docembed/internal/model"
)

type s3Source struct {
	client *s3.Client
	bucket string
	prefix string
	keys   []string
}

func init() {
	Register("s3", createS3Source)
}

func createS3Source(cfg config.SourceConfig) (Source, error) {
	c := cfg.S3
	if c.Endpoint == "" || c.Bucket == "" || c.SecretID == "" || c.SecretKey == "" {
		return nil, fmt.Errorf("s3 endpoint/bucket/secret_id/secret_key are required")
	}
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(c.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.SecretID, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	endpoint := buildEndpoint(c.Endpoint, c.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &s3Source{
		client: client,
		bucket: c.Bucket,
		prefix: strings.Trim(c.Prefix, "/"),
	}, nil
}

// Fetch lists every object under the prefix. Directory markers are skipped.
func (s *s3Source) Fetch(ctx context.Context) error {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list s3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
		}
	}
	s.keys = keys
	return nil
}

func (s *s3Source) Len() int {
	return len(s.keys)
}

// FilePath is the object key relative to the configured prefix.
func (s *s3Source) FilePath(i int) string {
	return relativeKey(s.prefix, s.keys[i])
}

func (s *s3Source) ReadFile(ctx context.Context, i int) (*model.FileData, error) {
	key := s.keys[i]
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	f := objectFileData(s.bucket, key, out)
	f.Path = relativeKey(s.prefix, key)
	f.Content = string(data)
	return f, nil
}

// objectFileData maps user metadata to file metadata and keeps the object
// coordinates as internal metadata.
func objectFileData(bucket, key string, out *s3.GetObjectOutput) *model.FileData {
	f := &model.FileData{
		Name: path.Base(key),
		InternalMetadata: map[string]interface{}{
			"s3_bucket": bucket,
			"s3_key":    key,
		},
	}
	if etag := strings.Trim(aws.ToString(out.ETag), `"`); etag != "" {
		f.InternalMetadata["etag"] = etag
	}
	if out.LastModified != nil {
		f.InternalMetadata["last_modified"] = out.LastModified.Unix()
	}
	if len(out.Metadata) > 0 {
		f.Metadata = make(map[string]interface{}, len(out.Metadata))
		for k, v := range out.Metadata {
			f.Metadata[strings.ToLower(k)] = v
		}
	}
	return f
}

func relativeKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, prefix+"/")
}

func buildEndpoint(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return strings.TrimSuffix(endpoint, "/")
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimSuffix(endpoint, "/")
}
