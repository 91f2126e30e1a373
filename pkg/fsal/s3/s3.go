// Package s3 implements fsal over an S3 bucket prefix.
//
// Keys are mapped onto engine paths by treating "/" as the directory
// separator: ListObjectsV2 with a delimiter yields the immediate files
// (Contents) and subdirectories (CommonPrefixes) of a level.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/facetfs/pkg/fsal"
)

// Config holds the S3 lister configuration.
type Config struct {
	Bucket string `mapstructure:"bucket" validate:"required" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint for S3-compatible stores
	// (MinIO, Ceph RGW). Empty uses AWS.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

// Client is the subset of the S3 API the lister uses. Satisfied by
// *s3.Client; tests substitute a stub.
type Client interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Lister serves listings from one bucket prefix.
type Lister struct {
	client Client
	bucket string
	prefix string
}

// NewLister creates a lister using the default AWS credential chain.
func NewLister(ctx context.Context, cfg Config) (*Lister, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // S3-compatible stores want path-style addressing
		}
	})

	return NewListerWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewListerWithClient creates a lister over an existing client.
func NewListerWithClient(client Client, bucket, prefix string) *Lister {
	return &Lister{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// key maps an engine path onto a bucket key prefix for listing.
func (l *Lister) key(p string) string {
	p = strings.Trim(p, "/")
	switch {
	case l.prefix == "" && p == "":
		return ""
	case l.prefix == "":
		return p + "/"
	case p == "":
		return l.prefix + "/"
	default:
		return l.prefix + "/" + p + "/"
	}
}

// rel converts a bucket key back into an engine path.
func (l *Lister) rel(key string) string {
	key = strings.TrimSuffix(key, "/")
	if l.prefix != "" {
		key = strings.TrimPrefix(key, l.prefix+"/")
	}
	return key
}

// ListDir returns the immediate children of path, following continuation
// tokens until the level is fully listed.
func (l *Lister) ListDir(ctx context.Context, dir string) (*fsal.Listing, error) {
	listing := &fsal.Listing{}
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(l.bucket),
		Prefix:    aws.String(l.key(dir)),
		Delimiter: aws.String("/"),
	}

	for {
		out, err := l.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", fsal.ErrInvalidPath, dir, err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				// zero-byte "directory marker" objects
				continue
			}
			listing.Files = append(listing.Files, fsal.Entry{
				RelPath: l.rel(key),
				Size:    aws.ToInt64(obj.Size),
			})
		}
		for _, cp := range out.CommonPrefixes {
			listing.Dirs = append(listing.Dirs, fsal.Entry{
				RelPath: l.rel(aws.ToString(cp.Prefix)),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			return listing, nil
		}
		input.ContinuationToken = out.NextContinuationToken
	}
}

// Open returns the object content at path.
func (l *Lister) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key := strings.TrimSuffix(l.key(p), "/")
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", fsal.ErrInvalidPath, p, err)
	}
	return out.Body, nil
}
