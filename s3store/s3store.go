// Package s3store implements the bulk transfer Store interface on top of
// Amazon S3 using AWS SDK v2. Downloads map to ranged GetObject calls;
// uploads map to the S3 multipart protocol, with each chunk becoming the
// part its offset addresses, so chunks can arrive concurrently and out
// of order.
package s3store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/storeapi"
)

// Store is an S3-backed remote store scoped to a single bucket.
// It is safe for concurrent use.
type Store struct {
	client s3api.S3API
	bucket string

	// uploads tracks write protocols opened by Prepare, keyed by object path.
	mu      sync.Mutex
	uploads map[string]*pendingUpload
}

// New creates a Store for bucket, loading AWS credentials through the
// default credential chain.
//
// Example:
//
//	store, err := s3store.New(ctx, "my-bucket",
//	    s3store.WithRegion("us-west-2"),
//	)
func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	if bucket == "" {
		return nil, errors.NewError("s3store.new", errors.ErrInvalidInput).WithMessage("bucket is required")
	}

	storeCfg := &storeConfig{}
	for _, opt := range opts {
		opt(storeCfg)
	}

	if storeCfg.client != nil {
		return newWithClient(storeCfg.client, bucket), nil
	}

	var cfg aws.Config
	var err error
	if storeCfg.awsConfig != nil {
		cfg = *storeCfg.awsConfig
	} else {
		cfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.NewError("s3store.new", err)
		}
	}

	if storeCfg.region != "" {
		cfg.Region = storeCfg.region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var s3Opts []func(*s3.Options)
	if storeCfg.endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(storeCfg.endpoint)
		})
	}
	if storeCfg.forcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if storeCfg.httpClient != nil {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = storeCfg.httpClient
		})
	}

	return newWithClient(s3.NewFromConfig(cfg, s3Opts...), bucket), nil
}

func newWithClient(client s3api.S3API, bucket string) *Store {
	return &Store{
		client:  client,
		bucket:  bucket,
		uploads: make(map[string]*pendingUpload),
	}
}

// storeConfig holds construction options for a Store.
type storeConfig struct {
	region         string
	endpoint       string
	forcePathStyle bool
	awsConfig      *aws.Config
	httpClient     *http.Client
	client         s3api.S3API
}

// Option configures Store construction.
type Option func(*storeConfig)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(c *storeConfig) { c.region = region }
}

// WithEndpoint sets a custom S3 endpoint, for S3-compatible services
// and local test stacks.
func WithEndpoint(endpoint string) Option {
	return func(c *storeConfig) { c.endpoint = endpoint }
}

// WithForcePathStyle forces path-style addressing, required by most
// S3-compatible services.
func WithForcePathStyle() Option {
	return func(c *storeConfig) { c.forcePathStyle = true }
}

// WithAWSConfig supplies a pre-built AWS configuration instead of the
// default credential chain.
func WithAWSConfig(cfg aws.Config) Option {
	return func(c *storeConfig) { c.awsConfig = &cfg }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *storeConfig) { c.httpClient = client }
}

// WithClient injects an S3 API implementation directly. Used by tests.
func WithClient(client s3api.S3API) Option {
	return func(c *storeConfig) { c.client = client }
}

// Info returns the size of the object at path. When no object exists but
// keys live under the path it is reported as a directory.
func (s *Store) Info(ctx context.Context, path string) (storeapi.Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return storeapi.Info{Path: path, Size: aws.ToInt64(out.ContentLength)}, nil
	}
	if !isNotFound(err) {
		return storeapi.Info{}, errors.NewPathError("s3store.info", path, err)
	}

	// No object. A non-empty listing under the path makes it a directory.
	list, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(path + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return storeapi.Info{}, errors.NewPathError("s3store.info", path, err)
	}
	if len(list.Contents) > 0 {
		return storeapi.Info{Path: path, Dir: true}, nil
	}
	return storeapi.Info{}, errors.NewPathError("s3store.info", path, errors.ErrObjectNotFound)
}

// List returns every object under prefix in lexicographic order,
// following continuation tokens across pages.
func (s *Store) List(ctx context.Context, prefix string) ([]storeapi.Info, error) {
	keyPrefix := prefix
	if keyPrefix != "" && !strings.HasSuffix(keyPrefix, "/") {
		keyPrefix += "/"
	}

	var infos []storeapi.Info
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(keyPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.NewPathError("s3store.list", prefix, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				// Zero-byte directory markers are not transferable files.
				continue
			}
			infos = append(infos, storeapi.Info{Path: key, Size: aws.ToInt64(obj.Size)})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// RangedRead fetches [offset, offset+length) of the object at path with
// a ranged GetObject.
func (s *Store) RangedRead(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NewPathError("s3store.read", path, errors.ErrObjectNotFound)
		}
		return nil, errors.NewPathError("s3store.read", path, err)
	}
	defer out.Body.Close()

	data := make([]byte, length)
	if _, err := io.ReadFull(out.Body, data); err != nil {
		return nil, errors.NewPathError("s3store.read", path, err)
	}
	return data, nil
}

// Mkdir is a no-op: S3 has no directories, the key hierarchy is implied.
func (s *Store) Mkdir(_ context.Context, _ string) error {
	return nil
}

// Remove deletes the object at path.
func (s *Store) Remove(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return errors.NewPathError("s3store.remove", path, err)
	}
	return nil
}

// Exists reports whether an object exists at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, errors.NewPathError("s3store.exists", path, err)
}

// isNotFound checks if an error indicates that an object was not found.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") || strings.Contains(errStr, "NotFound")
}

// Interface guards
var (
	_ storeapi.Store    = (*Store)(nil)
	_ storeapi.Preparer = (*Store)(nil)
)
