package ps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nickyhof/DuckServe/core"
)

// RemoteConfig configures the S3 mirror of the bundle root.
type RemoteConfig struct {
	URL       string // s3://bucket/prefix
	Region    string
	Endpoint  string // Optional: custom S3-compatible endpoint
	AccessKey string
	SecretKey string
}

// Enabled reports whether a remote is configured.
func (c RemoteConfig) Enabled() bool {
	return c.URL != ""
}

// ObjectStore is the subset of the S3 client used by Remote.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Remote mirrors bundles to an S3 bucket under a key prefix.
type Remote struct {
	client ObjectStore
	bucket string
	prefix string
}

// parseS3URL parses s3://bucket[/prefix] into bucket and prefix parts
func parseS3URL(url string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(strings.ToLower(url), "s3://") {
		return "", "", fmt.Errorf("invalid S3 URL: %s", url)
	}
	rest := url[len("s3://"):]
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URL: %s", url)
	}
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return parts[0], prefix, nil
}

// getS3Client creates an S3 client with the given configuration
func getS3Client(ctx context.Context, cfg RemoteConfig) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // For S3-compatible services
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// NewRemote connects to the bucket named in cfg.URL.
func NewRemote(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	bucket, prefix, err := parseS3URL(cfg.URL)
	if err != nil {
		return nil, core.Wrap(core.RemoteError, "", err)
	}

	client, err := getS3Client(ctx, cfg)
	if err != nil {
		return nil, core.Wrap(core.RemoteError, "", err)
	}

	return NewRemoteWithStore(client, bucket, prefix), nil
}

// NewRemoteWithStore mirrors bundles through store instead of a client built
// from configuration.
func NewRemoteWithStore(store ObjectStore, bucket, prefix string) *Remote {
	return &Remote{
		client: store,
		bucket: bucket,
		prefix: prefix,
	}
}

// String renders the remote location as an s3 URL.
func (r *Remote) String() string {
	if r.prefix == "" {
		return "s3://" + r.bucket
	}
	return "s3://" + r.bucket + "/" + r.prefix
}

func (r *Remote) objectKey(bundle Bundle, file string) string {
	return path.Join(r.prefix, bundle.Name, file)
}

// Push uploads every artifact of the bundle, then its manifest. A reader that
// sees the remote manifest can therefore fetch every file it lists.
func (r *Remote) Push(ctx context.Context, bundle Bundle, manifest core.Manifest) error {
	for _, file := range append(Files(manifest), ManifestFile) {
		data, err := bundle.ReadFile(file)
		if err != nil {
			return err
		}
		if err := r.put(ctx, r.objectKey(bundle, file), data); err != nil {
			return err
		}
	}
	return nil
}

// Pull downloads the bundle into its local directory. The manifest is written
// last so an interrupted pull leaves no usable local bundle behind.
func (r *Remote) Pull(ctx context.Context, bundle Bundle) (core.Manifest, error) {
	data, err := r.get(ctx, r.objectKey(bundle, ManifestFile))
	if err != nil {
		return core.Manifest{}, err
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return core.Manifest{}, err
	}

	if err := bundle.Ensure(); err != nil {
		return core.Manifest{}, err
	}

	for _, file := range Files(manifest) {
		content, err := r.get(ctx, r.objectKey(bundle, file))
		if err != nil {
			return core.Manifest{}, err
		}
		if err := bundle.WriteFile(file, content); err != nil {
			return core.Manifest{}, err
		}
	}

	if err := bundle.WriteFile(ManifestFile, data); err != nil {
		return core.Manifest{}, err
	}
	return manifest, nil
}

func (r *Remote) put(ctx context.Context, key string, data []byte) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return core.Wrap(core.RemoteError, fmt.Sprintf("failed to upload s3://%s/%s", r.bucket, key), err)
	}
	return nil
}

func (r *Remote) get(ctx context.Context, key string) ([]byte, error) {
	resp, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, core.Wrap(core.RemoteError, fmt.Sprintf("failed to get s3://%s/%s", r.bucket, key), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Wrap(core.RemoteError, fmt.Sprintf("failed to read s3://%s/%s", r.bucket, key), err)
	}
	return data, nil
}
