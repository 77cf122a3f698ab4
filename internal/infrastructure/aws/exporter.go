package aws

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/vivekkundariya/wgtunnel/internal/logging"
)

// Scheme is the target prefix handled by S3Exporter
const Scheme = "s3://"

// S3Options configures the S3 client. Endpoint is for S3 compatible stores
// such as LocalStack or MinIO; static credentials are only used when
// AccessKeyID is set, otherwise the default credential chain applies.
type S3Options struct {
	Region          string
	Endpoint        string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter uploads tunnel configs to s3://bucket/key targets
type S3Exporter struct {
	opts S3Options

	once      sync.Once
	client    putObjectAPI
	clientErr error
}

// NewS3Exporter creates an exporter. The AWS config is loaded on first use.
func NewS3Exporter(opts S3Options) *S3Exporter {
	return &S3Exporter{opts: opts}
}

// Export uploads data to target, server side encrypted
func (e *S3Exporter) Export(ctx context.Context, target string, data []byte) error {
	bucket, key, err := ParseTarget(target)
	if err != nil {
		return err
	}

	client, err := e.s3Client(ctx)
	if err != nil {
		return err
	}

	logging.Debugf("Uploading %d bytes to %s", len(data), target)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String("text/plain"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to %s: %w", target, err)
	}
	return nil
}

func (e *S3Exporter) s3Client(ctx context.Context) (putObjectAPI, error) {
	e.once.Do(func() {
		if e.client != nil {
			return
		}
		cfg, err := loadConfig(ctx, e.opts)
		if err != nil {
			e.clientErr = fmt.Errorf("failed to create AWS config: %w", err)
			return
		}
		e.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			// custom endpoints rarely support virtual hosted buckets
			o.UsePathStyle = e.opts.Endpoint != ""
		})
	})
	return e.client, e.clientErr
}

func loadConfig(ctx context.Context, opts S3Options) (aws.Config, error) {
	var loaders []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loaders = append(loaders, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.AccessKeyID != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	if opts.Endpoint != "" {
		endpoint := opts.Endpoint
		loaders = append(loaders, awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: endpoint, SigningRegion: region}, nil
			})))
	}
	return awsconfig.LoadDefaultConfig(ctx, loaders...)
}

// ParseTarget splits s3://bucket/key into its bucket and key
func ParseTarget(target string) (string, string, error) {
	if !strings.HasPrefix(target, Scheme) {
		return "", "", fmt.Errorf("%q is not an %s target", target, Scheme)
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 target %q: %w", target, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("S3 target %q must be s3://bucket/key", target)
	}
	return u.Host, key, nil
}
