package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// Prefix marks index paths that live in object storage
const Prefix = "s3://"

// ObjectAPI is the part of *s3.Client the operator uses
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Operator stores index files under a key prefix of one bucket
type Operator struct {
	client ObjectAPI
	bucket string
	prefix string
}

// ParsePath splits "s3://bucket/some/prefix" into bucket and prefix
func ParsePath(p string) (string, string, error) {
	if !strings.HasPrefix(p, Prefix) {
		return "", "", fmt.Errorf("not an s3 path: %s", p)
	}
	rest := strings.TrimPrefix(p, Prefix)
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %s", p)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// NewOperator connects to the bucket of an s3:// path. S3_ENDPOINT points
// the client at an S3 compatible store such as MinIO; static credentials
// are used when AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are set
func NewOperator(ctx context.Context, p string) (*Operator, error) {
	bucket, prefix, err := ParsePath(p)
	if err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if region := os.Getenv("AWS_REGION"); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	accessKey, secretKey := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, os.Getenv("AWS_SESSION_TOKEN")),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := os.Getenv("S3_ENDPOINT")
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			// MinIO serves buckets by path, not by subdomain
			o.UsePathStyle = true
		}
	})

	logrus.Debugf("Using bucket '%s' (prefix '%s', endpoint '%s')", bucket, prefix, endpoint)
	return NewOperatorWithClient(client, bucket, prefix), nil
}

// NewOperatorWithClient creates an operator over an existing client
func NewOperatorWithClient(client ObjectAPI, bucket, prefix string) *Operator {
	return &Operator{client: client, bucket: bucket, prefix: prefix}
}

func (o *Operator) key(name string) string {
	if o.prefix == "" {
		return name
	}
	return path.Join(o.prefix, name)
}

// Delete removes an object
func (o *Operator) Delete(ctx context.Context, name string) error {
	_, err := o.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", name, err)
	}
	return nil
}

// Reader streams an object
func (o *Operator) Reader(ctx context.Context, name string) (io.ReadCloser, error) {
	result, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", name, err)
	}
	return result.Body, nil
}

// Writer buffers an object and uploads it on Close
func (o *Operator) Writer(ctx context.Context, name string) (io.WriteCloser, error) {
	return &objectWriter{ctx: ctx, op: o, name: name}, nil
}

// List returns the names of the objects under dir
func (o *Operator) List(ctx context.Context, dir string) ([]string, error) {
	prefix := o.key(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var names []string
	paginator := s3.NewListObjectsV2Paginator(o.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(o.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name != "" && !strings.Contains(name, "/") {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// objectWriter implements io.WriteCloser for uploads
type objectWriter struct {
	ctx    context.Context
	op     *Operator
	name   string
	buffer bytes.Buffer
	closed bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed object %s", w.name)
	}
	return w.buffer.Write(p)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	logrus.Debugf("Uploading %s/%s (%d bytes)", w.op.bucket, w.op.key(w.name), w.buffer.Len())
	_, err := w.op.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.op.bucket),
		Key:           aws.String(w.op.key(w.name)),
		Body:          bytes.NewReader(w.buffer.Bytes()),
		ContentLength: aws.Int64(int64(w.buffer.Len())),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", w.name, err)
	}
	return nil
}
