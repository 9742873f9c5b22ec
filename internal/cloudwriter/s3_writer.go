package cloudwriter

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const archiveContentType = "application/vnd.apache.parquet"

// S3Writer accumulates one flight-event archive in memory and uploads it as
// a single object on Close. Parquet footers are written last, so the object
// is only valid once the writer is finished anyway.
type S3Writer struct {
	client *s3.Client
	bucket string
	key    string
	buf    bytes.Buffer
	closed bool
}

type S3WriterFactory struct {
	client *s3.Client
}

func NewS3WriterFactory(region string) (*S3WriterFactory, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for region %s: %w", region, err)
	}
	return &S3WriterFactory{client: s3.NewFromConfig(cfg)}, nil
}

func (f *S3WriterFactory) NewWriter(bucket, objectPath string) (CloudWriter, error) {
	if bucket == "" {
		return nil, fmt.Errorf("no bucket configured for cloud archive")
	}
	return &S3Writer{client: f.client, bucket: bucket, key: objectPath}, nil
}

func (w *S3Writer) Write(data []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed archive %s/%s", w.bucket, w.key)
	}
	return w.buf.Write(data)
}

func (w *S3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(w.buf.Bytes()),
		ContentType: aws.String(archiveContentType),
	})
	if err != nil {
		return fmt.Errorf("uploading archive %s to bucket %s: %w", w.key, w.bucket, err)
	}
	return nil
}
