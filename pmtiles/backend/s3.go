package backend

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ozhernov/pmtiles/pmtiles/spec"
)

// S3 is a Backend backed by a single S3 object, grounded on
// original_source/src/backend_s3.rs. It issues a ranged GetObject per
// ReadRange call.
type S3 struct {
	client *s3.S3
	bucket string
	key    string

	sizeMu    sync.Mutex
	knownSize uint64
	sizeKnown bool
}

// NewS3 creates an S3 backend for the object at bucket/key, using sess for
// credentials and region configuration.
func NewS3(sess *session.Session, bucket, key string) *S3 {
	return &S3{client: s3.New(sess), bucket: bucket, key: key}
}

func (b *S3) ReadRange(ctx context.Context, offset, length uint64) ([]byte, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	buffer := make([]byte, length)
	if _, err := io.ReadFull(out.Body, buffer); err != nil {
		return nil, fmt.Errorf("%w: %w", spec.ErrInvalidRange, err)
	}
	return buffer, nil
}

func (b *S3) Size(ctx context.Context) (uint64, bool) {
	b.sizeMu.Lock()
	if b.sizeKnown {
		size := b.knownSize
		b.sizeMu.Unlock()
		return size, true
	}
	b.sizeMu.Unlock()

	out, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil || out.ContentLength == nil {
		return 0, false
	}

	b.sizeMu.Lock()
	b.knownSize = uint64(*out.ContentLength)
	b.sizeKnown = true
	b.sizeMu.Unlock()
	return b.knownSize, true
}
