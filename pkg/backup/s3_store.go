package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API S3Store needs, so tests can supply
// a fake without standing up real AWS credentials.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps backup runs as objects in an S3 bucket, under an optional
// key prefix.
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3Store returns a Store backed by client, writing objects under
// bucket (optionally namespaced by prefix).
func NewS3Store(client S3Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(object string) string {
	if s.prefix == "" {
		return object
	}
	return s.prefix + "/" + object
}

func (s *S3Store) openRead(ctx context.Context, object string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(object)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("backup: read %s: %w", object, os.ErrNotExist)
		}
		return nil, err
	}
	return out.Body, nil
}

func (s *S3Store) openWrite(ctx context.Context, object string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		_, w.uploadErr = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(object)),
			Body:   pr,
		})
		pr.CloseWithError(w.uploadErr)
	}()
	return w, nil
}

func (s *S3Store) WriteSnapshot(ctx context.Context, name, runID string) (io.WriteCloser, error) {
	if err := validateRunKey(name); err != nil {
		return nil, err
	}
	return s.openWrite(ctx, snapshotObject(name, runID))
}

func (s *S3Store) ReadSnapshot(ctx context.Context, name, runID string) (io.ReadCloser, error) {
	if err := validateRunKey(name); err != nil {
		return nil, err
	}
	return s.openRead(ctx, snapshotObject(name, runID))
}

func (s *S3Store) WriteManifest(ctx context.Context, name, runID string) (io.WriteCloser, error) {
	if err := validateRunKey(name); err != nil {
		return nil, err
	}
	return s.openWrite(ctx, manifestObject(name, runID))
}

func (s *S3Store) ReadManifest(ctx context.Context, name, runID string) (io.ReadCloser, error) {
	if err := validateRunKey(name); err != nil {
		return nil, err
	}
	return s.openRead(ctx, manifestObject(name, runID))
}

func (s *S3Store) DeleteRun(ctx context.Context, name, runID string) error {
	if err := validateRunKey(name); err != nil {
		return err
	}
	for _, object := range []string{snapshotObject(name, runID), manifestObject(name, runID)} {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(object)),
		})
		if err != nil && !isS3NotFound(err) {
			return err
		}
	}
	return nil
}

type s3Writer struct {
	pw        *io.PipeWriter
	done      chan struct{}
	uploadErr error
}

func (w *s3Writer) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *s3Writer) Close() error {
	w.pw.Close()
	<-w.done
	return w.uploadErr
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var _ Store = (*S3Store)(nil)
