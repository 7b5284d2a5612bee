package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the slice of the S3 client the archiver needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver copies finalized transcripts to an S3 bucket for long-term
// retention. A nil archiver is valid and archives nothing.
type Archiver struct {
	client S3API
	bucket string
}

// NewArchiver creates an archiver writing to bucket.
func NewArchiver(client S3API, bucket string) (*Archiver, error) {
	if client == nil {
		return nil, fmt.Errorf("transcript: s3 client cannot be nil")
	}
	if bucket == "" {
		return nil, fmt.Errorf("transcript: archive bucket cannot be empty")
	}
	return &Archiver{client: client, bucket: bucket}, nil
}

// Enabled reports whether archival is configured.
func (a *Archiver) Enabled() bool {
	return a != nil && a.client != nil
}

// Archive uploads one finalized record. Objects are keyed by call start date
// so retention policies can expire whole prefixes.
func (a *Archiver) Archive(ctx context.Context, callSID string, rec *Record) error {
	if !a.Enabled() {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("transcript: encode archive %s: %w", callSID, err)
	}
	key := ObjectKey(callSID, rec)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("transcript: put s3 object %s: %w", key, err)
	}
	return nil
}

// ObjectKey returns the S3 key for one call's archived transcript.
func ObjectKey(callSID string, rec *Record) string {
	day := rec.StartTime.UTC()
	return fmt.Sprintf("calls/v1/by-date/%04d/%02d/%02d/%s.json",
		day.Year(), int(day.Month()), day.Day(), callSID)
}
