package transcript

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	puts []s3.PutObjectInput
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, *params)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveUploadsDatedKey(t *testing.T) {
	client := &fakeS3{}
	archiver, err := NewArchiver(client, "call-transcripts")
	if err != nil {
		t.Fatalf("new archiver: %v", err)
	}
	rec := &Record{
		StartTime:      time.Date(2026, 3, 7, 14, 30, 0, 0, time.UTC),
		CustomerNumber: "+15551234567",
		Status:         StatusCompleted,
	}
	if err := archiver.Archive(context.Background(), "CA1", rec); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(client.puts) != 1 {
		t.Fatalf("expected one upload, got %d", len(client.puts))
	}
	put := client.puts[0]
	if *put.Bucket != "call-transcripts" {
		t.Errorf("unexpected bucket %q", *put.Bucket)
	}
	if *put.Key != "calls/v1/by-date/2026/03/07/CA1.json" {
		t.Errorf("unexpected key %q", *put.Key)
	}
	body, err := io.ReadAll(put.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var uploaded Record
	if err := json.Unmarshal(body, &uploaded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if uploaded.CustomerNumber != rec.CustomerNumber {
		t.Fatalf("uploaded record mismatch %+v", uploaded)
	}
}

func TestNilArchiverIsDisabled(t *testing.T) {
	var archiver *Archiver
	if archiver.Enabled() {
		t.Fatal("nil archiver must report disabled")
	}
	if err := archiver.Archive(context.Background(), "CA1", &Record{}); err != nil {
		t.Fatalf("nil archiver must archive nothing without error, got %v", err)
	}
}

func TestFinalizeSurvivesArchiveFailure(t *testing.T) {
	client := &fakeS3{err: context.DeadlineExceeded}
	archiver, err := NewArchiver(client, "call-transcripts")
	if err != nil {
		t.Fatalf("new archiver: %v", err)
	}
	rec, err := NewRecorder(t.TempDir(), archiver, nil)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := rec.Start("CA1", "+15551234567"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := rec.Finalize(context.Background(), "CA1", StatusCompleted); err != nil {
		t.Fatalf("finalize must tolerate archive failure: %v", err)
	}
	got, err := rec.Get("CA1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("unexpected status %q", got.Status)
	}
}
