package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	putInputs []*s3.PutObjectInput
	putErr    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putInputs = append(f.putInputs, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestArchive_PutsObjectWithMirroredKey(t *testing.T) {
	fake := &fakeS3{}
	a := &Archive{client: fake, bucket: "backups", keyPrefix: "docvault/"}

	err := a.Archive(context.Background(), "c1", "/Receipts/2025/ACME", "receipt.pdf", []byte("pdf bytes"))
	if err != nil {
		t.Fatal(err)
	}

	if len(fake.putInputs) != 1 {
		t.Fatalf("PutObject called %d times", len(fake.putInputs))
	}
	in := fake.putInputs[0]
	if got := *in.Bucket; got != "backups" {
		t.Errorf("bucket = %q", got)
	}
	if got := *in.Key; got != "docvault/c1/Receipts/2025/ACME/receipt.pdf" {
		t.Errorf("key = %q", got)
	}
	body, _ := io.ReadAll(in.Body)
	if string(body) != "pdf bytes" {
		t.Errorf("body = %q", body)
	}
	if *in.ContentLength != 9 {
		t.Errorf("content length = %d", *in.ContentLength)
	}
}

func TestArchive_PutFailureSurfaced(t *testing.T) {
	fake := &fakeS3{putErr: errors.New("access denied")}
	a := &Archive{client: fake, bucket: "backups"}

	err := a.Archive(context.Background(), "c1", "/", "x.pdf", []byte("x"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestObjectKey(t *testing.T) {
	a := &Archive{bucket: "b"}

	tests := []struct {
		path, want string
	}{
		{"/Documents/Invoices", "c1/Documents/Invoices/a.pdf"},
		{"/", "c1/a.pdf"},
		{"", "c1/a.pdf"},
	}
	for _, tt := range tests {
		if got := a.objectKey("c1", tt.path, "a.pdf"); got != tt.want {
			t.Errorf("objectKey(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(context.Background(), Config{Bucket: "b"}); err == nil {
		t.Error("missing client must be rejected")
	}
	if _, err := New(context.Background(), Config{Client: &s3.Client{}, Bucket: ""}); err == nil {
		t.Error("missing bucket must be rejected")
	}
}
