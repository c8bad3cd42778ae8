package minio

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/rhuss/missive/pkg/blob/blobtest"
)

func TestMinio_Conformance(t *testing.T) {
	endpoint := blobtest.StartMinio(t)

	s, err := New(context.Background(), Config{
		Endpoint:  endpoint,
		AccessKey: blobtest.MinioAccessKey,
		SecretKey: blobtest.MinioSecretKey,
		Bucket:    "missive-" + uuid.NewString()[:8],
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	blobtest.Run(t, s)
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{Endpoint: "localhost:9000"}); err == nil {
		t.Error("New without bucket: err = nil, want error")
	}
}
