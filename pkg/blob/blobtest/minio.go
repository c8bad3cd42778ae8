package blobtest

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MinIO root credentials used by the test container.
const (
	MinioAccessKey = "missive"
	MinioSecretKey = "missive-secret"
)

var (
	minioOnce     sync.Once
	minioEndpoint string
	minioErr      error
)

// StartMinio starts one MinIO container per test binary and returns its
// host:port endpoint. The test is skipped when SKIP_INTEGRATION is set or
// no container runtime is available.
func StartMinio(t *testing.T) string {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping MinIO integration tests")
	}

	minioOnce.Do(func() {
		ctx := context.Background()
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "minio/minio:latest",
				Cmd:          []string{"server", "/data"},
				ExposedPorts: []string{"9000/tcp"},
				Env: map[string]string{
					"MINIO_ROOT_USER":     MinioAccessKey,
					"MINIO_ROOT_PASSWORD": MinioSecretKey,
				},
				WaitingFor: wait.ForHTTP("/minio/health/live").
					WithPort("9000/tcp").
					WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			minioErr = err
			return
		}
		minioEndpoint, minioErr = container.PortEndpoint(ctx, "9000/tcp", "")
	})
	if minioErr != nil {
		t.Skipf("skipping: could not start MinIO container: %v", minioErr)
	}
	return minioEndpoint
}
