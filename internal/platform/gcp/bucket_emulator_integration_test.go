package gcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/gmr-archive-backend/internal/pkg/dbctx"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
)

func TestBucketServiceEmulatorLifecycle(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("ARCHIVE_RUN_GCS_EMULATOR_INTEGRATION")), "true") {
		t.Skip("set ARCHIVE_RUN_GCS_EMULATOR_INTEGRATION=true to run emulator integration tests")
	}

	emulatorHost := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST"))
	if emulatorHost == "" {
		emulatorHost = "http://127.0.0.1:4443"
	}
	emulatorHost = strings.TrimRight(emulatorHost, "/")
	if !isEmulatorReachable(t, emulatorHost) {
		t.Skipf("storage emulator not reachable at %s", emulatorHost)
	}

	suffix := time.Now().UnixNano()
	mediaBucket := fmt.Sprintf("archive-it-media-%d", suffix)
	createBucketIfMissing(t, emulatorHost, mediaBucket)

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	defer log.Sync()

	bucket, err := NewBucketService(log, BucketConfig{
		Name:          mediaBucket,
		PublicBaseURL: emulatorHost,
		Storage: ObjectStorageConfig{
			Mode:         ObjectStorageModeGCSEmulator,
			EmulatorHost: emulatorHost,
		},
	})
	if err != nil {
		t.Fatalf("NewBucketService: %v", err)
	}

	ctx := context.Background()
	key := fmt.Sprintf("sessions/it/%d-take.mp4", suffix)
	if err := bucket.UploadFile(dbctx.Context{Ctx: ctx}, key, strings.NewReader("frames"), "video/mp4"); err != nil {
		t.Fatalf("UploadFile(%s): %v", key, err)
	}

	body, err := downloadWithRetry(ctx, bucket, key, 5*time.Second)
	if err != nil {
		t.Fatalf("downloadWithRetry(%s): %v", key, err)
	}
	if string(body) != "frames" {
		t.Fatalf("download body: want=%q got=%q", "frames", string(body))
	}

	attrs, err := bucket.GetObjectAttrs(ctx, key)
	if err != nil {
		t.Fatalf("GetObjectAttrs(%s): %v", key, err)
	}
	if attrs.Size != int64(len("frames")) {
		t.Fatalf("attrs size: want=%d got=%d", len("frames"), attrs.Size)
	}

	if err := bucket.DeleteFile(dbctx.Context{Ctx: ctx}, key); err != nil {
		t.Fatalf("DeleteFile(%s): %v", key, err)
	}
	if _, err := bucket.GetObjectAttrs(ctx, key); err == nil {
		t.Fatalf("expected %s to be deleted", key)
	}
}

func isEmulatorReachable(t *testing.T, emulatorHost string) bool {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(emulatorHost + "/storage/v1/b?project=local-dev")
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

func createBucketIfMissing(t *testing.T, emulatorHost string, bucket string) {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"name": bucket})
	if err != nil {
		t.Fatalf("json.Marshal(bucket): %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodPost, emulatorHost+"/storage/v1/b?project=local-dev", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("http.NewRequest(create bucket): %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("create bucket %q: %v", bucket, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusConflict {
		return
	}
	b, _ := io.ReadAll(resp.Body)
	t.Fatalf("create bucket %q failed: status=%d body=%s", bucket, resp.StatusCode, strings.TrimSpace(string(b)))
}

func downloadWithRetry(ctx context.Context, bucket BucketService, key string, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		rc, err := bucket.DownloadFile(ctx, key)
		if err == nil {
			body, readErr := io.ReadAll(rc)
			_ = rc.Close()
			if readErr == nil {
				return body, nil
			}
			lastErr = readErr
		} else {
			lastErr = err
		}
		if time.Now().After(deadline) {
			return nil, lastErr
		}
		time.Sleep(100 * time.Millisecond)
	}
}
