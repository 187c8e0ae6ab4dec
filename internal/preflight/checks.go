package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sys/unix"

	"dubline/internal/config"
	"dubline/internal/deps"
	"dubline/internal/objectstore"
	"dubline/internal/services/llm"
)

// CheckLLM verifies that the translation chat endpoint is reachable and the
// key is valid. It uses a 30-second timeout and a single attempt.
func CheckLLM(ctx context.Context, name string, cfg config.Translation) Result {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckObjectStore opens the configured store and checks the bucket.
func CheckObjectStore(ctx context.Context, cfg *config.Config) Result {
	const name = "Object storage"

	store, err := objectstore.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	provider := strings.TrimSpace(cfg.Storage.Provider)
	if provider == "" {
		provider = "s3"
	}
	if bucket := strings.TrimSpace(cfg.Storage.Bucket); bucket != "" && provider != "memory" {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s bucket %q reachable", provider, bucket)}
	}
	return Result{Name: name, Passed: true, Detail: provider}
}

// CheckRedis pings the redis server backing the workflow store.
func CheckRedis(ctx context.Context, cfg config.Redis) Result {
	const name = "Redis"

	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return Result{Name: name, Detail: "missing addr"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB})
	defer rdb.Close()
	if err := rdb.Ping(checkCtx).Err(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", addr, summarizeError(err))}
	}
	return Result{Name: name, Passed: true, Detail: addr}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps reports the media binaries used for audio extraction.
// Both the daemon and the CLI status command use it.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.MediaRequirements(cfg.Ingest.FFmpegBinary, cfg.Ingest.FFprobeBinary))
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (service unreachable)"
	}
	return err.Error()
}
