package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"dubline/internal/config"
	"dubline/internal/services"
)

// Store is the object storage contract. URIs returned by Put are opaque to
// callers; KeyFor maps them back to keys.
type Store interface {
	Put(ctx context.Context, data []byte, key, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	PresignedGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	KeyFor(uri string) (string, bool)
	HealthCheck(ctx context.Context) error
}

// Provisioner is implemented by stores that can create their container.
type Provisioner interface {
	// EnsureBucket creates the bucket when it is missing and reports
	// whether it did.
	EnsureBucket(ctx context.Context) (created bool, err error)
}

// Open selects the implementation named by storage.provider.
func Open(cfg *config.Config) (Store, error) {
	switch strings.ToLower(cfg.Storage.Provider) {
	case "memory":
		return NewMemory(), nil
	case "", "s3":
		return NewS3(cfg.Storage)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", fmt.Sprintf("unknown provider %q", cfg.Storage.Provider), nil)
	}
}

var contentTypes = map[string]string{
	".mp4": "video/mp4",
	".avi": "video/avi",
	".mov": "video/quicktime",
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".m4a": "audio/m4a",
	".txt": "text/plain",
}

// ContentTypeFor returns the MIME type for a file name's extension.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// NewKey builds a collision-resistant key: <YYYYmmdd_HHMMSS>_<uuid8>_<name>.
func NewKey(name string, now time.Time) string {
	base := sanitizeName(path.Base(strings.ReplaceAll(name, "\\", "/")))
	return fmt.Sprintf("%s_%s_%s", now.UTC().Format("20060102_150405"), uuid.NewString()[:8], base)
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20 || r == '?' || r == '#' || r == '%':
			return -1
		}
		return r
	}, name)
}

// Fetch reads the bytes behind ref. Store URIs and bare keys go through the
// store; http(s) URLs are downloaded directly.
func Fetch(ctx context.Context, store Store, client services.HTTPDoer, ref string) ([]byte, error) {
	if key, ok := store.KeyFor(ref); ok {
		return store.Get(ctx, key)
	}
	if !isHTTP(ref) {
		return nil, services.Wrap(services.ErrValidation, "storage", "fetch", fmt.Sprintf("unsupported reference %q", ref), nil)
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "storage", "fetch", "invalid url", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "storage", "fetch", "download failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, services.WrapHTTPStatus("storage", "fetch", resp.StatusCode, string(body), false)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "storage", "fetch", "read body", err)
	}
	return data, nil
}

// Resolve turns ref into a URL an external service can fetch. Store objects
// get a presigned GET; http(s) URLs pass through.
func Resolve(ctx context.Context, store Store, ref string, ttl time.Duration) (string, error) {
	if key, ok := store.KeyFor(ref); ok {
		return store.PresignedGet(ctx, key, ttl)
	}
	if isHTTP(ref) {
		return ref, nil
	}
	return "", services.Wrap(services.ErrValidation, "storage", "resolve", fmt.Sprintf("unsupported reference %q", ref), nil)
}

func isHTTP(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
