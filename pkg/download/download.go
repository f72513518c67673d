package download

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/fetchwave/fetchwave/pkg/config"
)

// Prometheus metrics for file downloads.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchwave_downloads_total",
		Help: "Completed downloads by naming strategy",
	}, []string{"strategy"})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchwave_download_bytes_total",
		Help: "Bytes streamed to disk",
	})
)

// chunkSize bounds how much of a body sits in memory at once.
const chunkSize = 32 * 1024

// Result records one stored file. Path and Checksum are empty when no
// download directory is configured and the remote URL is passed through.
type Result struct {
	URL      string `json:"url"`
	Path     string `json:"path,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

// Options steer one save operation.
type Options struct {
	// Dir is the download directory. Created if missing.
	Dir string

	// Naming selects the file-name strategy.
	Naming config.NamingStrategy

	// OnAdvisory routes non-fatal warnings (unknown extension,
	// overwrite).
	OnAdvisory config.ErrorStrategy

	Logger zerolog.Logger
}

// Save streams the body into the download directory, computing an MD5
// checksum incrementally, and returns the stored file's record. The
// body is never buffered whole.
func Save(body io.Reader, rawURL, contentType string, opts Options) (*Result, error) {
	name, err := FileName(rawURL, opts.Naming)
	if err != nil {
		return nil, err
	}

	ext, err := extension(contentType, rawURL, opts.OnAdvisory, opts.Logger)
	if err != nil {
		return nil, err
	}
	if ext != "" {
		name = strings.TrimSuffix(name, path.Ext(name)) + ext
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	target := filepath.Join(opts.Dir, name)
	if _, err := os.Stat(target); err == nil {
		adv := config.Advisef(config.AdvisoryOverwrite, "overwriting existing file %s", target)
		if err := config.Advise(opts.Logger, opts.OnAdvisory, adv); err != nil {
			return nil, err
		}
	}

	out, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	hash := md5.New()
	buf := make([]byte, chunkSize)
	written, err := io.CopyBuffer(io.MultiWriter(out, hash), body, buf)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(target)
		return nil, fmt.Errorf("stream body to %s: %w", target, err)
	}

	downloadsTotal.WithLabelValues(string(opts.Naming)).Inc()
	downloadBytesTotal.Add(float64(written))

	checksum := hex.EncodeToString(hash.Sum(nil))
	opts.Logger.Debug().
		Str("path", target).
		Int64("bytes", written).
		Str("checksum", checksum).
		Msg("file stored")

	return &Result{URL: rawURL, Path: target, Checksum: checksum}, nil
}

// extension picks the file extension: the Content-Type mapping wins,
// then the URL path's suffix. An unrecognized declared type is an
// advisory even when the URL suffix rescues the name.
func extension(contentType, rawURL string, strategy config.ErrorStrategy, logger zerolog.Logger) (string, error) {
	if contentType != "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			return exts[0], nil
		}
		adv := config.Advisef(config.AdvisoryUnknownExtension, "no extension known for content type %q", contentType)
		if err := config.Advise(logger, strategy, adv); err != nil {
			return "", err
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return ext, nil
		}
	}

	return "", nil
}

// Checksum recomputes the MD5 hex digest of a stored file by re-reading
// it from disk.
func Checksum(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("read %s: %w", filePath, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
