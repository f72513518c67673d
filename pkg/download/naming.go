// Package download streams response bodies to disk in bounded chunks,
// computing the checksum as it writes, with configurable file naming.
package download

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"

	"github.com/google/uuid"

	"github.com/fetchwave/fetchwave/pkg/config"
)

// FileName derives a file name from the URL per the naming strategy.
// The hash strategies give idempotent names, so re-downloading the same
// URL lands on the same file.
func FileName(rawURL string, strategy config.NamingStrategy) (string, error) {
	switch strategy {
	case config.NamingUniqueID:
		return uuid.NewString(), nil

	case config.NamingURLHashMD5:
		sum := md5.Sum([]byte(rawURL))
		return hex.EncodeToString(sum[:]), nil

	case config.NamingURLHashSHA1:
		sum := sha1.Sum([]byte(rawURL))
		return hex.EncodeToString(sum[:]), nil

	case config.NamingFileName:
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("parse url: %w", err)
		}
		name := path.Base(u.Path)
		if name == "." || name == "/" || name == "" {
			return "", fmt.Errorf("url %q has no usable basename", rawURL)
		}
		return name, nil

	default:
		return "", config.Errorf("naming", "unknown strategy %q", string(strategy))
	}
}
