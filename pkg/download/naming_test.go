package download

import (
	"errors"
	"testing"

	"github.com/fetchwave/fetchwave/pkg/config"
)

func TestFileName(t *testing.T) {
	const fileURL = "http://example.com/myfile.png"

	tests := []struct {
		name     string
		strategy config.NamingStrategy
		wantLen  int
		want     string
	}{
		{name: "md5 hex is 32 chars", strategy: config.NamingURLHashMD5, wantLen: 32},
		{name: "sha1 hex is 40 chars", strategy: config.NamingURLHashSHA1, wantLen: 40},
		{name: "uuid is 36 chars", strategy: config.NamingUniqueID, wantLen: 36},
		{name: "literal basename", strategy: config.NamingFileName, want: "myfile.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FileName(fileURL, tt.strategy)
			if err != nil {
				t.Fatalf("FileName() error: %v", err)
			}
			if tt.want != "" && got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
			if tt.wantLen > 0 && len(got) != tt.wantLen {
				t.Errorf("FileName() = %q, want length %d", got, tt.wantLen)
			}
		})
	}
}

func TestFileNameIdempotentHashes(t *testing.T) {
	const fileURL = "http://example.com/assets/logo.svg"

	first, err := FileName(fileURL, config.NamingURLHashSHA1)
	if err != nil {
		t.Fatalf("FileName() error: %v", err)
	}
	second, err := FileName(fileURL, config.NamingURLHashSHA1)
	if err != nil {
		t.Fatalf("FileName() error: %v", err)
	}

	if first != second {
		t.Errorf("hash naming not idempotent: %q vs %q", first, second)
	}
}

func TestFileNameUniqueIDsDiffer(t *testing.T) {
	first, _ := FileName("http://example.com/a", config.NamingUniqueID)
	second, _ := FileName("http://example.com/a", config.NamingUniqueID)

	if first == second {
		t.Errorf("unique-id naming returned the same name twice: %q", first)
	}
}

func TestFileNameErrors(t *testing.T) {
	if _, err := FileName("http://example.com/", config.NamingFileName); err == nil {
		t.Error("FileName() on a URL without basename expected error")
	}

	_, err := FileName("http://example.com/a.png", "base64")
	if !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("FileName() with unknown strategy error = %v, want ErrConfiguration", err)
	}
}
