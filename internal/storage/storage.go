// Package storage wraps the configured file storage root: per-Upload
// subdirectories for source files, a shared exports/ directory for
// published artifacts, matching the Upload id into every path to avoid
// collisions. Reads and writes run through a circuit breaker so repeated
// storage failures trip open rather than retrying into a degraded
// filesystem indefinitely.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker"
)

// Root wraps a base directory and a circuit breaker guarding its I/O.
type Root struct {
	base    string
	breaker *gobreaker.CircuitBreaker
}

// NewRoot creates the uploads/ and exports/ subdirectories under base if
// they do not already exist, and returns a Root ready for use.
func NewRoot(base string) (*Root, error) {
	for _, sub := range []string{"uploads", "exports"} {
		if err := os.MkdirAll(filepath.Join(base, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create storage subdir %s: %w", sub, err)
		}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "storage-root",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Root{base: base, breaker: breaker}, nil
}

// UploadPath returns the path a source file for uploadID/filename lives at.
func (r *Root) UploadPath(uploadID, filename string) string {
	return filepath.Join(r.base, "uploads", uploadID, filename)
}

// ExportPath returns the path a published artifact for uploadID lives at,
// with the given extension ("csv" or "pdf").
func (r *Root) ExportPath(uploadID, ext string) string {
	return filepath.Join(r.base, "exports", fmt.Sprintf("%s.%s", uploadID, ext))
}

// WriteUpload writes a source file under the upload's own subdirectory,
// creating it if necessary.
func (r *Root) WriteUpload(uploadID, filename string, data []byte) error {
	path := r.UploadPath(uploadID, filename)
	_, err := r.breaker.Execute(func() (any, error) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return nil, os.WriteFile(path, data, 0o644)
	})
	if err != nil {
		return fmt.Errorf("write upload file %s: %w", path, err)
	}
	return nil
}

// ReadUpload reads the source file for uploadID/filename.
func (r *Root) ReadUpload(uploadID, filename string) ([]byte, error) {
	path := r.UploadPath(uploadID, filename)
	out, err := r.breaker.Execute(func() (any, error) {
		return os.ReadFile(path)
	})
	if err != nil {
		return nil, fmt.Errorf("read upload file %s: %w", path, err)
	}
	return out.([]byte), nil
}

// WriteExport writes a published artifact (csv or pdf) for uploadID.
func (r *Root) WriteExport(uploadID, ext string, data []byte) error {
	path := r.ExportPath(uploadID, ext)
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, os.WriteFile(path, data, 0o644)
	})
	if err != nil {
		return fmt.Errorf("write export file %s: %w", path, err)
	}
	return nil
}

// Check satisfies health.StatChecker: it confirms the root still exists and
// is a directory (write permission is not tested) by stat-ing it through
// the same breaker every other
// operation uses, so a tripped breaker surfaces as a failed health check.
func (r *Root) Check(_ context.Context) error {
	_, err := r.breaker.Execute(func() (any, error) {
		info, err := os.Stat(r.base)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", r.base)
		}
		return nil, nil
	})
	return err
}
