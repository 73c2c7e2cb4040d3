package profile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/khanhnv2901/tlsprofiler/internal/shared/constants"
)

// Source supplies the raw profile document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// HTTPSource downloads the profile document from a URL.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", s.URL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxProfileDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.URL, err)
	}
	if len(data) > constants.MaxProfileDocumentBytes {
		return nil, fmt.Errorf("profile document at %s exceeds %d bytes", s.URL, constants.MaxProfileDocumentBytes)
	}
	return data, nil
}

func (s *HTTPSource) String() string {
	return s.URL
}

// FileSource reads a local copy of the profile document.
type FileSource struct {
	Path string
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read profile document: %w", err)
	}
	return data, nil
}

func (s *FileSource) String() string {
	return s.Path
}
