package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxArchiveBytes caps a downloaded repository archive.
const maxArchiveBytes = 500 << 20

// RemoteRepoSource downloads a repository archive and exposes it as virtual
// entries.
type RemoteRepoSource struct {
	// ArchiveURL points at a ZIP archive of the repository, e.g. a GitHub
	// codeload URL.
	ArchiveURL string
	Include    []string
	Exclude    []string

	httpClient *http.Client
}

// NewRemoteRepoSource creates a remote repository source.
func NewRemoteRepoSource(archiveURL string, include, exclude []string) *RemoteRepoSource {
	return &RemoteRepoSource{
		ArchiveURL: archiveURL,
		Include:    include,
		Exclude:    exclude,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Validate checks the archive is reachable before committing to a download.
func (s *RemoteRepoSource) Validate(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, s.ArchiveURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request; %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("repository unreachable; %w", err)
	}
	resp.Body.Close()

	// Some archive hosts reject HEAD; fall back to a ranged GET.
	if resp.StatusCode == http.StatusMethodNotAllowed {
		req, err = http.NewRequestWithContext(probeCtx, http.MethodGet, s.ArchiveURL, nil)
		if err != nil {
			return fmt.Errorf("failed to build probe request; %w", err)
		}
		req.Header.Set("Range", "bytes=0-0")
		resp, err = s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("repository unreachable; %w", err)
		}
		resp.Body.Close()
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("repository archive returned %d for %s", resp.StatusCode, s.ArchiveURL)
	}
	return nil
}

// Fetch downloads the archive and extracts it into virtual entries.
func (s *RemoteRepoSource) Fetch(ctx context.Context) ([]VirtualEntry, error) {
	if err := s.Validate(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ArchiveURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request; %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive download failed; %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive; %w", err)
	}
	if int64(len(data)) > maxArchiveBytes {
		return nil, fmt.Errorf("archive exceeds %d bytes", int64(maxArchiveBytes))
	}

	entries, err := ExtractZip(data, s.Include, s.Exclude)
	if err != nil {
		return nil, err
	}
	repo := repoNameFromURL(s.ArchiveURL)
	for i := range entries {
		entries[i].Metadata["source"] = "remote-repo"
		if repo != "" {
			entries[i].Metadata["repository"] = repo
		}
	}
	return entries, nil
}

func repoNameFromURL(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	parts := strings.Split(url, "/")
	if len(parts) >= 3 {
		return parts[1] + "/" + parts[2]
	}
	return ""
}
