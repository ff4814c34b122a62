package snapshot

import (
	"context"
	"fmt"
	"os"

	"github.com/cavaliergopher/grab/v3"
)

// Download saves the file at url into dir and returns the local path.
// An existing complete file of the same size is not fetched again.
func Download(ctx context.Context, client *grab.Client, dir string, url string) (string, error) {
	if client == nil {
		client = grab.NewClient()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	req, err := grab.NewRequest(dir, url)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req = req.WithContext(ctx)

	resp := client.Do(req)
	if err := resp.Err(); err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	return resp.Filename, nil
}
