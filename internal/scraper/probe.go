package scraper

import (
	"context"
	"net/http"
)

// probeReachable answers a lightweight liveness question: does the posting
// URL still resolve to a 200? Any network failure reports false —
// conservatively expiring a possibly-live record beats keeping a zombie
// active indefinitely.
func probeReachable(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
