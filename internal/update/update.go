// Package update checks GitHub Releases for a newer dealradar build.
// Purely advisory: the TUI shows a hint in the header, nothing more.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const releaseURL = "https://api.github.com/repos/dealradar/dealradar/releases/latest"

// Result reports the newer version that is available.
type Result struct {
	LatestVersion string
}

// Check asks GitHub for the latest release tag and compares it against
// currentVersion. It never returns an error: network trouble, a missing
// repo or an up-to-date build all come back as nil. Dev builds ("dev")
// are never prompted to update.
func Check(ctx context.Context, currentVersion string) *Result {
	current := strings.TrimPrefix(currentVersion, "v")
	if current == "" || current == "dev" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	latest, err := latestTag(ctx)
	if err != nil {
		return nil
	}
	latest = strings.TrimPrefix(latest, "v")
	if latest == "" || latest == current {
		return nil
	}
	return &Result{LatestVersion: latest}
}

func latestTag(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release lookup status %d", resp.StatusCode)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", err
	}
	return release.TagName, nil
}
