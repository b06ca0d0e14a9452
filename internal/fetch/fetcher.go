package fetch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"dailycast/internal/config"
	"dailycast/internal/services"
)

// Fetcher runs yt-dlp against a staging directory.
type Fetcher struct {
	// Binary is the yt-dlp executable; overridable for tests.
	Binary     string
	stagingDir string
}

// NewFetcher builds a fetcher from configuration.
func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{
		Binary:     cfg.YtdlpBinary(),
		stagingDir: cfg.Paths.StagingDir,
	}
}

type probePayload struct {
	Formats []struct {
		Height int    `json:"height"`
		VCodec string `json:"vcodec"`
	} `json:"formats"`
}

// Probe returns the distinct video heights a source offers, best first.
func (f *Fetcher) Probe(ctx context.Context, sourceURL string) ([]int, error) {
	cmd := exec.CommandContext(ctx, f.Binary, "--no-playlist", "-J", sourceURL)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: probe: %v: %s", services.ErrExternalTool, err, firstLine(stderr.String()))
	}
	return parseProbeHeights(stdout.Bytes())
}

func parseProbeHeights(raw []byte) ([]int, error) {
	var payload probePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: parse probe output: %v", services.ErrExternalTool, err)
	}
	seen := make(map[int]struct{})
	var heights []int
	for _, format := range payload.Formats {
		if format.Height <= 0 || format.VCodec == "" || format.VCodec == "none" {
			continue
		}
		if _, ok := seen[format.Height]; ok {
			continue
		}
		seen[format.Height] = struct{}{}
		heights = append(heights, format.Height)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(heights)))
	return heights, nil
}

// ResolveTier picks the best configured tier the source actually offers.
// When no tier matches, it returns ErrTierUnavailable so the caller can
// escalate to the operator.
func ResolveTier(available, tiers []int) (int, error) {
	offered := make(map[int]struct{}, len(available))
	for _, height := range available {
		offered[height] = struct{}{}
	}
	for _, tier := range tiers {
		if _, ok := offered[tier]; ok {
			return tier, nil
		}
	}
	return 0, fmt.Errorf("%w: none of the preferred tiers offered (available: %v)", services.ErrTierUnavailable, available)
}

// StagingDir returns the per-item scratch directory.
func (f *Fetcher) StagingDir(itemID int64) string {
	return filepath.Join(f.stagingDir, fmt.Sprintf("item-%d", itemID))
}

// Cleanup removes an item's scratch directory and everything in it.
func (f *Fetcher) Cleanup(itemID int64) error {
	return os.RemoveAll(f.StagingDir(itemID))
}

// Fetch downloads a source video capped at the given height into the
// item's staging directory and returns the downloaded file path. Each
// output line from yt-dlp is forwarded to progress when set.
func (f *Fetcher) Fetch(ctx context.Context, itemID int64, sourceURL string, height int, progress func(line string)) (string, error) {
	dir := f.StagingDir(itemID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	args := []string{
		"--no-playlist",
		"--newline",
		"--restrict-filenames",
		"-P", dir,
		"-o", "%(id)s.%(ext)s",
		"-f", formatSelector(height),
		"--merge-output-format", "mp4",
		sourceURL,
	}

	cmd := exec.CommandContext(ctx, f.Binary, args...)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("setup stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: start download: %v", services.ErrExternalTool, err)
	}

	scanner := bufio.NewScanner(stdoutPipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if progress != nil {
			progress(scanner.Text())
		}
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("%w: download: %v: %s", services.ErrExternalTool, err, firstLine(stderr.String()))
	}

	return findDownloadedFile(dir)
}

// formatSelector builds the yt-dlp format expression for a height cap.
func formatSelector(height int) string {
	if height <= 0 {
		return "bv*+ba/b"
	}
	return fmt.Sprintf("bv*[height<=%d]+ba/b[height<=%d]", height, height)
}

// findDownloadedFile returns the largest regular file in the staging
// directory; merge leftovers like .part files are smaller than the
// final output.
func findDownloadedFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read staging dir: %w", err)
	}
	var (
		best     string
		bestSize int64 = -1
	)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(dir, entry.Name())
			bestSize = info.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: download produced no file in %s", services.ErrExternalTool, dir)
	}
	return best, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
