package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dailycast/internal/services"
	"dailycast/internal/testsupport"
)

func TestParseProbeHeights(t *testing.T) {
	raw := []byte(`{
        "formats": [
            {"height": 0, "vcodec": "none"},
            {"height": 360, "vcodec": "avc1"},
            {"height": 1080, "vcodec": "vp9"},
            {"height": 1080, "vcodec": "avc1"},
            {"height": 720, "vcodec": "vp9"},
            {"height": 1080, "vcodec": "none"}
        ]
    }`)
	heights, err := parseProbeHeights(raw)
	if err != nil {
		t.Fatalf("parseProbeHeights failed: %v", err)
	}
	want := []int{1080, 720, 360}
	if len(heights) != len(want) {
		t.Fatalf("expected %v, got %v", want, heights)
	}
	for i := range want {
		if heights[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, heights)
		}
	}
}

func TestParseProbeHeightsRejectsGarbage(t *testing.T) {
	if _, err := parseProbeHeights([]byte("not json")); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestResolveTierPrefersHigherTier(t *testing.T) {
	tier, err := ResolveTier([]int{2160, 1440, 1080, 720}, []int{2160, 1080})
	if err != nil {
		t.Fatalf("ResolveTier failed: %v", err)
	}
	if tier != 2160 {
		t.Fatalf("expected 2160, got %d", tier)
	}

	tier, err = ResolveTier([]int{1080, 720}, []int{2160, 1080})
	if err != nil {
		t.Fatalf("ResolveTier failed: %v", err)
	}
	if tier != 1080 {
		t.Fatalf("expected 1080, got %d", tier)
	}
}

func TestResolveTierEscalatesWhenNothingMatches(t *testing.T) {
	_, err := ResolveTier([]int{720, 480}, []int{2160, 1080})
	if !errors.Is(err, services.ErrTierUnavailable) {
		t.Fatalf("expected tier unavailable, got %v", err)
	}
	if !services.IsEscalation(err) {
		t.Fatal("expected error to classify as escalation")
	}
}

func TestFormatSelector(t *testing.T) {
	if got := formatSelector(1080); got != "bv*[height<=1080]+ba/b[height<=1080]" {
		t.Fatalf("unexpected selector %q", got)
	}
	if got := formatSelector(0); got != "bv*+ba/b" {
		t.Fatalf("unexpected fallback selector %q", got)
	}
}

func TestFindDownloadedFileSkipsPartials(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "abc123.mp4"), []byte("full video"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "abc123.mp4.part"), []byte("partial partial partial"), 0o644); err != nil {
		t.Fatalf("write partial: %v", err)
	}

	path, err := findDownloadedFile(dir)
	if err != nil {
		t.Fatalf("findDownloadedFile failed: %v", err)
	}
	if filepath.Base(path) != "abc123.mp4" {
		t.Fatalf("expected merged file, got %s", path)
	}
}

func TestFindDownloadedFileReportsEmptyDir(t *testing.T) {
	if _, err := findDownloadedFile(t.TempDir()); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

// writeStub writes an executable shell script standing in for yt-dlp.
func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp-stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestProbeRunsBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fetcher := NewFetcher(cfg)
	fetcher.Binary = writeStub(t, `echo '{"formats": [{"height": 1080, "vcodec": "vp9"}]}'`)

	heights, err := fetcher.Probe(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if len(heights) != 1 || heights[0] != 1080 {
		t.Fatalf("unexpected heights %v", heights)
	}
}

func TestProbeSurfacesToolFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fetcher := NewFetcher(cfg)
	fetcher.Binary = writeStub(t, `echo "ERROR: video unavailable" >&2; exit 1`)

	_, err := fetcher.Probe(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestFetchDownloadsIntoStaging(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fetcher := NewFetcher(cfg)
	// The stub reads the -P argument and drops a file there, like a
	// real download would.
	fetcher.Binary = writeStub(t, `
dir=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-P" ]; then dir="$arg"; fi
  prev="$arg"
done
echo "[download]   0.0% of ~10MiB"
echo "[download] 100% of 10MiB"
printf 'video' > "$dir/dQw4w9WgXcQ.mp4"
`)

	var lines []string
	path, err := fetcher.Fetch(context.Background(), 7, "https://youtu.be/dQw4w9WgXcQ", 1080, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if filepath.Base(path) != "dQw4w9WgXcQ.mp4" {
		t.Fatalf("unexpected path %s", path)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 progress lines, got %d", len(lines))
	}

	if err := fetcher.Cleanup(7); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if _, err := os.Stat(fetcher.StagingDir(7)); !os.IsNotExist(err) {
		t.Fatal("expected staging dir removed")
	}
}
