package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"geotagger/internal/testsupport"
)

func TestScanClassifiesAndSorts(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"b/IMG_0002.JPG",
		"a/IMG_0001.jpg",
		"a/flight.csv",
		"a/notes.txt",
		"a/.hidden.jpg",
		"a/._IMG_0001.jpg",
		"__MACOSX/a/IMG_0001.jpg",
		"Thumbs.db",
		"PurwayGeotagger_20240101_000000/GEOTAGGED/IMG_0001.jpg",
		"c/photo.jpeg",
		"c/LOG.CSV",
	} {
		testsupport.WriteFile(t, filepath.Join(root, rel), 4)
	}

	s := Scanner{SkipDirPrefixes: []string{"PurwayGeotagger_"}}
	res, err := s.Scan(context.Background(), []string{root})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	base, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatal(err)
	}
	wantPhotos := []string{
		filepath.Join(base, "a/IMG_0001.jpg"),
		filepath.Join(base, "b/IMG_0002.JPG"),
		filepath.Join(base, "c/photo.jpeg"),
	}
	wantLogs := []string{
		filepath.Join(base, "a/flight.csv"),
		filepath.Join(base, "c/LOG.CSV"),
	}
	if diff := cmp.Diff(wantPhotos, res.Photos); diff != "" {
		t.Fatalf("photos mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantLogs, res.Logs); diff != "" {
		t.Fatalf("logs mismatch (-want +got):\n%s", diff)
	}
}

func TestScanDeduplicatesOverlappingInputs(t *testing.T) {
	root := t.TempDir()
	photo := filepath.Join(root, "sub", "IMG_0001.jpg")
	testsupport.WriteFile(t, photo, 4)

	res, err := Scanner{}.Scan(context.Background(), []string{root, filepath.Join(root, "sub"), photo, photo})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Photos) != 1 {
		t.Fatalf("expected 1 photo after dedupe, got %v", res.Photos)
	}
}

func TestScanSkipsMissingInputs(t *testing.T) {
	res, err := Scanner{}.Scan(context.Background(), []string{filepath.Join(t.TempDir(), "missing"), ""})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Photos) != 0 || len(res.Logs) != 0 {
		t.Fatalf("expected empty result, got %#v", res)
	}
}

func TestScanDoesNotFollowDirectorySymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(outside, "IMG_0009.jpg"), 4)
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	res, err := Scanner{}.Scan(context.Background(), []string{root})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Photos) != 0 {
		t.Fatalf("expected symlinked dir to be skipped, got %v", res.Photos)
	}
}

func TestScanHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Scanner{}).Scan(ctx, []string{t.TempDir()}); err == nil {
		t.Fatal("expected context error")
	}
}
