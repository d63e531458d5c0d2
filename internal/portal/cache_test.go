package portal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := NewDiskCache(dir, time.Minute)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return now }

	const u = "https://eams.dwc.ca.gov/WebEnhancement/CaseDetail?caseNumber=ADJ1"
	if _, ok := c.Get(u); ok {
		t.Fatalf("unexpected hit on empty cache")
	}
	if err := c.Set(u, "<html>1</html>"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := c.Get(u); !ok || got != "<html>1</html>" {
		t.Fatalf("Get=%q,%v", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(u); ok {
		t.Fatalf("expected expired entry to miss")
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	if len(files) != 0 {
		t.Fatalf("expired entry not removed: %v", files)
	}
}

func TestDiskCache_NoTTLNeverExpires(t *testing.T) {
	t.Parallel()

	c, err := NewDiskCache(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	if err := c.Set("u", "x"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	if got, ok := c.Get("u"); !ok || got != "x" {
		t.Fatalf("Get=%q,%v", got, ok)
	}
}

func TestDiskCache_CorruptFileIsMiss(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := NewDiskCache(dir, 0)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	if err := os.WriteFile(c.pathFor("u"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := c.Get("u"); ok {
		t.Fatalf("expected miss on corrupt entry")
	}
}
