//go:build !windows

package launcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStartDirectRunsDownloadedFileWithoutExecuteBit(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	path := filepath.Join(dir, "setup.sh")
	script := "#!/bin/sh\ntouch '" + marker + "'\n"
	// Same permissions os.Create gives a downloaded installer.
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		t.Fatal(err)
	}

	if err := startDirect(context.Background(), path); err != nil {
		t.Fatalf("startDirect: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("installer mode %v has no owner execute bit", info.Mode().Perm())
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(marker); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("installer was started but never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestEnsureExecutableKeepsExistingBits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setup.bin")
	if err := os.WriteFile(path, []byte("x"), 0750); err != nil {
		t.Fatal(err)
	}
	if err := ensureExecutable(path); err != nil {
		t.Fatalf("ensureExecutable: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0751 {
		t.Fatalf("mode = %o, want 751", got)
	}
}
