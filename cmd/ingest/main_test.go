package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func writeConfig(t *testing.T, redisAddr string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`server:
  uploadDir: %s
  embedWorker: true
redis:
  redisAddr: %s
queue:
  prefix: test
taskStore:
  driver: bolt
  boltPath: %s
logger:
  level: error
`, filepath.Join(dir, "uploads"), redisAddr, filepath.Join(dir, "tasks.db"))
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSubmitStatusAndQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cfgPath := writeConfig(t, mr.Addr())

	video := filepath.Join(t.TempDir(), "talk.mp4")
	if err := os.WriteFile(video, []byte("not really a video"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "-c", cfgPath, "submit", "--mime", "video/mp4", video)
	if err != nil {
		t.Fatalf("submit: %v\n%s", err, out)
	}
	m := regexp.MustCompile(`task ([0-9a-f-]{36})`).FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no task id in %q", out)
	}

	out, err = run(t, "-c", cfgPath, "status", m[1])
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "status: InProgress") {
		t.Fatalf("status output = %q", out)
	}

	out, err = run(t, "-c", cfgPath, "queue")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if !regexp.MustCompile(`extract\s+1\s+0\s+0\s+0`).MatchString(out) {
		t.Fatalf("queue output = %q", out)
	}
}

func TestSubmitRejectsNonVideo(t *testing.T) {
	mr := miniredis.RunT(t)
	cfgPath := writeConfig(t, mr.Addr())
	file := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(file, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "-c", cfgPath, "submit", file); err == nil {
		t.Fatal("expected text file to be rejected")
	}
}

func TestSubmitMissingFile(t *testing.T) {
	mr := miniredis.RunT(t)
	cfgPath := writeConfig(t, mr.Addr())
	if _, err := run(t, "-c", cfgPath, "submit", filepath.Join(t.TempDir(), "nope.mp4")); err == nil {
		t.Fatal("expected error")
	}
}
