package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRequestTimeout(t *testing.T) {
	t.Setenv("AUDIOTHEK_TIMEOUT_SECONDS", "")
	if got := RequestTimeout(); got != 30*time.Second {
		t.Errorf("default timeout = %v", got)
	}

	t.Setenv("AUDIOTHEK_TIMEOUT_SECONDS", "5")
	if got := RequestTimeout(); got != 5*time.Second {
		t.Errorf("override timeout = %v", got)
	}

	t.Setenv("AUDIOTHEK_TIMEOUT_SECONDS", "not-a-number")
	if got := RequestTimeout(); got != 30*time.Second {
		t.Errorf("garbage override should fall back, got %v", got)
	}

	t.Setenv("AUDIOTHEK_TIMEOUT_SECONDS", "-3")
	if got := RequestTimeout(); got != 30*time.Second {
		t.Errorf("negative override should fall back, got %v", got)
	}
}

func TestCacheDisabled(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"0", false},
		{"no", false},
		{"1", true},
		{"true", true},
		{"YES", true},
		{" True ", true},
	}
	for _, tc := range cases {
		t.Setenv("AUDIOTHEK_DISABLE_CACHE", tc.value)
		if got := CacheDisabled(); got != tc.want {
			t.Errorf("CacheDisabled with %q = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestResolveCacheDir(t *testing.T) {
	temp := t.TempDir()

	explicit, err := ResolveCacheDir(temp)
	if err != nil {
		t.Fatalf("ResolveCacheDir explicit: %v", err)
	}
	assertSamePath(t, explicit, temp)

	t.Setenv("XDG_CACHE_HOME", temp)
	fromXDG, err := ResolveCacheDir("")
	if err != nil {
		t.Fatalf("ResolveCacheDir xdg: %v", err)
	}
	assertSamePath(t, fromXDG, filepath.Join(temp, "audiothek-downloader"))

	t.Setenv("XDG_CACHE_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	fromHome, err := ResolveCacheDir("")
	if err != nil {
		t.Fatalf("ResolveCacheDir home: %v", err)
	}
	assertSamePath(t, fromHome, filepath.Join(home, ".cache", "audiothek-downloader"))
}

func TestClampWorkers(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 4},
		{-5, 1},
		{1, 1},
		{4, 4},
		{16, 16},
		{99, 16},
	}
	for _, tc := range cases {
		if got := ClampWorkers(tc.in); got != tc.want {
			t.Errorf("ClampWorkers(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("AUDIOTHEK_CONFIG", "")
	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings unset: %v", err)
	}
	if settings != (Settings{}) {
		t.Errorf("expected empty settings, got %+v", settings)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	contents := "proxy: socks5://localhost:1080\nfolder: /data/podcasts\nworkers: 8\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	t.Setenv("AUDIOTHEK_CONFIG", path)
	settings, err = LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if settings.Proxy != "socks5://localhost:1080" || settings.Folder != "/data/podcasts" || settings.Workers != 8 {
		t.Errorf("unexpected settings %+v", settings)
	}

	t.Setenv("AUDIOTHEK_CONFIG", filepath.Join(dir, "missing.yaml"))
	if _, err := LoadSettings(); err == nil {
		t.Error("expected error for missing settings file")
	}

	if err := os.WriteFile(path, []byte(":\tnot yaml"), 0o644); err != nil {
		t.Fatalf("write bad settings: %v", err)
	}
	t.Setenv("AUDIOTHEK_CONFIG", path)
	if _, err := LoadSettings(); err == nil {
		t.Error("expected error for malformed settings file")
	}
}

func assertSamePath(t *testing.T, got, want string) {
	t.Helper()
	gotResolved, err := filepath.EvalSymlinks(got)
	if err != nil {
		gotResolved = got
	}
	wantResolved, err := filepath.EvalSymlinks(want)
	if err != nil {
		wantResolved = want
	}
	if gotResolved != wantResolved {
		t.Fatalf("path = %q, want %q", got, want)
	}
}
