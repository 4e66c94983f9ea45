package fileutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSanitizeFolderName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Kein Mucks", "Kein Mucks"},
		{"illegal chars", `a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"collapse whitespace", "too   many\tspaces", "too many spaces"},
		{"trim dots and spaces", " .title. ", "title"},
		{"umlauts survive", "Hörspiel für alle", "Hörspiel für alle"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeFolderName(tc.in); got != tc.want {
				t.Errorf("SanitizeFolderName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}

	long := make([]byte, 0, 150)
	for i := 0; i < 150; i++ {
		long = append(long, 'x')
	}
	if got := SanitizeFolderName(string(long)); len(got) != MaxFolderNameLength {
		t.Errorf("long name capped to %d chars, want %d", len(got), MaxFolderNameLength)
	}
}

func TestSanitizeFolderNameDeterministic(t *testing.T) {
	in := "Die  Sendung: Teil 1/2?"
	if SanitizeFolderName(in) != SanitizeFolderName(in) {
		t.Fatal("sanitizing is not deterministic")
	}
}

func TestProgramFolderName(t *testing.T) {
	if got := ProgramFolderName("12345", "My Show"); got != "12345 My Show" {
		t.Errorf("got %q", got)
	}
	if got := ProgramFolderName("12345", ""); got != "12345" {
		t.Errorf("got %q, want bare id", got)
	}
}

func TestFilenameStem(t *testing.T) {
	cases := []struct {
		title string
		id    string
		want  string
	}{
		{"Folge 1: Der Anfang", "e42", "Folge_1_Der_Anfang_e42"},
		{"", "e42", "e42_e42"},
		{"!!!", "e42", "e42_e42"},
		{"Hörbuch", "7", "Hörbuch_7"},
	}
	for _, tc := range cases {
		if got := FilenameStem(tc.title, tc.id); got != tc.want {
			t.Errorf("FilenameStem(%q, %q) = %q, want %q", tc.title, tc.id, got, tc.want)
		}
	}
}

func TestCompareJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.json")

	type doc struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	if CompareJSONFile(path, doc{ID: "1"}) {
		t.Error("missing file must compare unequal")
	}

	if err := WriteJSON(path, doc{ID: "1", Title: "t"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !CompareJSONFile(path, doc{ID: "1", Title: "t"}) {
		t.Error("identical document must compare equal")
	}
	if CompareJSONFile(path, doc{ID: "1", Title: "changed"}) {
		t.Error("different document must compare unequal")
	}

	// Data equality, not text equality: compact formatting still matches.
	if err := os.WriteFile(path, []byte(`{"id":"1","title":"t"}`), 0o644); err != nil {
		t.Fatalf("write compact: %v", err)
	}
	if !CompareJSONFile(path, doc{ID: "1", Title: "t"}) {
		t.Error("compact file with same data must compare equal")
	}

	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	if CompareJSONFile(path, doc{ID: "1", Title: "t"}) {
		t.Error("corrupt file must compare unequal")
	}
}

func TestBackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.mp3")
	original := []byte("original bytes")
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	backupPath, err := BackupFile(path)
	if err != nil {
		t.Fatalf("BackupFile: %v", err)
	}
	if backupPath != path+BackupSuffix {
		t.Errorf("backup path = %q", backupPath)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original must be gone after backup")
	}

	if err := RestoreBackup(backupPath, path); err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}
	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if string(restored) != string(original) {
		t.Error("restored bytes differ from original")
	}
	if _, err := os.Stat(backupPath); !os.IsNotExist(err) {
		t.Error("backup must be gone after restore")
	}
}

func TestBackupMissingFile(t *testing.T) {
	if _, err := BackupFile(filepath.Join(t.TempDir(), "nope.mp3")); err == nil {
		t.Fatal("expected error backing up missing file")
	}
}

func TestSetModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, stamp := range []string{
		"2023-12-01T10:00:00.000Z",
		"2023-12-01T10:00:00Z",
		"2023-12-01T10:00:00",
	} {
		if err := SetModTime(path, stamp); err != nil {
			t.Errorf("SetModTime(%q): %v", stamp, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	want := time.Date(2023, 12, 1, 10, 0, 0, 0, time.UTC)
	if !info.ModTime().UTC().Equal(want) {
		t.Errorf("mtime = %v, want %v", info.ModTime().UTC(), want)
	}

	if err := SetModTime(path, "not a date"); err == nil {
		t.Error("expected error for garbage date")
	}
}
