package resource

import "testing"

func TestResolve(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantType Type
		wantOK   bool
	}{
		{"episode urn", "urn:ard:episode:123456789", TypeEpisode, true},
		{"page urn", "urn:ard:page:abcdef", TypeCollection, true},
		{"show urn", "urn:ard:show:e01e22ff9344b2a4", TypeProgram, true},
		{"other urn", "urn:ard:publication:42", TypeProgram, true},
		{"numeric", "12345678", TypeProgram, true},
		{"alphanumeric", "ps1", TypeProgram, true},
		{"empty", "", "", false},
		{"punctuation", "not/a/resource!", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info, ok := Resolve(tc.input)
			if ok != tc.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tc.input, ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if info.Type != tc.wantType {
				t.Errorf("Resolve(%q) type = %q, want %q", tc.input, info.Type, tc.wantType)
			}
			if info.ID != tc.input {
				t.Errorf("Resolve(%q) id = %q, want input echoed back", tc.input, info.ID)
			}
		})
	}
}

func TestParseURL(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		wantType Type
		wantID   string
		wantOK   bool
	}{
		{
			"episode urn with trailing slash",
			"https://example.org/folge/x/urn:ard:episode:999/",
			TypeEpisode, "urn:ard:episode:999", true,
		},
		{
			"show urn",
			"https://www.ardaudiothek.de/sendung/kein-mucks/urn:ard:show:e01e22ff9344b2a4/",
			TypeProgram, "urn:ard:show:e01e22ff9344b2a4", true,
		},
		{
			"numeric trailing segment",
			"https://www.ardaudiothek.de/sendung/foo/12345678",
			TypeProgram, "12345678", true,
		},
		{
			"urn beats earlier numeric segment",
			"https://example.org/123/urn:ard:page:home/",
			TypeCollection, "urn:ard:page:home", true,
		},
		{"no trailing id", "https://www.ardaudiothek.de/suche", "", "", false},
		{"plain text", "hello world", "", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info, ok := ParseURL(tc.url)
			if ok != tc.wantOK {
				t.Fatalf("ParseURL(%q) ok = %v, want %v", tc.url, ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if info.Type != tc.wantType || info.ID != tc.wantID {
				t.Errorf("ParseURL(%q) = (%q, %q), want (%q, %q)", tc.url, info.Type, info.ID, tc.wantType, tc.wantID)
			}
		})
	}
}
