package release

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want Version
	}{
		{"v1.2.3", "v1.2.3"},
		{"1.2.3", "v1.2.3"},
		{"  Release v10.0.15 (stable)", "v10.0.15"},
		{"note-gen-v0.19.2", "v0.19.2"},
		{"v01.02.03", "v1.2.3"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.raw)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("Normalize(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}

	if _, err := Normalize("latest"); err == nil {
		t.Fatal("expected error for text without a version")
	}
}

func TestTagTemplates(t *testing.T) {
	v := Version("v0.19.2")
	if got := v.Tag(""); got != "v0.19.2" {
		t.Fatalf("empty template: %s", got)
	}
	if got := v.Tag("note-gen-v{version}"); got != "note-gen-v0.19.2" {
		t.Fatalf("prefixed template: %s", got)
	}
	if got := v.Tag("{tag}"); got != "v0.19.2" {
		t.Fatalf("tag placeholder: %s", got)
	}
	if v.Clean() != "0.19.2" {
		t.Fatalf("Clean: %s", v.Clean())
	}
}

func TestCompare(t *testing.T) {
	c, err := Version("v1.10.0").Compare("v1.9.9")
	if err != nil {
		t.Fatal(err)
	}
	if c != 1 {
		t.Fatalf("expected v1.10.0 > v1.9.9, got %d", c)
	}
	c, _ = Version("v2.0.0").Compare("v2.0.0")
	if c != 0 {
		t.Fatalf("expected equal, got %d", c)
	}
}

func TestVersionFromTagPath(t *testing.T) {
	if v, ok := versionFromTagPath("https://github.com/a/b/releases/tag/v1.4.16"); !ok || v != "1.4.16" {
		t.Fatalf("got %q %v", v, ok)
	}
	if _, ok := versionFromTagPath("https://github.com/a/b/releases/latest"); ok {
		t.Fatal("latest URL carries no version")
	}
}
