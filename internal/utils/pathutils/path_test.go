package pathutils

import (
	"path/filepath"
	"testing"
)

func TestToAbsolutePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/.config/deltasync", filepath.Join(home, ".config", "deltasync")},
		{"/var/lib/deltasync", "/var/lib/deltasync"},
	}
	for _, tt := range tests {
		got, err := ToAbsolutePath(tt.in)
		if err != nil {
			t.Fatalf("ToAbsolutePath(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ToAbsolutePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	rel, err := ToAbsolutePath("state")
	if err != nil || !filepath.IsAbs(rel) {
		t.Errorf("relative path not made absolute: %q, %v", rel, err)
	}
}

func TestToHomePathFormat(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := ToHomePathFormat(filepath.Join(home, ".config", "deltasync", "config.yml")); got != filepath.Join("~", ".config", "deltasync", "config.yml") {
		t.Errorf("got %q", got)
	}
	if got := ToHomePathFormat("/etc/deltasync.yml"); got != "/etc/deltasync.yml" {
		t.Errorf("got %q", got)
	}
}
