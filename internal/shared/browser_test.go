package shared

import (
	"path/filepath"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	tt := []struct {
		goos string
		bin  string
	}{
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
		{"windows", "rundll32"},
	}

	for _, tc := range tt {
		t.Run(tc.goos, func(t *testing.T) {
			cmd, err := browserCommand(tc.goos, "http://127.0.0.1:3000")
			if err != nil {
				t.Fatalf("browserCommand() error = %v", err)
			}
			if got := filepath.Base(cmd.Args[0]); got != tc.bin {
				t.Errorf("expected %s, got %s", tc.bin, got)
			}
			if last := cmd.Args[len(cmd.Args)-1]; last != "http://127.0.0.1:3000" {
				t.Errorf("expected url as last arg, got %s", last)
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		orig := getRuntime
		defer func() { getRuntime = orig }()
		getRuntime = func() string { return "plan9" }

		if err := OpenBrowser("http://example.com"); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})
}
