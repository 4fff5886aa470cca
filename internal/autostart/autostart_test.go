package autostart

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDesktopEntry(t *testing.T) {
	content := desktopEntry(Desktop, "/opt/enviromoon/enviromoon")

	for _, want := range []string{
		"Name=EnviroMoon",
		"Exec=/opt/enviromoon/enviromoon --minimized",
		"Icon=enviromoon",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Desktop entry missing %q:\n%s", want, content)
		}
	}
}

func TestLaunchAgent(t *testing.T) {
	content := launchAgent(Desktop, "/Applications/EnviroMoon.app/Contents/MacOS/enviromoon")

	if !strings.Contains(content, "<string>com.enviromoon</string>") {
		t.Error("Missing label")
	}
	if !strings.Contains(content, "<string>--minimized</string>") {
		t.Error("Missing argument")
	}
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		path     string
		args     []string
		expected string
	}{
		{"/usr/bin/enviromoon", nil, "/usr/bin/enviromoon"},
		{"/usr/bin/enviromoon", []string{"--minimized"}, "/usr/bin/enviromoon --minimized"},
		{`C:\Program Files\EnviroMoon\enviromoon.exe`, []string{"--minimized"}, `"C:\Program Files\EnviroMoon\enviromoon.exe" --minimized`},
	}

	for _, tt := range tests {
		if got := commandLine(tt.path, tt.args); got != tt.expected {
			t.Errorf("commandLine() = %s, want %s", got, tt.expected)
		}
	}
}

func TestSync_Linux(t *testing.T) {
	if runtime.GOOS != osLinux {
		t.Skip("XDG autostart is Linux only")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	entry := Entry{Name: "enviromoon-test", DisplayName: "Test"}

	if err := Sync(entry, true); err != nil {
		t.Fatalf("Sync(true) error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "autostart", "enviromoon-test.desktop")); err != nil {
		t.Fatalf("Desktop file not written: %v", err)
	}
	if enabled, _ := IsEnabled(entry); !enabled {
		t.Error("IsEnabled() = false after enabling")
	}

	if err := Sync(entry, false); err != nil {
		t.Fatalf("Sync(false) error = %v", err)
	}
	if enabled, _ := IsEnabled(entry); enabled {
		t.Error("IsEnabled() = true after disabling")
	}
	if err := Disable(entry); err != nil {
		t.Errorf("Disabling twice should not fail: %v", err)
	}
}
