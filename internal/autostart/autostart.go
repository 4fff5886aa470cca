// Package autostart handles auto-start functionality across platforms
package autostart

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// OS constants
	osLinux   = "linux"
	osWindows = "windows"
	osDarwin  = "darwin"

	runKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`
)

// Entry describes a program registered to start at login
type Entry struct {
	Name        string // File and registry key name
	DisplayName string
	Comment     string
	Args        []string
}

// Desktop is the entry of the tray application
var Desktop = Entry{
	Name:        "enviromoon",
	DisplayName: "EnviroMoon",
	Comment:     "Environmental monitor tray dashboard",
	Args:        []string{"--minimized"},
}

// Sync enables or disables the entry to match the desired state
func Sync(e Entry, enabled bool) error {
	if enabled {
		return Enable(e)
	}
	return Disable(e)
}

// IsEnabled checks if auto-start is enabled
func IsEnabled(e Entry) (bool, error) {
	switch runtime.GOOS {
	case osLinux:
		return exists(linuxAutostartPath(e))
	case osWindows:
		cmd := exec.Command("reg", "query", runKey, "/v", e.Name) //nolint:gosec // Fixed entry name
		return cmd.Run() == nil, nil
	case osDarwin:
		return exists(macOSLaunchAgentPath(e))
	default:
		return false, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Enable enables auto-start
func Enable(e Entry) error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}

	switch runtime.GOOS {
	case osLinux:
		path, err := linuxAutostartPath(e)
		if err != nil {
			return err
		}
		return writeFile(path, desktopEntry(e, execPath))
	case osWindows:
		//nolint:gosec // G204: execPath comes from os.Executable(), not user input
		cmd := exec.Command("reg", "add", runKey,
			"/v", e.Name,
			"/t", "REG_SZ",
			"/d", commandLine(execPath, e.Args),
			"/f")
		return cmd.Run()
	case osDarwin:
		path, err := macOSLaunchAgentPath(e)
		if err != nil {
			return err
		}
		return writeFile(path, launchAgent(e, execPath))
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Disable disables auto-start
func Disable(e Entry) error {
	switch runtime.GOOS {
	case osLinux:
		path, err := linuxAutostartPath(e)
		if err != nil {
			return err
		}
		return remove(path)
	case osWindows:
		cmd := exec.Command("reg", "delete", runKey, "/v", e.Name, "/f") //nolint:gosec // Fixed entry name
		err := cmd.Run()
		if err != nil && strings.Contains(err.Error(), "not exist") {
			return nil
		}
		return err
	case osDarwin:
		path, err := macOSLaunchAgentPath(e)
		if err != nil {
			return err
		}
		// Unload the agent first (ignore errors as the file may not be loaded)
		//nolint:gosec // G204: path is derived from the home directory, not user input
		_ = exec.Command("launchctl", "unload", path).Run()
		return remove(path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// linuxAutostartPath returns the XDG autostart entry path
func linuxAutostartPath(e Entry) (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "autostart", e.Name+".desktop"), nil
}

func macOSLaunchAgentPath(e Entry) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", "com."+e.Name+".plist"), nil
}

func commandLine(execPath string, args []string) string {
	parts := []string{execPath}
	if strings.ContainsRune(execPath, ' ') {
		parts[0] = `"` + execPath + `"`
	}
	return strings.Join(append(parts, args...), " ")
}

func desktopEntry(e Entry, execPath string) string {
	return fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Exec=%s
Icon=%s
Comment=%s
Categories=Utility;
Terminal=false
StartupNotify=false
X-GNOME-Autostart-enabled=true
`, e.DisplayName, commandLine(execPath, e.Args), e.Name, e.Comment)
}

func launchAgent(e Entry, execPath string) string {
	var args strings.Builder
	for _, a := range append([]string{execPath}, e.Args...) {
		fmt.Fprintf(&args, "        <string>%s</string>\n", a)
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.%s</string>
    <key>ProgramArguments</key>
    <array>
%s    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`, e.Name, args.String())
}

func exists(path string, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	return err == nil, nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0600)
}

func remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
