package daemon

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/adrg/xdg"
)

// ServiceLabel names the background service on every platform.
const ServiceLabel = "io.github.jfmyers9.upnp-scribbles"

const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinaryPath}}</string>
		<string>daemon</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>{{.LogPath}}/upnp-scribbles.log</string>
	<key>StandardErrorPath</key>
	<string>{{.LogPath}}/upnp-scribbles.err</string>
	<key>WorkingDirectory</key>
	<string>{{.WorkingDirectory}}</string>
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=UPnP renderer scrobbler
Wants=network-online.target
After=network-online.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} daemon
WorkingDirectory={{.WorkingDirectory}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

// ServiceConfig holds the values substituted into service definitions.
type ServiceConfig struct {
	Label            string
	BinaryPath       string
	LogPath          string
	WorkingDirectory string
}

// Service describes how the daemon is registered on one platform.
type Service struct {
	Path     string // where the definition file is installed
	Contents string
}

// GenerateService renders the service definition for goos: a launchd agent
// on darwin and a systemd user unit elsewhere.
func GenerateService(goos string, cfg ServiceConfig) (*Service, error) {
	if cfg.Label == "" {
		cfg.Label = ServiceLabel
	}

	path, err := ServicePath(goos)
	if err != nil {
		return nil, err
	}

	text := systemdTemplate
	if goos == "darwin" {
		text = plistTemplate
	}

	tmpl, err := template.New("service").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to execute service template: %w", err)
	}

	return &Service{Path: path, Contents: buf.String()}, nil
}

// ServicePath returns where the service definition for goos is installed.
func ServicePath(goos string) (string, error) {
	if goos == "darwin" {
		return filepath.Join(xdg.Home, "Library", "LaunchAgents", ServiceLabel+".plist"), nil
	}
	return xdg.ConfigFile(filepath.Join("systemd", "user", "upnp-scribbles.service"))
}

// DefaultLogPath returns the default directory for daemon logs
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "upnp-scribbles", "logs")
}
