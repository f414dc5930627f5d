package artifacts

import _ "embed"

// Daemon artifacts

//go:embed daemon/config.tmpl
var DaemonConfig string

// Global artifacts

//go:embed global/settings.yaml
var GlobalSettings []byte
