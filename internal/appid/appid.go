// Package appid holds the application identity used for naming config
// paths, env prefixes, and telemetry namespaces.
package appid

import (
	"context"
	"os"
	"strings"
)

// EnvNamespace overrides the telemetry namespace when set.
const EnvNamespace = "DOCGATE_TELEMETRY_NAMESPACE"

// Identity describes the application.
type Identity struct {
	BinaryName  string
	ConfigName  string
	EnvPrefix   string
	Vendor      string
	Description string
	Namespace   string
}

var identity = Identity{
	BinaryName:  "docgate",
	ConfigName:  "docgate",
	EnvPrefix:   "DOCGATE_",
	Vendor:      "docgate",
	Description: "Rate-limited document submission client",
}

// Get returns the application identity. The context is accepted for parity
// with loaders that resolve identity from disk.
func Get(_ context.Context) (*Identity, error) {
	id := identity
	if ns := strings.TrimSpace(os.Getenv(EnvNamespace)); ns != "" {
		id.Namespace = ns
	}
	return &id, nil
}

// TelemetryNamespace returns the metric namespace, defaulting to the binary name.
func (i *Identity) TelemetryNamespace() string {
	if i == nil {
		return ""
	}
	if ns := strings.TrimSpace(i.Namespace); ns != "" {
		return ns
	}
	return strings.ReplaceAll(i.BinaryName, "-", "_")
}
