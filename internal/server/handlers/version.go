package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/docgate/docgate/internal/appid"
)

// Build metadata injected from main via SetVersionInfo.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
)

var (
	versionMu   sync.RWMutex
	appIdentity *appid.Identity
	gateInfo    GateInfo
)

// SetVersionInfo records build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

// SetAppIdentity names the binary reported on /version.
func SetAppIdentity(identity *appid.Identity) {
	versionMu.Lock()
	defer versionMu.Unlock()
	appIdentity = identity
}

// SetGateInfo publishes the configured quota on /version.
func SetGateInfo(limit int, period string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	gateInfo = GateInfo{Limit: limit, Period: period}
}

// VersionResponse is the /version payload.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Gate         GateInfo    `json:"gate"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// GateInfo describes the admission quota the relay enforces.
type GateInfo struct {
	Limit  int    `json:"limit,omitempty"`
	Period string `json:"period,omitempty"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

func binaryName(identity *appid.Identity) string {
	if identity != nil && identity.BinaryName != "" {
		return identity.BinaryName
	}
	if len(os.Args) > 0 && os.Args[0] != "" {
		return filepath.Base(os.Args[0])
	}
	return "unknown"
}

func buildVersionResponse() VersionResponse {
	versionMu.RLock()
	identity, gate := appIdentity, gateInfo
	versionMu.RUnlock()

	deps := crucible.GetVersion()
	return VersionResponse{
		App: AppInfo{
			Name:      binaryName(identity),
			Version:   AppVersion,
			Commit:    AppCommit,
			BuildDate: AppBuildDate,
			GoVersion: runtime.Version(),
		},
		Gate:         gate,
		Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	}
}

// VersionHandler serves build, quota, and runtime details.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildVersionResponse())
}
