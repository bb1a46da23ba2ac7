package health

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Paths are the URL paths the handlers are mounted at.
type Paths struct {
	Liveness  string
	Readiness string
	Version   string
}

// LivenessHandler serves the liveness endpoint. It always answers 200 while
// the process is up.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler serves the readiness endpoint: 200 when every check
// passes, 503 otherwise.
//
// Example response while draining:
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "lifecycle": {"status": "unhealthy", "message": "worker is draining"},
//	        "listeners": {"status": "unhealthy", "message": "no listener is accepting connections"},
//	        "backend": {"status": "ok"}
//	    },
//	    "timestamp": "2026-10-17T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.CheckReadiness(r.Context())

		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler serves build information.
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		writeJSON(w, r, http.StatusOK, info)
	}
}

// Mount registers the liveness, readiness and version handlers on mux.
// Empty paths are skipped.
func Mount(mux *http.ServeMux, checker *Checker, paths Paths, info VersionInfo) {
	if paths.Liveness != "" {
		mux.HandleFunc(paths.Liveness, checker.LivenessHandler())
	}
	if paths.Readiness != "" {
		mux.HandleFunc(paths.Readiness, checker.ReadinessHandler())
	}
	if paths.Version != "" {
		mux.HandleFunc(paths.Version, VersionHandler(info.Version, info.Commit, info.BuildTime))
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}
