package startup

import (
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"instantsaver/internal/logging"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

const rule = "------------------------------------------------------------"

// section starts a titled block in the startup log.
func section(format string, args ...interface{}) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(format, args...)
	logging.Info(rule)
}

func logHeader() {
	logging.Println(rule + `
    ____           __              __  _____
   /  _/___  _____/ /_____ _____  / /_/ ___/____ __   _____  _____
   / // __ \/ ___/ __/ __ '/ __ \/ __/\__ \/ __ '/ | / / _ \/ ___/
 _/ // / / (__  ) /_/ /_/ / / / / /_ ___/ / /_/ /| |/ /  __/ /
/___/_/ /_/____/\__/\__,_/_/ /_/\__//____/\__,_/ |___/\___/_/
` + rule)
	logging.Info("  Version:    %s (%s)", Version, Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))

	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs / GOMAXPROCS: %d / %d", runtime.NumCPU(), runtime.GOMAXPROCS(0))
	if hostname, err := os.Hostname(); err == nil {
		logging.Debug("  Hostname:        %s", hostname)
	}
}

// LogPipelineInit logs how the resolution pipeline was wired.
func LogPipelineInit(extractorSlots int, allowSilent bool, cookies bool) {
	section("RESOLUTION PIPELINE")
	logging.Info("  Extractor slots:       %d", extractorSlots)
	logging.Info("  Silent previews:       %s", enabledString(allowSilent))
	logging.Info("  Authenticated fetches: %s", enabledString(cookies))
	logging.Info("  Strategies:            profile-picture | direct-url -> manifest")
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes lists every route template and method registered on router.
// Routes without a method matcher are reported with "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, method := range methods {
			routes = append(routes, RouteInfo{Method: method, Path: path, Name: route.GetName()})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the route table grouped by leading path segment.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	groups := lo.GroupBy(routes, func(r RouteInfo) string { return routeGroup(r.Path) })
	names := lo.Keys(groups)
	slices.Sort(names)

	logging.Info("  %d routes in %d groups", len(routes), len(groups))
	for _, name := range names {
		logging.Debug("  [%s]", lo.Ternary(name == "", "root", name))
		for _, r := range groups[name] {
			logging.Debug("    %-6s %s", r.Method, r.Path)
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// routeGroup names the group a path belongs to: its first segment, or the
// first two under /api.
func routeGroup(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if parts[0] == "api" && len(parts) > 1 {
		return "api/" + parts[1]
	}
	return parts[0]
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening endpoints.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED in %v", config.StartupDuration.Round(time.Millisecond))
	logging.Info("  Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:       DISABLED")
	}
	logging.Info("  Try it:        curl 'http://localhost:%s/resolve?url=https://youtu.be/<id>'", config.Port)
	logging.Info(rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received %s)", signal)
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// FormatUptime renders a duration for health output, e.g. "2h1m0s".
func FormatUptime(d time.Duration) string {
	return d.Round(time.Second).String()
}

func enabledString(enabled bool) string {
	return lo.Ternary(enabled, "ENABLED", "DISABLED")
}
