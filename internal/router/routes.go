package router

import "strings"

// Well known paths.
const (
	RootPath      = "/"
	LoginPath     = "/login"
	RegisterPath  = "/register"
	DashboardPath = "/dashboard"

	// LandingPath is the default route of an authenticated user.
	LandingPath = "/dashboard/fingerprint-recognition"
)

// Route is one navigable page of the console.
type Route struct {
	Path          string `json:"path"`
	Name          string `json:"name,omitempty"`
	RequiresAuth  bool   `json:"requires_auth"`
	RequiresAdmin bool   `json:"requires_admin"`

	// Redirect makes the route an alias of another path.
	Redirect string `json:"redirect,omitempty"`
}

var routes = []Route{
	{Path: RootPath, Redirect: LoginPath},
	{Path: LoginPath, Name: "Login"},
	{Path: RegisterPath, Name: "Register"},
	{Path: DashboardPath, Name: "Dashboard", Redirect: LandingPath},
	{Path: LandingPath, Name: "FingerprintRecognition", RequiresAuth: true},
	{Path: "/dashboard/fingerprint-library", Name: "FingerprintLibrary", RequiresAuth: true},
	{Path: "/dashboard/recognition-reports", Name: "RecognitionReports", RequiresAuth: true},
	{Path: "/dashboard/user-management", Name: "UserManagement", RequiresAuth: true, RequiresAdmin: true},
	{Path: "/dashboard/system-logs", Name: "SystemLogs", RequiresAuth: true, RequiresAdmin: true},
}

var byPath = func() map[string]Route {
	m := make(map[string]Route, len(routes))
	for _, r := range routes {
		m[r.Path] = r
	}
	return m
}()

// Routes returns the route table in declaration order.
func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}

// Lookup finds the route for path. A trailing slash is ignored.
func Lookup(path string) (Route, bool) {
	r, ok := byPath[normalize(path)]
	return r, ok
}

func normalize(path string) string {
	if path == "" {
		return RootPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return RootPath
		}
	}
	return path
}
