package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/common-nighthawk/go-figure"
)

const appName = "fpconsole"

type Globals struct {
	Debug   bool
	Version string
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	// Create HTTP server
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

func displayBanner(version string) {
	figure.NewFigure(appName, "cybermedium", true).Print()
	fmt.Printf("\n  version %s\n\n", version)
}
