// Package web includes the static web pages for the monitoring tool.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

//go:embed dist/*
var staticAssets embed.FS

// DevModeEnv is the environment variable that makes the monitor serve the
// pages from the source tree instead of the embedded copy.
const DevModeEnv = "NUCASIM_MONITOR_DEV"

// GetAssets returns the static assets
func GetAssets() http.FileSystem {
	if isDevelopmentMode() {
		_, assetPath, _, ok := runtime.Caller(0)
		if !ok {
			panic("error getting path")
		}

		assetPath = path.Join(path.Dir(assetPath), "dist")

		logrus.WithField("path", assetPath).
			Info("Monitor in development mode, serving assets from disk")

		return http.Dir(assetPath)
	}

	subFS, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(subFS)
}

func isDevelopmentMode() bool {
	v, exist := os.LookupEnv(DevModeEnv)
	if !exist {
		return false
	}

	return strings.ToLower(v) == "true" || v == "1"
}
