package handler

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
)

type packageInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HandlePackages lists the module dependencies compiled into the
// running binary, from the build info embedded by the Go linker.
func HandlePackages(w http.ResponseWriter, r *http.Request) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		writeError(w, http.StatusInternalServerError, "Build info is not embedded in this binary.")
		return
	}

	packages := make([]packageInfo, 0, len(info.Deps))
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			dep = dep.Replace
		}
		packages = append(packages, packageInfo{Name: dep.Path, Version: dep.Version})
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })

	writeJSON(w, http.StatusOK, map[string]any{
		"total_packages": len(packages),
		"go_version":     info.GoVersion,
		"module":         info.Main.Path,
		"packages":       packages,
	})
}

// HandlePackageInfo reports one module dependency by path. Module paths
// contain slashes, so the route matches the rest of the path.
func HandlePackageInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		writeError(w, http.StatusInternalServerError, "Build info is not embedded in this binary.")
		return
	}

	name := r.PathValue("name")
	for _, dep := range info.Deps {
		mod := dep
		if mod.Replace != nil {
			mod = mod.Replace
		}
		if mod.Path != name && dep.Path != name {
			continue
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"name":    mod.Path,
			"version": mod.Version,
			"sum":     mod.Sum,
		})
		return
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("Package '%s' not found", name))
}
