// Package templates holds the server-rendered pages of the import UI. The
// *_templ.go files are generated from the .templ sources with `templ generate`.
package templates

import (
	"strings"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/a-h/templ"
)

// DashboardData feeds the landing page.
type DashboardData struct {
	Organizations []core.Ref
	Recent        []core.ImportRecord
	Sessions      int
	Limiter       core.LimiterStatus
}

// ReviewData feeds the per-session review page.
type ReviewData struct {
	Snapshot core.Snapshot
	Accept   string
	Alert    templ.Component
}

func sessionURL(id, suffix string) templ.SafeURL {
	return templ.URL("/imports/" + id + suffix)
}

func farmNames(farms []*core.StagedFarm) string {
	names := make([]string, len(farms))
	for i, f := range farms {
		names[i] = f.Data.Name
	}
	return strings.Join(names, ", ")
}

// problemCount counts the farmer's own errors plus those of its farms.
func problemCount(f *core.StagedFarmer) int {
	n := len(f.Errors)
	for _, farm := range f.Farms {
		n += len(farm.Errors)
	}
	return n
}

// errorString lets a stored session error go through core.MapError.
type errorString string

func (e errorString) Error() string { return string(e) }
