// Package templates renders the HTML pages of the timetable viewer.
// Components are written in the .templ files; the _templ.go files are
// produced from them by `templ generate`.
package templates

import (
	"net/url"

	"github.com/a-h/templ"
)

// Page carries the fields every page layout needs.
type Page struct {
	Title        string
	CurrentPath  string
	AssetVersion string // content hash of static assets, for cache busting
}

// TrainItem is one row of the train list.
type TrainItem struct {
	Number      string
	Type        string
	Origin      string
	Destination string
	Stops       int
}

// TrainListData is the data for the home page.
type TrainListData struct {
	Page
	Trains  []TrainItem
	LastRun string // finish time of the latest conversion run, empty when none
}

// StopItem is one timetable row. Empty times render as a dash.
type StopItem struct {
	Station   string
	Regular   string
	Arrival   string
	Departure string
}

// TrainDetailData is the data for a single train timetable.
type TrainDetailData struct {
	Page
	Number   string
	Type     string
	FileName string
	Updated  string
	Stops    []StopItem
}

// FileItem is one row of the conversion history.
type FileItem struct {
	FileName    string
	Status      string
	Error       string
	Trains      int
	Regions     int
	ConvertedAt string
}

// FilesData is the data for the conversion history page.
type FilesData struct {
	Page
	Files []FileItem
}

func assetURL(name, version string) templ.SafeURL {
	return templ.URL("/static/" + name + "?v=" + url.QueryEscape(version))
}

func trainURL(number string) templ.SafeURL {
	return templ.URL("/trains/" + url.PathEscape(number))
}

func trainJSONURL(number string) templ.SafeURL {
	return templ.URL("/api/trains/" + url.PathEscape(number))
}

func dash(s string) string {
	if s == "" {
		return "–"
	}
	return s
}
