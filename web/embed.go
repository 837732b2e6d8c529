package web

import "embed"

// StaticFiles embeds the stylesheet served under /static/.
//
//go:embed static/*
var StaticFiles embed.FS
