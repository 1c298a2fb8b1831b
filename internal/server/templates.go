package server

import (
	"html/template"
	"time"
)

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Local().Format("2006-01-02 15:04")
	},
}
