package web

import (
	"html/template"

	"github.com/mhpenta/autodrip/session"
)

var templateFuncs = template.FuncMap{
	"is": func(v session.View, name string) bool {
		return v.State.String() == name
	},
}
