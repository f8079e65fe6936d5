package http

import (
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/auth"
)

// Pages renders HTML templates. Without templates every page is written as
// JSON, which is also what API clients always get.
type Pages struct {
	tmpl *template.Template
	log  *zap.Logger
}

// NewPages loads every template under templatesPath. A missing or broken
// template directory leaves the pages in JSON mode.
func NewPages(templatesPath string, log *zap.Logger) *Pages {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pages{log: log.Named("pages")}

	funcMap := template.FuncMap{
		"score": func(avg float64) string {
			return fmt.Sprintf("%.1f", avg)
		},
		"title": func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"subtract": func(a, b int) int {
			return a - b
		},
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseGlob(filepath.Join(templatesPath, "*.html"))
	if err != nil {
		p.log.Info("templates not loaded, pages render as JSON",
			zap.String("path", templatesPath),
			zap.Error(err),
		)
		return p
	}
	p.tmpl = tmpl
	return p
}

// Enabled reports whether HTML templates are available.
func (p *Pages) Enabled() bool {
	return p != nil && p.tmpl != nil
}

func (p *Pages) Render(c *gin.Context, status int, name string, data gin.H) {
	if !p.Enabled() || auth.IsAPIRequest(c) || p.tmpl.Lookup(name) == nil {
		c.JSON(status, data)
		return
	}

	if user, ok := auth.CurrentPrincipal(c); ok {
		data["current_user"] = user
	}
	data["csrf_field"] = template.HTML(auth.CSRFTokenField(c))

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := p.tmpl.ExecuteTemplate(c.Writer, name, data); err != nil {
		p.log.Error("template error", zap.String("template", name), zap.Error(err))
		if !c.Writer.Written() {
			c.String(http.StatusInternalServerError, "internal server error")
		}
	}
}
