package suite

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/workload"
)

//go:embed templates/*.tmpl
var templates embed.FS

const viewPosts = 100

type viewData struct {
	User        string
	Posts       []workload.Post
	GeneratedAt time.Time
}

// buildView renders a dashboard of 100 posts per invocation.
func buildView(context.Context, Env) (workload.Body, error) {
	tmpl, err := parseDashboard()
	if err != nil {
		return nil, err
	}

	posts := dashboardPosts()

	return func(_ context.Context, _ *store.Conn) error {
		var buf bytes.Buffer

		return renderDashboard(&buf, tmpl, posts)
	}, nil
}

func parseDashboard() (*template.Template, error) {
	printer := message.NewPrinter(language.English)

	tmpl, err := template.New("dashboard.html.tmpl").
		Funcs(template.FuncMap{
			"truncate": truncate,
			"delimit":  func(n int) string { return printer.Sprintf("%d", n) },
		}).
		ParseFS(templates, "templates/dashboard.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse view template: %w", err)
	}

	return tmpl, nil
}

func dashboardPosts() []workload.Post {
	posts := make([]workload.Post, viewPosts)
	for i := range posts {
		posts[i] = workload.Post{
			Title: fmt.Sprintf("Post %d", i),
			Body:  strings.Repeat("Content ", 10),
			Views: i * 1000,
		}
	}

	return posts
}

func renderDashboard(w io.Writer, tmpl *template.Template, posts []workload.Post) error {
	err := tmpl.Execute(w, viewData{
		User:        "Speedy",
		Posts:       posts,
		GeneratedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}

	return nil
}

// truncate shortens s to at most n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}

	return string(r[:n-3]) + "..."
}
