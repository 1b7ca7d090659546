package view

import (
	"bytes"
	"html/template"
	"time"
)

// StatusPageData provides the dynamic fields of a resolution status page.
type StatusPageData struct {
	Status    int
	Heading   string
	Message   string
	Slug      string
	Title     string
	TargetURL string
	ExpiresAt *time.Time
}

var statusPageTmpl = template.Must(template.New("status_page").Funcs(template.FuncMap{
	"date": func(t *time.Time) string { return t.UTC().Format("2 Jan 2006 15:04 MST") },
}).Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>{{.Heading}}</title>
	<style>
		:root {
			--bg: #0b1020;
			--card: rgba(255, 255, 255, 0.04);
			--border: rgba(255, 255, 255, 0.12);
			--text: #eef1fb;
			--muted: #98a2bd;
			--accent: #fbbf24;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: var(--bg);
			color: var(--text);
		}
		main {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 16px;
			padding: 32px;
			width: min(520px, 92vw);
		}
		.status { color: var(--accent); font-weight: 600; letter-spacing: 0.08em; }
		h1 { font-size: 1.5rem; margin: 8px 0; }
		p { color: var(--muted); margin-top: 0; }
		dl { margin: 24px 0 0; display: grid; grid-template-columns: max-content 1fr; gap: 8px 16px; }
		dt { color: var(--muted); font-size: 0.85rem; }
		dd { margin: 0; word-break: break-all; }
	</style>
</head>
<body>
	<main>
		<div class="status">{{.Status}}</div>
		<h1>{{.Heading}}</h1>
		<p>{{.Message}}</p>
		{{if .Slug}}
		<dl>
			<dt>Short link</dt><dd>/{{.Slug}}</dd>
			{{if .Title}}<dt>Title</dt><dd>{{.Title}}</dd>{{end}}
			{{if .TargetURL}}<dt>Destination</dt><dd>{{.TargetURL}}</dd>{{end}}
			{{if .ExpiresAt}}<dt>Expired</dt><dd>{{date .ExpiresAt}}</dd>{{end}}
		</dl>
		{{end}}
	</main>
</body>
</html>
`))

// RenderStatusPage expands the status page template with the provided data.
func RenderStatusPage(data StatusPageData) (string, error) {
	if data.Heading == "" {
		data.Heading = "Link unavailable"
	}
	var buf bytes.Buffer
	if err := statusPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
