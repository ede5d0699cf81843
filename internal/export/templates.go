package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		// Fallback to built-in template if file not found
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for report template rendering
type TemplateData struct {
	UserName       string
	GeneratedAt    time.Time
	Total          int
	Completed      int
	CompletionRate int
	Groups         []ReportGroup
}

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Task Report</title>
</head>
<body>
  <h1>Task Report</h1>
  <p>{{.UserName}} | {{.Completed}}/{{.Total}} done ({{.CompletionRate}}%)</p>
  {{range .Groups}}
  <h2>{{.Topic}}</h2>
  <ul>{{range .Tasks}}<li>{{if .Completed}}[x]{{else}}[ ]{{end}} {{.Title}}</li>{{end}}</ul>
  {{end}}
</body>
</html>`
