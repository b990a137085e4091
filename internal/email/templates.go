package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type layoutData struct {
	Title string
	// Body is pre-rendered alert/report HTML produced by the content
	// builder; it is trusted application output, not user input.
	Body template.HTML
}

// RenderLayout wraps pre-rendered body HTML in the shared email layout.
func RenderLayout(title, bodyHTML string) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return "", fmt.Errorf("parse email layout: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, layoutData{Title: title, Body: template.HTML(bodyHTML)}); err != nil {
		return "", fmt.Errorf("render email layout: %w", err)
	}
	return buf.String(), nil
}
