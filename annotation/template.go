package annotation

import (
	"embed"
	"html/template"
	"io"

	"github.com/russross/blackfriday/v2"
)

var (
	//go:embed templates/*
	templateFS embed.FS

	// TemplateFuncMap contains custom template functions available globally
	TemplateFuncMap = template.FuncMap{
		"markdown": func(text string) template.HTML {
			return template.HTML(blackfriday.Run([]byte(text)))
		},
	}

	pageTemplate = template.Must(template.New("page.html").Funcs(TemplateFuncMap).ParseFS(templateFS, "templates/page.html"))
)

type TemplateContent struct {
	Title   string
	Lang    string
	Content string
}

// ExecTemplate renders markdown content inside the page layout
func ExecTemplate(w io.Writer, content TemplateContent) error {
	if content.Lang == "" {
		content.Lang = "en"
	}
	return pageTemplate.Execute(w, content)
}
