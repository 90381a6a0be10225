// Package render draws a session for people: an HTML chat page for the browser and a
// colorized transcript for the terminal. Assistant replies are treated as markdown,
// user text is always shown verbatim.
package render

import (
	"bytes"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"doc-chat/internal/session"
)

const (
	Title       = "📚 AI Chat Assistant"
	Tagline     = "🎯 Drop your PDF to get tailored answers 🎯"
	NoDocument  = "Please upload a PDF file to start the conversation."
	Placeholder = "Ask a question about the PDF content..."
)

// Page is everything the chat page shows.
type Page struct {
	Session session.Session
	// Error is shown as a banner above the transcript, e.g. for a rejected upload.
	Error string
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown converts an assistant reply to HTML. Raw HTML in the reply is dropped
// by goldmark's default renderer.
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

var pageTemplate = template.Must(template.New("chat").Funcs(template.FuncMap{
	"markdown": Markdown,
	"isUser":   func(r session.Role) bool { return r == session.RoleUser },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { max-width: 800px; margin: 0 auto; font-family: sans-serif; font-size: 16px; }
.tagline, .hint { text-align: center; color: #666; }
.upload { padding: 1rem; border: 2px dashed #9146FF; border-radius: 0.5rem; background: #f8f9fa; }
.upload button { background-color: #9146FF; color: white; }
.chat-message { padding: 1rem; border-radius: 0.5rem; margin-bottom: 1rem; background-color: #f0f2f6; }
.chat-message.user { background-color: #e8e0ff; white-space: pre-wrap; }
.error { padding: 1rem; border-radius: 0.5rem; background: #fde2e1; color: #9b1c1c; }
.info { padding: 1rem; border-radius: 0.5rem; background: #e1effe; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="tagline">{{.Tagline}}</p>
<form class="upload" method="post" action="/chat/{{.Page.Session.ID}}/document" enctype="multipart/form-data">
<p class="hint">💫 Drag and drop your PDF file here 💫</p>
<input type="file" name="file" accept="application/pdf,.pdf">
<button type="submit">Upload</button>
</form>
{{with .Page.Error}}<div class="error" role="alert">{{.}}</div>{{end}}
{{if .Loaded}}
<p class="hint">{{.Page.Session.DocumentName}}</p>
{{range .Entries}}
{{if isUser .Role}}<div class="chat-message user">{{.Content}}</div>
{{else}}<div class="chat-message assistant">{{markdown .Content}}</div>
{{end}}
{{end}}
<form method="post" action="/chat/{{.Page.Session.ID}}/ask">
<input type="text" name="question" placeholder="{{.Placeholder}}" autofocus>
<button type="submit">Send</button>
</form>
{{else}}
<div class="info">{{.NoDocument}}</div>
{{end}}
</body>
</html>
`))

type pageData struct {
	Page        Page
	Loaded      bool
	Entries     []session.Entry
	Title       string
	Tagline     string
	NoDocument  string
	Placeholder string
}

// HTML writes the full chat page.
func HTML(w io.Writer, p Page) error {
	return pageTemplate.Execute(w, pageData{
		Page:        p,
		Loaded:      p.Session.State == session.StateDocumentLoaded,
		Entries:     p.Session.Log.Entries(),
		Title:       Title,
		Tagline:     Tagline,
		NoDocument:  NoDocument,
		Placeholder: Placeholder,
	})
}
