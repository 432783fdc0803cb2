package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/mmynk/travelmatch/internal/models"
)

// DefaultSubject is the email subject of a match notification.
const DefaultSubject = "New Travel Match Found!"

// ArrivalLayout formats arrival times inside notifications.
const ArrivalLayout = "Jan 2 15:04 MST"

// DefaultTextTemplate renders the SMS body and the plain text email part.
const DefaultTextTemplate = `New travel match found! You've been matched with:
{{- range .Members}}
{{.Name}} (arriving at {{arrival .ArrivalTime}})
{{- end}}`

// DefaultHTMLTemplate renders the HTML email part. Member data is escaped.
const DefaultHTMLTemplate = `New travel match found! You've been matched with:
{{- range .Members}}<br>{{.Name}} (arriving at {{arrival .ArrivalTime}}){{end}}`

// Message is one rendered notification, identical for every recipient.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// templateData is passed as data when executing the templates.
type templateData struct {
	Members []*models.User
}

// Renderer turns a member list into a Message.
type Renderer struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func arrival(t time.Time) string {
	return t.Format(ArrivalLayout)
}

// NewRenderer parses the default templates.
func NewRenderer() *Renderer {
	return &Renderer{
		subject: DefaultSubject,
		text: texttemplate.Must(texttemplate.New("text").
			Funcs(texttemplate.FuncMap{"arrival": arrival}).
			Parse(DefaultTextTemplate)),
		html: htmltemplate.Must(htmltemplate.New("html").
			Funcs(htmltemplate.FuncMap{"arrival": arrival}).
			Parse(DefaultHTMLTemplate)),
	}
}

// Render builds the message listing every member.
func (r *Renderer) Render(members []*models.User) (Message, error) {
	data := templateData{Members: members}

	var text, html bytes.Buffer
	if err := r.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("failed to render text message: %w", err)
	}
	if err := r.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("failed to render html message: %w", err)
	}

	return Message{
		Subject: r.subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
