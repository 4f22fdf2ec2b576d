package notify

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/go-faster/errors"

	"github.com/vinitamart/storefront/internal/mail"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const otpTemplate = "otp"

// Branding is the storefront identity shown in every email.
type Branding struct {
	Brand        string
	LogoURL      string
	SupportEmail string
}

type templates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// Renderer turns messages into emails.
type Renderer struct {
	brand Branding
	byKey map[string]templates
}

// NewRenderer parses the embedded templates.
func NewRenderer(brand Branding) (*Renderer, error) {
	if brand.Brand == "" {
		brand.Brand = "Vinitamart"
	}
	layout, err := htmltemplate.ParseFS(templateFS, "templates/layout.html.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, "parse layout")
	}

	r := &Renderer{brand: brand, byKey: map[string]templates{}}
	for _, name := range []string{
		string(KindConfirmation),
		string(KindStatusUpdate),
		string(KindSellerAlert),
		otpTemplate,
	} {
		base, err := layout.Clone()
		if err != nil {
			return nil, errors.Wrap(err, "clone layout")
		}
		h, err := base.ParseFS(templateFS, "templates/"+name+".html.tmpl")
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s html", name)
		}
		t, err := texttemplate.ParseFS(templateFS, "templates/"+name+".txt.tmpl")
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s text", name)
		}
		r.byKey[name] = templates{html: h, text: t}
	}
	return r, nil
}

type messageData struct {
	Branding
	Message
	Name string
	Time string
}

// Render produces the email for a queued message.
func (r *Renderer) Render(m Message) (mail.Message, error) {
	if err := m.Validate(); err != nil {
		return mail.Message{}, err
	}
	name := strings.TrimSpace(m.CustomerName)
	if name == "" {
		name = "Customer"
	}
	return r.render(string(m.Kind), m.To, messageData{
		Branding: r.brand,
		Message:  m,
		Name:     name,
		Time:     m.CreatedAt.UTC().Format("2006-01-02 15:04 MST"),
	})
}

type otpData struct {
	Branding
	Code    string
	Minutes int
}

// RenderOTP produces the verification code email.
func (r *Renderer) RenderOTP(to, code string, ttl time.Duration) (mail.Message, error) {
	return r.render(otpTemplate, to, otpData{
		Branding: r.brand,
		Code:     code,
		Minutes:  int(ttl.Minutes()),
	})
}

func (r *Renderer) render(key, to string, data any) (mail.Message, error) {
	t, ok := r.byKey[key]
	if !ok {
		return mail.Message{}, errors.Errorf("no template %q", key)
	}
	var subject, text, html bytes.Buffer
	if err := t.text.ExecuteTemplate(&subject, "subject", data); err != nil {
		return mail.Message{}, errors.Wrap(err, "render subject")
	}
	if err := t.text.ExecuteTemplate(&text, "text", data); err != nil {
		return mail.Message{}, errors.Wrap(err, "render text")
	}
	if err := t.html.ExecuteTemplate(&html, "layout", data); err != nil {
		return mail.Message{}, errors.Wrap(err, "render html")
	}
	return mail.Message{
		To:      to,
		Subject: strings.TrimSpace(subject.String()),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
