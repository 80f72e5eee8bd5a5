package email

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

// TemplateManager holds the parsed email templates.
type TemplateManager struct {
	welcome     *template.Template
	orderStatus *template.Template
}

// NewTemplateManager parses the built-in templates. When dir is set, a
// welcome.html or order_status.html found there replaces the built-in one.
func NewTemplateManager(dir string) (*TemplateManager, error) {
	welcome, err := parse("welcome", dir, welcomeTemplate)
	if err != nil {
		return nil, err
	}
	orderStatus, err := parse("order_status", dir, orderStatusTemplate)
	if err != nil {
		return nil, err
	}
	return &TemplateManager{welcome: welcome, orderStatus: orderStatus}, nil
}

func parse(name, dir, fallback string) (*template.Template, error) {
	text := fallback
	if dir != "" {
		b, err := os.ReadFile(filepath.Join(dir, name+".html"))
		switch {
		case err == nil:
			text = string(b)
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("email.parse %s: %w", name, err)
		}
	}
	t, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("email.parse %s: %w", name, err)
	}
	return t, nil
}

// TemplateData holds the dynamic data for an email template.
type TemplateData struct {
	Name string
	Link string

	OrderID     string
	Status      string
	PickupSlot  string
	ReturnSlot  string
	FinalPrice  string
	StatusTitle string
}

// WelcomeHTML renders the signup greeting.
func (tm *TemplateManager) WelcomeHTML(data TemplateData) (string, error) {
	return execute(tm.welcome, data)
}

// OrderStatusHTML renders the notification sent to a customer on every status change.
func (tm *TemplateManager) OrderStatusHTML(data TemplateData) (string, error) {
	return execute(tm.orderStatus, data)
}

func execute(t *template.Template, data TemplateData) (string, error) {
	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", fmt.Errorf("email.execute %s: %w", t.Name(), err)
	}
	return body.String(), nil
}

// --- HTML Template Definitions ---

const welcomeTemplate = `
<!DOCTYPE html>
<html>
<head>
	<title>Welcome</title>
</head>
<body style="font-family: Arial, sans-serif;">
	<h2>Welcome, {{.Name}}!</h2>
	<p>Your account is ready. Book your first pickup here:</p>
	<p><a href="{{.Link}}">Order a pickup</a></p>
	<p>If you did not sign up for this account, please ignore this email.</p>
</body>
</html>
`

const orderStatusTemplate = `
<!DOCTYPE html>
<html>
<head>
	<title>{{.StatusTitle}}</title>
</head>
<body style="font-family: Arial, sans-serif;">
	<h2>{{.StatusTitle}}</h2>
	<p>Hello {{.Name}},</p>
	<p>Your order <strong>{{.OrderID}}</strong> is now <strong>{{.Status}}</strong>.</p>
	<p>Pickup: {{.PickupSlot}}<br>Return: {{.ReturnSlot}}<br>Total: {{.FinalPrice}} EUR</p>
	<p><a href="{{.Link}}">View your order</a></p>
</body>
</html>
`
