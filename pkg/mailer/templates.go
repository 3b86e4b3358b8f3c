package mailer

import (
	"bytes"
	"fmt"
	htmpl "html/template"
	"strings"
)

// Template names understood by the email worker.
const (
	VerifyEmail       = "verify_email"
	ForgotPassword    = "forgot_password"
	LoginNotification = "login_notification"
)

const verifyEmailTmpl = `<html><body>
<p>Hi {{ .Name }},</p>
<p>Confirm your email address for {{ .AppName }} by clicking the link below.</p>
<p><a href="{{ .ActionURL }}">Verify email</a></p>
<p>This link expires in {{ .ExpiresIn }}. If you did not create an account, ignore this email.</p>
</body></html>`

const forgotPasswordTmpl = `<html><body>
<p>Hi {{ .Name }},</p>
<p>We received a request to reset the password for {{ .Email }}.</p>
<p><a href="{{ .ActionURL }}">Reset password</a></p>
<p>This link expires in {{ .ExpiresIn }}. If you did not request a reset, ignore this email.</p>
</body></html>`

const loginNotificationTmpl = `<html><body>
<p>Hi {{ .Name }},</p>
<p>A new login to your {{ .AppName }} account was detected.</p>
<p>IP: {{ .IP }}<br>Device: {{ .UserAgent }}</p>
<p>If this was not you, reset your password immediately.</p>
</body></html>`

var templates = map[string]*htmpl.Template{
	VerifyEmail:       htmpl.Must(htmpl.New(VerifyEmail).Parse(verifyEmailTmpl)),
	ForgotPassword:    htmpl.Must(htmpl.New(ForgotPassword).Parse(forgotPasswordTmpl)),
	LoginNotification: htmpl.Must(htmpl.New(LoginNotification).Parse(loginNotificationTmpl)),
}

// Subject returns the email subject for a template name.
func Subject(template string) string {
	switch strings.ToLower(template) {
	case VerifyEmail:
		return "Verify your email address"
	case ForgotPassword:
		return "Reset your password"
	case LoginNotification:
		return "New login to your account"
	default:
		return "Notification"
	}
}

// RenderHTML renders the named template against the job data.
func RenderHTML(template string, data map[string]any) (string, error) {
	tpl, ok := templates[strings.ToLower(template)]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", template)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
