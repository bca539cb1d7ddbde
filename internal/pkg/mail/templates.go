package mail

import (
	"bytes"
	"html/template"

	"github.com/ManuelReschke/ScriptHub/internal/pkg/env"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="margin:0;padding:0;background-color:#0a0a0a;font-family:'Segoe UI',Tahoma,Geneva,Verdana,sans-serif;">
  <table role="presentation" style="width:100%;border-collapse:collapse;">
    <tr><td align="center" style="padding:40px 0;">
      <table role="presentation" style="width:600px;border-collapse:collapse;background:#16213e;border-radius:16px;">
        <tr><td style="padding:40px 40px 20px;text-align:center;">
          <h1 style="margin:0;color:#ffffff;font-size:28px;">Script Store</h1>
        </td></tr>
        <tr><td style="padding:20px 40px;">
          <p style="color:#e0e0e0;font-size:16px;">Hi <strong style="color:#ffffff;">{{.Name}}</strong>,</p>
          <p style="color:#b0b0b0;font-size:15px;">Thank you for signing up! Please use the verification code below to complete your registration:</p>
          <div style="text-align:center;padding:30px;background:rgba(255,255,255,0.05);border-radius:12px;">
            <p style="margin:0 0 10px;color:#888;font-size:14px;text-transform:uppercase;letter-spacing:2px;">Verification Code</p>
            <div style="font-size:42px;font-weight:700;letter-spacing:12px;color:#ffffff;font-family:'Courier New',monospace;">{{.Code}}</div>
          </div>
          <p style="margin:30px 0 0;color:#888;font-size:13px;text-align:center;">This code will expire in <strong style="color:#ff6b6b;">{{.ExpiresIn}}</strong></p>
        </td></tr>
        <tr><td style="padding:30px 40px;">
          <p style="margin:0;color:#666;font-size:12px;text-align:center;">If you didn't request this, please ignore this email.</p>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`))

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="margin:0;padding:0;background-color:#0a0a0a;font-family:'Segoe UI',Tahoma,Geneva,Verdana,sans-serif;">
  <table role="presentation" style="width:100%;border-collapse:collapse;">
    <tr><td align="center" style="padding:40px 0;">
      <table role="presentation" style="width:600px;border-collapse:collapse;background:#16213e;border-radius:16px;">
        <tr><td style="padding:40px;text-align:center;">
          <h1 style="margin:0 0 20px;color:#ffffff;font-size:28px;">Welcome, {{.Name}}!</h1>
          <p style="margin:0 0 30px;color:#b0b0b0;font-size:16px;">Your account has been successfully verified. You now have full access to the script store.</p>
          <a href="{{.DashboardURL}}" style="display:inline-block;padding:15px 40px;background:#667eea;color:#ffffff;text-decoration:none;border-radius:8px;font-weight:600;">Go to Dashboard</a>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`))

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func displayName(name string) string {
	if name == "" {
		return "User"
	}
	return name
}

// VerificationEmail builds the OTP mail sent after registration and on resend.
func VerificationEmail(to, name, code string) (Message, error) {
	body, err := render(verificationTmpl, map[string]string{
		"Name":      displayName(name),
		"Code":      code,
		"ExpiresIn": "10 minutes",
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Verify Your Email - Script Store", HTMLBody: body}, nil
}

// WelcomeEmail builds the mail sent once an address is verified.
func WelcomeEmail(to, name string) (Message, error) {
	body, err := render(welcomeTmpl, map[string]string{
		"Name":         displayName(name),
		"DashboardURL": env.GetEnv("FRONTEND_URL", "http://localhost:5173") + "/dashboard",
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Welcome to Script Store!", HTMLBody: body}, nil
}
