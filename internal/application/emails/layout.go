package emails

import (
	"bytes"
	"html/template"
)

type welcomeData struct {
	FirstName string
	Year      int
}

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Campus Market</title>
  <style>
    body { margin: 0; padding: 0; background-color: #F3F4F6; font-family: -apple-system, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; color: #1F2937; }
    .card { width: 560px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; padding: 40px 48px; }
    .card h1 { font-size: 22px; margin: 0 0 20px 0; }
    .card p { font-size: 16px; line-height: 1.6; margin: 0 0 20px 0; }
    .button { display: inline-block; background: #2563EB; color: #FFFFFF !important; padding: 12px 28px; border-radius: 6px; text-decoration: none; font-weight: 600; }
    .footer { text-align: center; font-size: 12px; color: #6B7280; }
  </style>
</head>
<body>
  <div class="card">
    <h1>Welcome, {{.FirstName}}!</h1>
    <p>Your Campus Market account is ready. Post the books and gear you no longer need, browse what other students are selling and message sellers directly.</p>
    <p style="text-align:center"><a class="button" href="https://campus-market.app/">Start browsing</a></p>
    <p style="font-size:14px;color:#6B7280">If you did not create this account, you can ignore this email.</p>
  </div>
  <p class="footer">&copy; {{.Year}} Campus Market</p>
</body>
</html>`))

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
