// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package delivery

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/sacredconnect/sacredconnect/internal/models"
)

// emailTemplate is the shared HTML shell for notification emails. Title and
// message are escaped by html/template; notification data never carries
// markup.
var emailTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #8B5A3C; color: white; padding: 20px; text-align: center; }
    .content { padding: 20px; background: #f9f9f9; }
    .footer { padding: 20px; text-align: center; font-size: 12px; color: #666; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>SacredConnect</h1>
    </div>
    <div class="content">
      <h2>{{.Title}}</h2>
      <p>{{.Message}}</p>
    </div>
    <div class="footer">
      <p>&copy; 2026 SacredConnect. All rights reserved.</p>
      <p>You received this email because you&#39;re subscribed to SacredConnect notifications.</p>
    </div>
  </div>
</body>
</html>
`))

// RenderEmail produces the HTML body for a notification email.
func RenderEmail(title, message string) (string, error) {
	var buf strings.Builder
	err := emailTemplate.Execute(&buf, struct {
		Title   string
		Message string
	}{Title: title, Message: message})
	if err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}

// EmailSubject builds the subject line for a notification email. System
// notifications get a prefix so users can filter them.
func EmailSubject(typ models.NotificationType, title string) string {
	if typ == models.NotificationSystem {
		return "SacredConnect: " + title
	}
	return title
}
