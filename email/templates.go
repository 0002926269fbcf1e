package email

import (
	"fmt"
	"strings"
)

const style = "<style>\n" +
	"body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background: #fff; }\n" +
	".header { border-bottom: 2px solid #16a085; padding-bottom: 10px; margin-bottom: 20px; }\n" +
	".content { background: #f8f9fa; padding: 20px; border-radius: 8px; margin: 15px 0; }\n" +
	".info { color: #7f8c8d; font-size: 0.9em; margin: 15px 0; }\n" +
	".footer { margin-top: 20px; padding-top: 10px; border-top: 2px solid #ecf0f1; color: #7f8c8d; font-size: 0.9em; }\n" +
	"a { color: #16a085; text-decoration: none; }\n" +
	"@media (prefers-color-scheme: dark) {\n" +
	"body { background: #1a1a1a; color: #e0e0e0; }\n" +
	".content { background: #2a2a2a; }\n" +
	".info, .footer { color: #a0a0a0; }\n" +
	"}\n" +
	"</style>\n"

func writeHead(b *strings.Builder) {
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString(style)
	b.WriteString("</head>\n<body>\n")
}

func (s *Sender) writeDetails(b *strings.Builder, client Client) {
	b.WriteString("<div class=\"info\">\n")
	b.WriteString("<p><strong>Request Details:</strong></p>\n")
	b.WriteString("<ul>\n")
	b.WriteString(fmt.Sprintf("<li>Time: %s UTC</li>\n", s.now().UTC().Format("Jan 2, 2006 at 3:04 PM")))
	if client.IP != "" {
		b.WriteString(fmt.Sprintf("<li>IP Address: %s</li>\n", escapeHTML(client.IP)))
	}
	if client.UserAgent != "" {
		b.WriteString(fmt.Sprintf("<li>Browser: %s</li>\n", escapeHTML(client.UserAgent)))
	}
	b.WriteString("</ul>\n")
	b.WriteString("</div>\n")
}

func (s *Sender) writeFooter(b *strings.Builder) {
	b.WriteString("<div class=\"footer\">\n")
	b.WriteString(fmt.Sprintf("<a href=\"%s/\">%s</a>\n", escapeHTML(s.baseURL), escapeHTML(s.appName)))
	b.WriteString("</div>\n")
	b.WriteString("</body>\n</html>")
}

func (s *Sender) formatWelcomeBody(to Recipient, client Client) string {
	var b strings.Builder
	writeHead(&b)

	b.WriteString("<div class=\"header\">\n")
	b.WriteString(fmt.Sprintf("<h2>Welcome, %s</h2>\n", escapeHTML(to.Username)))
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"content\">\n")
	b.WriteString(fmt.Sprintf("<p>Your <strong>%s</strong> account is ready.</p>\n", escapeHTML(s.appName)))
	b.WriteString("<p>Create an API token with <code>POST /v1/users/me/token/new</code> and send it as a bearer token.</p>\n")
	b.WriteString("</div>\n")

	s.writeDetails(&b, client)
	s.writeFooter(&b)
	return b.String()
}

func (s *Sender) formatNoticeBody(to Recipient, client Client, title, message string) string {
	var b strings.Builder
	writeHead(&b)

	b.WriteString("<div class=\"header\">\n")
	b.WriteString(fmt.Sprintf("<h2>%s</h2>\n", escapeHTML(title)))
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"content\">\n")
	b.WriteString(fmt.Sprintf("<p>Hi %s,</p>\n", escapeHTML(to.Username)))
	b.WriteString(fmt.Sprintf("<p>%s</p>\n", escapeHTML(message)))
	b.WriteString("<p>If this wasn't you, change your password right away.</p>\n")
	b.WriteString("</div>\n")

	s.writeDetails(&b, client)
	s.writeFooter(&b)
	return b.String()
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}
