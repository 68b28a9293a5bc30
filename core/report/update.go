package report

import "strings"

// Update assembles the hourly price report from per-trigger fragments.
type Update struct {
	tags  []string
	parts []string
}

// Add appends a fragment. An empty tag contributes to the body only.
func (u *Update) Add(tag, body string) {
	if tag != "" {
		u.tags = append(u.tags, tag)
	}
	u.parts = append(u.parts, body)
}

// Len returns the number of fragments.
func (u *Update) Len() int { return len(u.parts) }

// Subject joins the fragment tags after the update prefix.
func (u *Update) Subject() string {
	return UpdateSubject + strings.Join(u.tags, "")
}

// Body returns the message body.
func (u *Update) Body() string {
	var b strings.Builder
	b.WriteString("New Prices Saved")
	for _, p := range u.parts {
		b.WriteString("<br/>")
		b.WriteString(p)
		b.WriteString("<br/><hr>")
	}
	return b.String()
}
