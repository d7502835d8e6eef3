package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/warp/leave-tracker/leave"
)

// mailData is what every email template receives.
type mailData struct {
	Name       string
	EmployeeID string
	Email      string
	Type       string
	Start      string
	End        string
	Days       int
	Dates      []string
	Note       string
	Reason     string
	DecidedBy  string
	ApproveURL string
	RejectURL  string
}

const mailLayout = `{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; color: #333;">
<h2 style="color: {{template "color" .}};">{{template "title" .}}</h2>
<table style="border-collapse: collapse; width: 100%;">
<tr><td style="padding: 6px; font-weight: bold;">Employee</td><td style="padding: 6px;">{{.Name}} ({{.EmployeeID}})</td></tr>
<tr><td style="padding: 6px; font-weight: bold;">Type</td><td style="padding: 6px;">{{.Type}}</td></tr>
<tr><td style="padding: 6px; font-weight: bold;">Period</td><td style="padding: 6px;">{{.Start}} to {{.End}} ({{.Days}} day(s))</td></tr>
<tr><td style="padding: 6px; font-weight: bold;">Dates</td><td style="padding: 6px;">{{range $i, $d := .Dates}}{{if $i}}, {{end}}{{$d}}{{end}}</td></tr>
{{if .Note}}<tr><td style="padding: 6px; font-weight: bold;">Note</td><td style="padding: 6px;">{{.Note}}</td></tr>{{end}}
</table>
{{template "body" .}}
<p style="font-size: 12px; color: #888;">Sent by the leave tracker.</p>
</body></html>{{end}}`

var (
	submittedTmpl = mustMailTemplate("submitted", `
{{define "color"}}#1f6feb{{end}}
{{define "title"}}New leave request{{end}}
{{define "body"}}
<p>
<a href="{{.ApproveURL}}" style="background: #2da44e; color: #fff; padding: 10px 18px; text-decoration: none; border-radius: 4px;">Approve</a>
&nbsp;
<a href="{{.RejectURL}}" style="background: #cf222e; color: #fff; padding: 10px 18px; text-decoration: none; border-radius: 4px;">Reject</a>
</p>
<p style="font-size: 12px;">The attached calendar entry is tentative until approved.</p>
{{end}}`)

	approvedTmpl = mustMailTemplate("approved", `
{{define "color"}}#2da44e{{end}}
{{define "title"}}Leave request approved{{end}}
{{define "body"}}<p>Approved by {{.DecidedBy}}. The attached calendar entry is confirmed.</p>{{end}}`)

	rejectedTmpl = mustMailTemplate("rejected", `
{{define "color"}}#cf222e{{end}}
{{define "title"}}Leave request rejected{{end}}
{{define "body"}}<p>Rejected by {{.DecidedBy}}.</p>{{if .Reason}}<p><strong>Reason:</strong> {{.Reason}}</p>{{end}}{{end}}`)
)

func mustMailTemplate(name, blocks string) *template.Template {
	t := template.Must(template.New(name).Parse(mailLayout))
	return template.Must(t.Parse(blocks))
}

func render(t *template.Template, data mailData) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func newMailData(g leave.GroupSummary, serverURL, reason string) mailData {
	base := strings.TrimRight(serverURL, "/")
	token := url.QueryEscape(g.Token)
	return mailData{
		Name:       g.Name(),
		EmployeeID: g.EmployeeID,
		Email:      g.Email,
		Type:       string(g.Type),
		Start:      g.StartDate(),
		End:        g.EndDate(),
		Days:       g.TotalDays(),
		Dates:      g.Dates,
		Note:       g.Note,
		Reason:     reason,
		DecidedBy:  g.DecidedBy,
		ApproveURL: base + "/api/leave/approve?token=" + token,
		RejectURL:  base + "/api/leave/reject?token=" + token,
	}
}
