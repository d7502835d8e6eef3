package api

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/warp/leave-tracker/leave"
)

// statusPage is what an approver sees after following an email link.
type statusPage struct {
	Title   string
	Color   string
	Message string
	Detail  string
	Footer  string
}

var statusPageTmpl = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: system-ui; max-width: 600px; margin: 60px auto; padding: 20px; text-align: center;">
<h1 style="color: {{.Color}};">{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Detail}}<p><strong>{{.Detail}}</strong></p>{{end}}
{{if .Footer}}<p style="color: #888; font-size: 13px;">{{.Footer}}</p>{{end}}
</body>
</html>`))

const (
	colorOK    = "#2da44e"
	colorInfo  = "#1f6feb"
	colorWarn  = "#bf8700"
	colorError = "#cf222e"
)

func writePage(w http.ResponseWriter, status int, p statusPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	statusPageTmpl.Execute(w, p)
}

// decisionPage maps a decision to the page and HTTP status shown for it.
func decisionPage(action leave.Action, dec *leave.Decision) (int, statusPage) {
	g := dec.Summary
	period := ""
	if g.TotalDays() > 0 {
		period = fmt.Sprintf("%s: %s, %s to %s (%d day(s))", g.Name(), g.Type, g.StartDate(), g.EndDate(), g.TotalDays())
	}

	switch dec.Outcome {
	case leave.OutcomeNotFound:
		return http.StatusNotFound, statusPage{
			Title:   "Entry Not Found",
			Color:   colorError,
			Message: "This leave request does not exist or the link is no longer valid.",
		}

	case leave.OutcomeCannotRejectApproved:
		return http.StatusConflict, statusPage{
			Title:   "Cannot Reject - Already Approved",
			Color:   colorWarn,
			Message: "This leave request was already approved and can no longer be rejected.",
			Detail:  period,
			Footer:  decidedFooter("Approved", dec),
		}

	case leave.OutcomeAlreadyProcessed:
		title := "Already Approved"
		verb := "Approved"
		if dec.Status == leave.StatusRejected {
			title = "Already Rejected"
			verb = "Rejected"
		}
		return http.StatusOK, statusPage{
			Title:   title,
			Color:   colorInfo,
			Message: "This leave request has already been processed. No changes were made.",
			Detail:  period,
			Footer:  decidedFooter(verb, dec),
		}
	}

	if action == leave.ActionApprove {
		return http.StatusOK, statusPage{
			Title:   "Leave Approved",
			Color:   colorOK,
			Message: "The leave request has been approved and the employee has been notified.",
			Detail:  period,
			Footer:  decidedFooter("Approved", dec),
		}
	}

	p := statusPage{
		Title:   "Leave Rejected",
		Color:   colorError,
		Message: "The leave request has been rejected and the employee has been notified.",
		Detail:  period,
		Footer:  decidedFooter("Rejected", dec),
	}
	if dec.Reason != "" {
		p.Message += " Reason: " + dec.Reason
	}
	return http.StatusOK, p
}

func decidedFooter(verb string, dec *leave.Decision) string {
	if dec.DecidedAt == nil {
		return ""
	}
	by := dec.DecidedBy
	if by == "" {
		by = leave.DefaultActor
	}
	return fmt.Sprintf("%s by %s on %s", verb, by, dec.DecidedAt.Format(time.RFC1123))
}
