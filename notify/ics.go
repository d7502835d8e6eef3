package notify

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/warp/leave-tracker/leave"
)

// Calendar builds iCalendar invitations for leave groups.
type Calendar struct {
	// Domain qualifies event UIDs (<record id>@<domain>).
	Domain string
	// Organizer is the mailbox shown as the event organizer.
	Organizer     string
	OrganizerName string
	ProductID     string
}

// Build renders one all-day event spanning the group's first to last date.
// DTEND is exclusive, so it is the day after the last date.
func (c Calendar) Build(g leave.GroupSummary, status ics.ObjectStatus, now time.Time) (string, error) {
	start, ok := leave.ParseDate(g.StartDate(), time.UTC)
	if !ok {
		return "", fmt.Errorf("invalid start date %q", g.StartDate())
	}
	end, ok := leave.ParseDate(g.EndDate(), time.UTC)
	if !ok {
		return "", fmt.Errorf("invalid end date %q", g.EndDate())
	}

	productID := c.ProductID
	if productID == "" {
		productID = "-//Leave Tracker//EN"
	}
	domain := c.Domain
	if domain == "" {
		domain = "leave-tracker"
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)
	cal.SetProductId(productID)

	event := cal.AddEvent(g.ID + "@" + domain)
	event.SetDtStampTime(now.UTC())
	event.SetCreatedTime(now.UTC())
	event.SetAllDayStartAt(start)
	event.SetAllDayEndAt(end.AddDate(0, 0, 1))
	event.SetSummary(fmt.Sprintf("%s - %s", g.Type, g.Name()))
	event.SetDescription(describe(g))
	event.SetLocation("Out of Office")
	event.SetStatus(status)

	if c.Organizer != "" {
		event.SetOrganizer("mailto:"+c.Organizer, ics.WithCN(orDefault(c.OrganizerName, "Leave Tracker")))
	}
	if g.Email != "" {
		event.AddAttendee("mailto:"+g.Email, ics.WithCN(g.Name()))
	}

	alarm := event.AddAlarm()
	alarm.SetAction(ics.ActionDisplay)
	alarm.SetTrigger("-PT15M")

	return cal.Serialize(), nil
}

func describe(g leave.GroupSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s for %s (%d day(s))", g.Type, g.Name(), g.TotalDays())
	if g.Note != "" {
		fmt.Fprintf(&b, "\nReason: %s", g.Note)
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
