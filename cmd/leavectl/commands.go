package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/warp/leave-tracker/leave"
	"github.com/warp/leave-tracker/report"
	"github.com/warp/leave-tracker/store"
)

type cli struct {
	store     leave.Store
	storePath string
	out       io.Writer
	loc       *time.Location
	now       func() time.Time
}

func (c *cli) clock() time.Time {
	if c.now != nil {
		return c.now().In(c.loc)
	}
	return time.Now().In(c.loc)
}

var statusColor = map[leave.Status]*color.Color{
	leave.StatusPending:  color.New(color.FgYellow),
	leave.StatusApproved: color.New(color.FgGreen),
	leave.StatusRejected: color.New(color.FgRed),
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	status := fs.String("status", "", "Only records with this status")
	employee := fs.String("employee", "", "Only records of this employee id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	records, err := c.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	shown := 0
	for _, r := range records {
		if *status != "" && string(r.Status) != *status {
			continue
		}
		if *employee != "" && !strings.EqualFold(r.EmployeeID, *employee) {
			continue
		}
		paint, ok := statusColor[r.Status]
		if !ok {
			paint = color.New(color.Reset)
		}
		fmt.Fprintf(c.out, "%s  %-10s  %-20s  %-22s  %s\n",
			r.Date, paint.Sprint(r.Status), r.EmployeeID, r.Type, r.ID)
		shown++
	}
	fmt.Fprintf(c.out, "%d of %d record(s)\n", shown, len(records))
	return nil
}

func (c *cli) summary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	employee := fs.String("employee", "", "Employee id")
	year := fs.Int("year", 0, "Calendar year (default: current)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *employee == "" {
		return errors.New("-employee is required")
	}

	today := c.clock()
	if *year == 0 {
		*year = today.Year()
	}

	records, err := c.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	s := report.Summarize(records, *employee, *year, today)

	fmt.Fprintf(c.out, "%s %d\n", color.CyanString(s.EmployeeID), s.Year)
	for _, t := range s.ByType {
		fmt.Fprintf(c.out, "  %-22s pending %d  approved %d  rejected %d\n", t.Type, t.Pending, t.Approved, t.Rejected)
	}
	fmt.Fprintf(c.out, "  approved %d of %d working days (%s%%)\n", s.TotalApproved, s.WorkingDays, s.ApprovedShare.StringFixed(2))
	if len(s.Upcoming) > 0 {
		fmt.Fprintf(c.out, "  upcoming: %s\n", strings.Join(s.Upcoming, ", "))
	}
	return nil
}

func (c *cli) clear(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return errors.New("refusing to clear without -yes")
	}

	dst := store.BackupPath(c.storePath, c.clock())
	n, err := store.Backup(ctx, c.store, dst)
	if err != nil {
		return err
	}
	if err := c.store.SaveAll(ctx, []leave.Request{}); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s backed up %d record(s) to %s\n", color.GreenString("ok"), n, dst)
	return nil
}
