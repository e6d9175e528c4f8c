package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// runAt parses the --at option of the invoices subcommands.
func runAt(at string) (time.Time, error) {
	if at == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, errors.Errorf("--at must be an RFC3339 time (got '%s')", at)
	}
	return t, nil
}

type generateInvoicesCommand struct {
	cli *commandLine
	At  string `long:"at" description:"Run as of this RFC3339 time instead of now"`
}

func (c *generateInvoicesCommand) Execute([]string) error {
	now, err := runAt(c.At)
	if err != nil {
		return err
	}
	report, err := c.cli.billingSvc.GenerateInvoices(context.Background(), now)
	if err != nil {
		return err
	}
	for _, inv := range report.Generated {
		c.cli.printf("%s %s %s %s\n", inv.Number, inv.PlayerID, inv.Amount.StringFixed(2), inv.Currency)
	}
	c.cli.printf("generated: %d, skipped: %d, failed: %d\n", len(report.Generated), report.Skipped, report.Failed)
	if report.Failed > 0 {
		return errors.Errorf("%d subscription(s) could not be invoiced", report.Failed)
	}
	return nil
}

type markOverdueCommand struct {
	cli *commandLine
	At  string `long:"at" description:"Run as of this RFC3339 time instead of now"`
}

func (c *markOverdueCommand) Execute([]string) error {
	now, err := runAt(c.At)
	if err != nil {
		return err
	}
	n, err := c.cli.billingSvc.MarkOverdue(context.Background(), now)
	if err != nil {
		return err
	}
	c.cli.printf("marked overdue: %d\n", n)
	return nil
}

type sendRemindersCommand struct {
	cli *commandLine
	At  string `long:"at" description:"Run as of this RFC3339 time instead of now"`
}

func (c *sendRemindersCommand) Execute([]string) error {
	now, err := runAt(c.At)
	if err != nil {
		return err
	}
	n, err := c.cli.billingSvc.SendReminders(context.Background(), now)
	if err != nil {
		return err
	}
	c.cli.printf("reminders sent: %d\n", n)
	return nil
}
