package main

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

// migrator is the subset of *goose.Provider the CLI drives.
type migrator interface {
	Up(ctx context.Context) ([]*goose.MigrationResult, error)
	UpByOne(ctx context.Context) (*goose.MigrationResult, error)
	UpTo(ctx context.Context, version int64) ([]*goose.MigrationResult, error)
	Down(ctx context.Context) (*goose.MigrationResult, error)
	DownTo(ctx context.Context, version int64) ([]*goose.MigrationResult, error)
	Status(ctx context.Context) ([]*goose.MigrationStatus, error)
	GetDBVersion(ctx context.Context) (int64, error)
}

var _ migrator = (*goose.Provider)(nil)

type migrateCommand struct {
	cli  *commandLine
	Args struct {
		Command string `positional-arg-name:"command"`
		Version string `positional-arg-name:"version"`
	} `positional-args:"yes"`
}

func (c *migrateCommand) Execute([]string) error {
	ctx := context.Background()
	m := c.cli.migrator

	switch c.Args.Command {
	case "":
		return errHelp
	case "up":
		res, err := m.Up(ctx)
		c.report(res...)
		return err
	case "up-by-one":
		res, err := m.UpByOne(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			c.cli.printf("no migration to apply\n")
			return nil
		}
		c.report(res)
		return err
	case "up-to":
		version, err := c.version()
		if err != nil {
			return err
		}
		res, err := m.UpTo(ctx, version)
		c.report(res...)
		return err
	case "down":
		res, err := m.Down(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoCurrentVersion) {
			c.cli.printf("no migration to roll back\n")
			return nil
		}
		c.report(res)
		return err
	case "down-to":
		version, err := c.version()
		if err != nil {
			return err
		}
		res, err := m.DownTo(ctx, version)
		c.report(res...)
		return err
	case "reset":
		res, err := m.DownTo(ctx, 0)
		c.report(res...)
		return err
	case "status":
		statuses, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			applied := "pending"
			if st.State == goose.StateApplied {
				applied = st.AppliedAt.Format("2006-01-02 15:04:05")
			}
			c.cli.printf("%-20s %s\n", applied, st.Source.Path)
		}
		return nil
	case "version":
		version, err := m.GetDBVersion(ctx)
		if err != nil {
			return err
		}
		c.cli.printf("version %d\n", version)
		return nil
	default:
		return errors.Errorf("%q: no such command", c.Args.Command)
	}
}

func (c *migrateCommand) version() (int64, error) {
	if c.Args.Version == "" {
		return 0, errors.Errorf("%s must be of form: admin migrate %s VERSION", c.Args.Command, c.Args.Command)
	}
	version, err := strconv.ParseInt(c.Args.Version, 10, 64)
	if err != nil {
		return 0, errors.Errorf("version must be a number (got '%s')", c.Args.Version)
	}
	return version, nil
}

func (c *migrateCommand) report(results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		c.cli.printf("%s %s (%s)\n", res.Direction, res.Source.Path, res.Duration)
	}
}
