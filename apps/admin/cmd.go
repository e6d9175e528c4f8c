package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/touchline/academy/core/billing"
	"github.com/touchline/academy/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	migrator   migrator
	usrRepo    user.Repository
	usrSvc     user.Service
	billingSvc billing.Service
	out        io.Writer
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) parser() *flags.Parser {
	p := flags.NewNamedParser("admin", flags.HelpFlag|flags.PassDoubleDash)
	_, _ = p.AddCommand("migrate",
		"Run database migrations",
		"Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, reset, status, version.",
		&migrateCommand{cli: cli})
	_, _ = p.AddCommand("adduser",
		"Create or update a user",
		"Creates the user, or updates the one matching the username or email. The password is prompted.",
		&addUserCommand{cli: cli})
	_, _ = p.AddCommand("resetpassword",
		"Reset a user's password",
		"The password is prompted.",
		&resetPasswordCommand{cli: cli})
	invoices, _ := p.AddCommand("invoices",
		"Run billing jobs",
		"Generate subscription invoices, mark overdue invoices or send payment reminders.",
		&struct{}{})
	_, _ = invoices.AddCommand("generate", "Generate the invoices of due subscription periods", "", &generateInvoicesCommand{cli: cli})
	_, _ = invoices.AddCommand("overdue", "Mark unpaid invoices past their due date as overdue", "", &markOverdueCommand{cli: cli})
	_, _ = invoices.AddCommand("remind", "Email reminders for overdue invoices", "", &sendRemindersCommand{cli: cli})
	return p
}

// run parses args (program name included) and executes the selected command.
// Usage problems print help and return errHelp.
func (cli *commandLine) run(args []string) error {
	p := cli.parser()
	if len(args) < 2 {
		p.WriteHelp(cli.out)
		return errHelp
	}

	if _, err := p.ParseArgs(args[1:]); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			switch flagsErr.Type {
			case flags.ErrHelp, flags.ErrCommandRequired, flags.ErrUnknownCommand,
				flags.ErrRequired, flags.ErrExpectedArgument, flags.ErrUnknownFlag:
				cli.printf("%s\n\n", flagsErr.Message)
				p.WriteHelp(cli.out)
				return errHelp
			}
		}
		if err == errHelp {
			p.WriteHelp(cli.out)
		}
		return err
	}
	return nil
}

// promptPassword reads a password without echo.
func (cli *commandLine) promptPassword() (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	cli.printf("\n")
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errHelp
	}
	return string(pwd), nil
}
