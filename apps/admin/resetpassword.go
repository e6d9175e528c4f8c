package main

import (
	"context"
)

type resetPasswordCommand struct {
	cli      *commandLine
	Username string `short:"u" long:"username" description:"The user's username or email. The password will be prompted next." required:"true"`
}

func (c *resetPasswordCommand) Execute([]string) error {
	pwd, err := c.cli.promptPassword()
	if err != nil {
		return err
	}
	return c.cli.resetPassword(c.Username, pwd)
}

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return err
}
