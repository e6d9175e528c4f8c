package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/user"
)

type addUserCommand struct {
	cli      *commandLine
	Username string   `short:"u" long:"username" description:"Username" required:"true"`
	Email    string   `short:"e" long:"email" description:"Email address" required:"true"`
	Name     string   `short:"n" long:"name" description:"Full name"`
	Roles    []string `short:"r" long:"role" description:"Role to grant, repeatable (e.g. coach:head)"`
	Admin    bool     `long:"admin" description:"Grant every role"`
}

func (c *addUserCommand) Execute([]string) error {
	roles := c.Roles
	if c.Admin {
		roles = user.AllRoles
	}
	for _, role := range roles {
		if !user.IsValidRole(role) {
			return errors.Errorf("%q: invalid role", role)
		}
	}
	pwd, err := c.cli.promptPassword()
	if err != nil {
		return err
	}
	usr, err := c.cli.addUser(c.Name, c.Username, c.Email, pwd, roles)
	if err != nil {
		return err
	}
	c.cli.printf("user %s (%s) saved\n", usr.Username, usr.ID)
	return nil
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) (user.User, error) {
	var usr user.User
	var err error
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}}); err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
		usr = user.User{
			Username:  uname,
			Email:     email,
			CreatedAt: core.Now(),
		}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if len(roles) > 0 {
		usr.Roles = roles
	}
	usr.IsActive = true
	usr.UpdatedAt = core.Now()
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}
	return cli.usrRepo.UpdateOrCreateUser(ctx, usr)
}
