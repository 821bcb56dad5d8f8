package main

import (
	"context"
	"time"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err == user.ErrNotFound {
		usr, err = cli.usrRepo.GetUserByEmail(ctx, email)
	}
	if err != nil && err != user.ErrNotFound {
		return err
	}

	exists := err == nil
	usr.Username = uname
	usr.Email = email
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	isActive := true
	if exists {
		usr.UpdatedAt = time.Now().UTC()
		_, err = cli.usrRepo.UpdateUser(ctx, usr, &isActive)
		return err
	}
	usr.IsActive = isActive
	_, err = cli.usrRepo.CreateUser(ctx, usr)
	return err
}
