package main

import (
	"context"
	"fmt"

	"github.com/umoja/academy/core/user"
)

func (cli *commandLine) addUser(uname, email, roleName, pwd string) error {
	ctx := context.Background()
	nu := user.NewUser{
		Username:        uname,
		Email:           email,
		RoleName:        roleName,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s (%s) as %s\n", usr.Username, usr.Email, usr.RoleName)
	return nil
}
