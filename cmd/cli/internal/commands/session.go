package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wolfeidau/fpconsole/internal/models"
	"github.com/wolfeidau/fpconsole/internal/router"
	"github.com/wolfeidau/fpconsole/internal/session"
)

// stdin is where prompted values are read from.
var stdin io.Reader = os.Stdin

func prompt(label string) (string, error) {
	fmt.Printf("%s: ", label)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

type LoginCmd struct {
	Username string `arg:"" help:"Username"`
	Password string `help:"Password (prompted when empty)"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	password := c.Password
	if password == "" {
		var err error
		if password, err = prompt("Password"); err != nil {
			return err
		}
	}

	return globals.run(ctx, func(con *Console) error {
		user, err := con.Sessions.Login(ctx, models.Credentials{Username: c.Username, Password: password})
		if err != nil {
			return errors.New(session.FailureMessage(err, session.MsgLoginFailed))
		}

		fmt.Printf("Logged in as %s (%s)\n", user.Username, roleName(user))
		return nil
	})
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		if err := con.Sessions.Logout(ctx); err != nil {
			// the local session is gone either way
			fmt.Println(session.MsgLogoutFailed)
			return nil
		}
		fmt.Println(session.MsgLoggedOut)
		return nil
	})
}

type RegisterCmd struct {
	Username string `arg:"" help:"Username"`
	Email    string `help:"Email address" required:""`
	Password string `help:"Password (prompted when empty)"`
}

func (c *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	password := c.Password
	if password == "" {
		var err error
		if password, err = prompt("Password"); err != nil {
			return err
		}
	}

	return globals.run(ctx, func(con *Console) error {
		err := con.Sessions.Register(ctx, models.Registration{
			Username:        c.Username,
			Email:           c.Email,
			Password:        password,
			PasswordConfirm: password,
		})
		if err != nil {
			return errors.New(session.FailureMessage(err, session.MsgRegisterFailed))
		}

		fmt.Println(session.MsgRegistered)
		return nil
	})
}

type WhoamiCmd struct {
	Refresh bool `help:"Re-fetch the profile from the backend" default:"false"`
}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		var (
			user *models.User
			err  error
		)
		if c.Refresh {
			user, err = con.Sessions.Refresh(ctx)
		} else {
			user, err = con.Sessions.User(ctx)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Username: %s\n", user.Username)
		if user.Email != "" {
			fmt.Printf("Email:    %s\n", user.Email)
		}
		fmt.Printf("Role:     %s\n", roleName(user))
		return nil
	})
}

// OpenCmd shows where the console would take the current session for a path.
type OpenCmd struct {
	Path string `arg:"" help:"Console path, e.g. /dashboard/system-logs"`
}

func (c *OpenCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		d := con.Guard.Evaluate(ctx, c.Path)

		switch {
		case d.Reason == router.ReasonNotFound:
			return fmt.Errorf("no console page at %s", c.Path)
		case d.Redirect != "":
			fmt.Printf("%s -> %s (%s)\n", d.Route.Path, d.Redirect, d.Reason)
		default:
			fmt.Printf("%s (%s)\n", d.Route.Path, d.Route.Name)
		}
		return nil
	})
}

type RoutesCmd struct{}

func (c *RoutesCmd) Run(ctx context.Context, globals *Globals) error {
	fmt.Printf("%-40s %-24s %-6s %-6s %s\n", "Path", "Name", "Auth", "Admin", "Redirect")
	fmt.Println(strings.Repeat("─", 100))

	for _, r := range router.Routes() {
		fmt.Printf("%-40s %-24s %-6t %-6t %s\n", r.Path, r.Name, r.RequiresAuth, r.RequiresAdmin, r.Redirect)
	}
	return nil
}

func roleName(u *models.User) string {
	if u.IsAdmin() {
		return "administrator"
	}
	if role := u.Role(); role != "" {
		return role
	}
	return models.RoleUser
}
