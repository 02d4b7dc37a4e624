package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfeidau/fpconsole/internal/models"
)

type UsersCmd struct {
	List          UsersListCmd          `cmd:"" help:"List users"`
	Create        UsersCreateCmd        `cmd:"" help:"Create a user"`
	Update        UsersUpdateCmd        `cmd:"" help:"Update a user"`
	Delete        UsersDeleteCmd        `cmd:"" help:"Delete a user"`
	ResetPassword UsersResetPasswordCmd `cmd:"" help:"Reset a user's password"`
}

type UsersListCmd struct{}

func (c *UsersListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		page, err := con.API.Users.List(ctx)
		if err != nil {
			return err
		}

		if len(page.Results) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		fmt.Printf("%-6s %-20s %-30s %-8s %-7s %-20s\n", "ID", "Username", "Email", "Role", "Active", "Last Login")
		fmt.Println(strings.Repeat("─", 96))
		for _, u := range page.Results {
			fmt.Printf("%-6d %-20s %-30s %-8s %-7t %-20s\n",
				u.ID,
				truncate(u.Username, 20),
				truncate(u.Email, 30),
				u.Role(),
				u.IsActive,
				formatTime(u.LastLoginAt))
		}
		fmt.Printf("\nTotal users: %d\n", page.Count)
		return nil
	})
}

type UsersCreateCmd struct {
	Username string `arg:"" help:"Username"`
	Email    string `help:"Email address"`
	Password string `help:"Initial password" required:""`
	Role     string `help:"Role" enum:"user,admin" default:"user"`
}

func (c *UsersCreateCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		u, err := con.API.Users.Create(ctx, models.UserInput{
			Username: c.Username,
			Email:    c.Email,
			Password: c.Password,
			Role:     c.Role,
		})
		if err != nil {
			return err
		}
		fmt.Printf("User %s created with ID: %d\n", u.Username, u.ID)
		return nil
	})
}

type UsersUpdateCmd struct {
	ID       int64  `arg:"" help:"User ID"`
	Email    string `help:"Email address"`
	Role     string `help:"Role (user, admin)"`
	Password string `help:"New password"`

	Activate   bool `help:"Activate the account" xor:"active"`
	Deactivate bool `help:"Deactivate the account" xor:"active"`
}

func (c *UsersUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	in := models.UserInput{Email: c.Email, Role: c.Role, Password: c.Password}
	if c.Activate || c.Deactivate {
		active := c.Activate
		in.IsActive = &active
	}
	if in == (models.UserInput{}) {
		return errors.New("nothing to update")
	}

	return globals.run(ctx, func(con *Console) error {
		u, err := con.API.Users.Update(ctx, c.ID, in)
		if err != nil {
			return err
		}
		fmt.Printf("User %s updated\n", u.Username)
		return nil
	})
}

type UsersDeleteCmd struct {
	ID int64 `arg:"" help:"User ID"`
}

func (c *UsersDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		if err := con.API.Users.Delete(ctx, c.ID); err != nil {
			return err
		}
		fmt.Printf("User %d deleted\n", c.ID)
		return nil
	})
}

type UsersResetPasswordCmd struct {
	ID int64 `arg:"" help:"User ID"`
}

func (c *UsersResetPasswordCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		result, err := con.API.Users.ResetPassword(ctx, c.ID)
		if err != nil {
			return err
		}
		return printJSON(result)
	})
}
