package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/cmd/cli/internal/commands"
	"github.com/wolfeidau/fpconsole/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Backend commands.BackendFlags `embed:""`

		Login    commands.LoginCmd    `cmd:"" help:"Log in to the backend"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Log out and clear the local session"`
		Register commands.RegisterCmd `cmd:"" help:"Register a new account"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the current session"`
		Open     commands.OpenCmd     `cmd:"" help:"Evaluate a console navigation against the session"`
		Routes   commands.RoutesCmd   `cmd:"" help:"List the console routes"`

		Fingerprints commands.FingerprintsCmd `cmd:"" help:"Manage fingerprint records"`
		Tasks        commands.TasksCmd        `cmd:"" help:"Manage recognition tasks"`
		Users        commands.UsersCmd        `cmd:"" help:"Manage users (admin)"`
		Logs         commands.LogsCmd         `cmd:"" help:"Browse system logs (admin)"`

		Debug   bool             `help:"Enable debug mode."`
		Config  kong.ConfigFlag  `help:"YAML config file" placeholder:"PATH"`
		Version kong.VersionFlag `help:"Print version and exit"`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("fpconsole-cli"),
		kong.Description("Command line client for the fingerprint console"),
		kong.Configuration(commands.YAMLConfig, "~/.fpconsole/config.yaml"),
		kong.DefaultEnvars("FPCONSOLE"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Backend: cli.Backend})
	cmd.FatalIfErrorf(err)
}
