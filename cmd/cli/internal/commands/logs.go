package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfeidau/fpconsole/internal/api"
	"github.com/wolfeidau/fpconsole/internal/models"
)

type LogsCmd struct {
	List    LogsListCmd    `cmd:"" help:"List system logs"`
	Search  LogsSearchCmd  `cmd:"" help:"Search system logs"`
	Actions LogsActionsCmd `cmd:"" help:"List log action types"`
}

type LogsListCmd struct {
	PageFlags `embed:""`
}

func (c *LogsListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		page, err := con.API.Logs.List(ctx, c.values())
		if err != nil {
			return err
		}
		printLogs(page, c.PageFlags)
		return nil
	})
}

type LogsSearchCmd struct {
	PageFlags `embed:""`
	Action    string `help:"Action type, see 'logs actions'"`
	User      string `help:"Username"`
	Keyword   string `help:"Text to search for in the details"`
	From      string `help:"Start date (YYYY-MM-DD)"`
	To        string `help:"End date (YYYY-MM-DD)"`
}

func (c *LogsSearchCmd) Run(ctx context.Context, globals *Globals) error {
	q := c.values()
	for k, v := range map[string]string{
		"action":     c.Action,
		"user":       c.User,
		"keyword":    c.Keyword,
		"start_date": c.From,
		"end_date":   c.To,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}

	return globals.run(ctx, func(con *Console) error {
		page, err := con.API.Logs.Search(ctx, q)
		if err != nil {
			return err
		}
		printLogs(page, c.PageFlags)
		return nil
	})
}

// LogsActionsCmd prints the local action-type vocabulary; it needs no session.
type LogsActionsCmd struct{}

func (c *LogsActionsCmd) Run(ctx context.Context, globals *Globals) error {
	fmt.Printf("%-24s %s\n", "Value", "Display")
	fmt.Println(strings.Repeat("─", 50))
	for _, a := range api.LogActionTypes() {
		fmt.Printf("%-24s %s\n", a.Value, a.Display)
	}
	return nil
}

func printLogs(page *models.Page[models.LogEntry], p PageFlags) {
	if len(page.Results) == 0 {
		fmt.Println("No log entries found.")
		return
	}

	fmt.Printf("%-20s %-16s %-22s %-16s %s\n", "Time", "User", "Action", "IP", "Details")
	fmt.Println(strings.Repeat("─", 110))
	for _, e := range page.Results {
		fmt.Printf("%-20s %-16s %-22s %-16s %s\n",
			formatTime(e.CreatedAt),
			truncate(e.User, 16),
			e.Action,
			e.IPAddress,
			truncate(e.Detail, 40))
	}

	printPageFooter(page.Count, len(page.Results), p, page.Next != "")
}
