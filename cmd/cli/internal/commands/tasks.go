package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfeidau/fpconsole/internal/api"
	"github.com/wolfeidau/fpconsole/internal/models"
)

type TasksCmd struct {
	List    TasksListCmd    `cmd:"" help:"List tasks"`
	Get     TasksGetCmd     `cmd:"" help:"Show a task"`
	Create  TasksCreateCmd  `cmd:"" help:"Create a recognition task"`
	Status  TasksStatusCmd  `cmd:"" help:"Show task status"`
	Restart TasksRestartCmd `cmd:"" help:"Restart a task"`
	Delete  TasksDeleteCmd  `cmd:"" help:"Delete a task"`
	Results TasksResultsCmd `cmd:"" help:"Show task results"`
	Report  TasksReportCmd  `cmd:"" help:"Show the task report"`
	Watch   TasksWatchCmd   `cmd:"" help:"Watch tasks until interrupted"`
}

type TasksListCmd struct{}

func (c *TasksListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		return listTasks(ctx, con.API.Tasks)
	})
}

type TasksGetCmd struct {
	ID int64 `arg:"" help:"Task ID"`
}

func (c *TasksGetCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		task, err := con.API.Tasks.Get(ctx, c.ID)
		if err != nil {
			return err
		}
		return printJSON(task)
	})
}

type TasksCreateCmd struct {
	Name         string  `arg:"" help:"Task name"`
	Fingerprints []int64 `help:"Fingerprint IDs to run against" sep:","`
	Description  string  `help:"Description"`
}

func (c *TasksCreateCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		task, err := con.API.Tasks.Create(ctx, models.TaskInput{
			Name:         c.Name,
			Fingerprints: c.Fingerprints,
			Description:  c.Description,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Task created with ID: %d (status: %s)\n", task.ID, task.Status)
		return nil
	})
}

type TasksStatusCmd struct {
	ID int64 `arg:"" help:"Task ID"`
}

func (c *TasksStatusCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		st, err := con.API.Tasks.Status(ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Task %d: %s (%.0f%%)\n", st.ID, strings.ToUpper(st.Status), st.Progress)
		if st.Message != "" {
			fmt.Println(st.Message)
		}
		return nil
	})
}

type TasksRestartCmd struct {
	ID int64 `arg:"" help:"Task ID"`
}

func (c *TasksRestartCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		task, err := con.API.Tasks.Restart(ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Task %d restarted (status: %s)\n", task.ID, task.Status)
		return nil
	})
}

type TasksDeleteCmd struct {
	ID int64 `arg:"" help:"Task ID"`
}

func (c *TasksDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		if err := con.API.Tasks.Delete(ctx, c.ID); err != nil {
			return err
		}
		fmt.Printf("Task %d deleted\n", c.ID)
		return nil
	})
}

type TasksResultsCmd struct {
	ID int64 `arg:"" help:"Task ID"`
}

func (c *TasksResultsCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		page, err := con.API.Tasks.Results(ctx, c.ID)
		if err != nil {
			return err
		}

		if len(page.Results) == 0 {
			fmt.Println("No results yet.")
			return nil
		}

		fmt.Printf("%-8s %-12s %-30s %-8s %-8s\n", "ID", "Fingerprint", "Keyword", "Score", "Matched")
		fmt.Println(strings.Repeat("─", 70))
		for _, r := range page.Results {
			fmt.Printf("%-8d %-12d %-30s %-8.2f %-8t\n", r.ID, r.FingerprintID, truncate(r.Keyword, 30), r.Score, r.Matched)
		}
		fmt.Printf("\nTotal results: %d\n", page.Count)
		return nil
	})
}

type TasksReportCmd struct {
	ID int64 `arg:"" help:"Task ID"`
}

func (c *TasksReportCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		report, err := con.API.Tasks.Report(ctx, c.ID)
		if err != nil {
			return err
		}
		return printJSON(report)
	})
}

type TasksWatchCmd struct {
	Interval time.Duration `help:"Refresh interval" default:"5s"`
}

func (c *TasksWatchCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		fmt.Println("Watching tasks (press Ctrl+C to stop)...")
		fmt.Println()

		ticker := time.NewTicker(c.Interval)
		defer ticker.Stop()

		if err := listTasks(ctx, con.API.Tasks); err != nil {
			return err
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				fmt.Print("\033[2J\033[H") // Clear screen and move cursor to top
				fmt.Printf("Tasks (updated at %s)\n", time.Now().Format("15:04:05"))
				fmt.Println()

				if err := listTasks(ctx, con.API.Tasks); err != nil {
					// a lost session will not come back on its own
					if isSessionLost(err) {
						return err
					}
					fmt.Printf("Error updating task list: %s\n", describe(err))
				}
			}
		}
	})
}

func listTasks(ctx context.Context, tasks *api.Tasks) error {
	page, err := tasks.List(ctx)
	if err != nil {
		return err
	}

	if len(page.Results) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	fmt.Printf("%-8s %-30s %-12s %-9s %-16s %-20s\n", "ID", "Name", "Status", "Progress", "Created By", "Created At")
	fmt.Println(strings.Repeat("─", 100))

	for _, t := range page.Results {
		fmt.Printf("%-8d %-30s %-12s %-9s %-16s %-20s\n",
			t.ID,
			truncate(t.Name, 30),
			strings.ToUpper(t.Status),
			fmt.Sprintf("%.0f%%", t.Progress),
			truncate(t.CreatedBy, 16),
			formatTime(t.CreatedAt))
	}

	fmt.Printf("\nTotal tasks: %d\n", page.Count)
	return nil
}
