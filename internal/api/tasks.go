package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wolfeidau/fpconsole/internal/models"
)

// Tasks wraps the /tasks/ and /results/ endpoints.
type Tasks struct {
	c Doer
}

func (t *Tasks) List(ctx context.Context) (*models.Page[models.Task], error) {
	var page models.Page[models.Task]
	if err := t.c.Do(ctx, http.MethodGet, "/tasks/", nil, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (t *Tasks) Get(ctx context.Context, id int64) (*models.Task, error) {
	var task models.Task
	if err := t.c.Do(ctx, http.MethodGet, "/tasks/"+itoa(id)+"/", nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Create creates a recognition task.
func (t *Tasks) Create(ctx context.Context, in models.TaskInput) (*models.Task, error) {
	var task models.Task
	if err := t.c.Do(ctx, http.MethodPost, "/tasks/", nil, in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Status polls the task status.
func (t *Tasks) Status(ctx context.Context, id int64) (*models.TaskStatus, error) {
	var status models.TaskStatus
	if err := t.c.Do(ctx, http.MethodGet, "/tasks/"+itoa(id)+"/status/", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (t *Tasks) Restart(ctx context.Context, id int64) (*models.Task, error) {
	var task models.Task
	if err := t.c.Do(ctx, http.MethodPost, "/tasks/"+itoa(id)+"/restart/", nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *Tasks) Delete(ctx context.Context, id int64) error {
	return t.c.Do(ctx, http.MethodDelete, "/tasks/"+itoa(id)+"/", nil, nil, nil)
}

// Results returns the recognition results produced by a task.
func (t *Tasks) Results(ctx context.Context, taskID int64) (*models.Page[models.TaskResult], error) {
	var page models.Page[models.TaskResult]
	q := url.Values{"task_id": {itoa(taskID)}}
	if err := t.c.Do(ctx, http.MethodGet, "/results/by_task/", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Report returns the analysis report of a task.
func (t *Tasks) Report(ctx context.Context, taskID int64) (*models.Report, error) {
	var report models.Report
	q := url.Values{"task_id": {itoa(taskID)}}
	if err := t.c.Do(ctx, http.MethodGet, "/results/report/", q, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
