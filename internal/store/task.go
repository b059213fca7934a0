package store

import (
	"context"
	"time"
)

// Task is the row at GOAL#<goalId>/GOAL#<goalId>#TASK#<taskId>.
type Task struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	GoalID    string    `dynamodbav:"goalId"`
	TaskID    string    `dynamodbav:"taskId"`
	Title     string    `dynamodbav:"title"`
	Done      bool      `dynamodbav:"done"`
	DoneAt    time.Time `dynamodbav:"doneAt,omitempty"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updatedAt"`
	Version   int64     `dynamodbav:"version"`
}

// TaskRepository is the typed Core Store surface for tasks, always scoped to a parent goal partition.
type TaskRepository struct {
	c *Client
}

func NewTaskRepository(c *Client) *TaskRepository { return &TaskRepository{c: c} }

func (r *TaskRepository) Create(ctx context.Context, t Task) error {
	t.PK, t.SK = GoalPK(t.GoalID), TaskSK(t.GoalID, t.TaskID)
	t.Version = 1
	return r.c.PutIfNotExists(ctx, r.c.CoreTable, t)
}

func (r *TaskRepository) Get(ctx context.Context, goalID, taskID string) (Task, error) {
	var t Task
	err := r.c.GetByKey(ctx, r.c.CoreTable, Key{PK: GoalPK(goalID), SK: TaskSK(goalID, taskID)}, &t)
	return t, err
}

func (r *TaskRepository) Update(ctx context.Context, goalID, taskID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	return r.c.UpdateWithVersion(ctx, r.c.CoreTable, Key{PK: GoalPK(goalID), SK: TaskSK(goalID, taskID)}, expectedVersion, buildUpdate)
}

func (r *TaskRepository) Delete(ctx context.Context, goalID, taskID string) error {
	return r.c.Delete(ctx, r.c.CoreTable, Key{PK: GoalPK(goalID), SK: TaskSK(goalID, taskID)})
}

// List pages through every task under a goal in ascending task-id order; ids are random UUIDs, so this is not
// creation order.
func (r *TaskRepository) List(ctx context.Context, goalID string, page Page) ([]Task, string, error) {
	res, err := r.c.QueryByPartition(ctx, r.c.CoreTable, GoalPK(goalID), TaskSKPrefix(goalID), page)
	if err != nil {
		return nil, "", err
	}
	tasks := make([]Task, 0, len(res.Items))
	for _, item := range res.Items {
		var t Task
		if err := unmarshalInto(item, &t); err != nil {
			return nil, "", err
		}
		tasks = append(tasks, t)
	}
	return tasks, res.NextCursor, nil
}
