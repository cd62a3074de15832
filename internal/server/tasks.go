package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
)

type taskPath struct {
	ID string `path:"id"`
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks/add",
		Summary:       "Create task",
		Tags:          []string{"tasks"},
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body *CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var body CreateTaskRequest
		if input.Body != nil {
			body = *input.Body
		}
		task, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			Owner:       actorID,
			Title:       body.Title,
			Description: body.Description,
			Priority:    domain.Priority(body.Priority),
			DueDate:     body.DueDate,
		})
		if err != nil {
			return nil, handleError(err, "Failed to create task")
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: TaskEnvelope{Success: true, Message: "Task created successfully", Task: task}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks/all",
		Summary:     "List my tasks, newest first",
		Tags:        []string{"tasks"},
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body TaskListEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.ListTasks(ctx, actorID)
		if err != nil {
			return nil, handleError(err, "Failed to fetch tasks")
		}
		return &struct {
			Body TaskListEnvelope `json:"body"`
		}{Body: TaskListEnvelope{Success: true, Count: len(tasks), Tasks: nonNilTasks(tasks)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Tags:        []string{"tasks"},
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := e.GetTask(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(err, "Failed to fetch task")
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: TaskEnvelope{Success: true, Task: task}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/update/{id}",
		Summary:     "Update task fields",
		Description: "Accepts any subset of title, description, status, priority and dueDate. Any other key rejects the whole update.",
		Tags:        []string{"tasks"},
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID      string `path:"id"`
		RawBody []byte
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := e.UpdateTask(ctx, actorID, input.ID, input.RawBody)
		if err != nil {
			return nil, handleError(err, "Failed to update task")
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: TaskEnvelope{Success: true, Message: "Task updated successfully", Task: task}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/delete/{id}",
		Summary:     "Soft-delete task",
		Tags:        []string{"tasks"},
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body MessageEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.SoftDeleteTask(ctx, actorID, input.ID); err != nil {
			return nil, handleError(err, "Failed to delete task")
		}
		return &struct {
			Body MessageEnvelope `json:"body"`
		}{Body: MessageEnvelope{Success: true, Message: "Task deleted successfully"}}, nil
	})
}
