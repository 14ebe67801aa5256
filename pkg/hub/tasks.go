package hub

import (
	"github.com/cuemby/caephub/pkg/api"
	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/events"
	"github.com/cuemby/caephub/pkg/shaping"
	"github.com/cuemby/caephub/pkg/tasks"
	"github.com/cuemby/caephub/pkg/types"
)

// CreateTaskRequest is create_task's input.
type CreateTaskRequest struct {
	Title           string
	Description     string
	CreatedBy       string
	AssignedTo      string
	Priority        types.TaskPriority
	Namespace       string
	DependsOn       []int64
	ExecutionMode   types.RuntimeMode
	ConsistencyMode types.ConsistencyMode
	IdempotencyKey  string
}

// CreateTask inserts a new task, deriving consistency_mode from priority
// when not given explicitly.
func (h *Hub) CreateTask(req CreateTaskRequest) result {
	return h.dispatch(req.CreatedBy, "create_task", req.IdempotencyKey, func() (result, *codes.Error) {
		task, warnings, err := h.tasks.Create(tasks.CreateRequest{
			Title:           req.Title,
			Description:     req.Description,
			CreatedBy:       req.CreatedBy,
			AssignedTo:      req.AssignedTo,
			Priority:        req.Priority,
			Namespace:       req.Namespace,
			DependsOn:       req.DependsOn,
			ExecutionMode:   req.ExecutionMode,
			ConsistencyMode: req.ConsistencyMode,
		})
		if err != nil {
			return nil, err
		}
		h.publish(events.EventTaskCreated, "task created", map[string]string{"created_by": task.CreatedBy})
		return ok(result{"task": taskMap(task), "warnings": warnings}), nil
	})
}

// UpdateTaskRequest is update_task's input. Nil fields are left
// unchanged, mirroring tasks.UpdateRequest.
type UpdateTaskRequest struct {
	TaskID             int64
	UpdatedBy          string
	Status             *types.TaskStatus
	AssignedTo         *string
	Confidence         *float64
	VerificationPassed *bool
	VerifiedBy         *string
	EvidenceRefs       *[]string
	DependsOn          *[]int64
	IdempotencyKey     string
}

// UpdateTask applies the requested field changes and, if a status
// transition is requested, enforces the state graph and (for a
// transition to done) the done gate.
func (h *Hub) UpdateTask(req UpdateTaskRequest) result {
	return h.dispatch(req.UpdatedBy, "update_task", req.IdempotencyKey, func() (result, *codes.Error) {
		task, err := h.tasks.Update(tasks.UpdateRequest{
			TaskID:             req.TaskID,
			UpdatedBy:          req.UpdatedBy,
			Status:             req.Status,
			AssignedTo:         req.AssignedTo,
			Confidence:         req.Confidence,
			VerificationPassed: req.VerificationPassed,
			VerifiedBy:         req.VerifiedBy,
			EvidenceRefs:       req.EvidenceRefs,
			DependsOn:          req.DependsOn,
		})
		if err != nil {
			return nil, err
		}

		eventType := events.EventTaskUpdated
		if task.Status == types.TaskStatusDone {
			eventType = events.EventTaskDone
		} else if task.Status == types.TaskStatusBlocked {
			eventType = events.EventTaskBlocked
		}
		h.publish(eventType, "task updated", map[string]string{"status": string(task.Status)})

		return ok(result{"task": taskMap(task)}), nil
	})
}

// ListTasksRequest is list_tasks's input.
type ListTasksRequest struct {
	Agent          string
	ResponseMode   string
	Polling        bool
	Cursor         string
	Limit          int
	IdempotencyKey string
}

// ListTasks returns a cursor-paginated page of tasks, shaped per
// req.ResponseMode and guarded against full-mode-while-polling.
func (h *Hub) ListTasks(req ListTasksRequest) result {
	return h.dispatch(req.Agent, "list_tasks", req.IdempotencyKey, func() (result, *codes.Error) {
		mode := shaping.Mode(req.ResponseMode)
		if mode == "" {
			mode = shaping.ModeCompact
		}
		if !mode.Valid() {
			return nil, codes.New(codes.Internal, "unknown response_mode")
		}

		delta := req.Cursor != ""
		if gErr := api.GuardPollingToolMode(api.GuardRequest{
			Tool:          "list_tasks",
			Mode:          mode,
			Polling:       req.Polling,
			Delta:         delta,
			AllowOverride: !h.cfg.DisallowFullInPolling,
		}); gErr != nil {
			return nil, gErr
		}

		page, err := h.tasks.List(req.Cursor, req.Limit)
		if err != nil {
			return nil, codes.Internalf(err)
		}

		rows := make([]shaping.Row, len(page.Tasks))
		for i, t := range page.Tasks {
			rows[i] = taskRow(t)
		}
		shaped := shaping.ShapeAll(rows, mode)

		if mode == shaping.ModeNano {
			return shaping.NanoEnvelope("t", shaped, page.HasMore, page.NextCursor), nil
		}
		return ok(result{"tasks": shaped, "has_more": page.HasMore, "next_cursor": page.NextCursor}), nil
	})
}
