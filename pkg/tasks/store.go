// Package tasks implements the hub's task store and state machine:
// dependency-validated creation, state-graph-enforced updates gated by
// the done rule (and its strict-mode independent-verifier requirement),
// and the namespace policy advisory.
package tasks

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/config"
	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/metrics"
	"github.com/cuemby/caephub/pkg/types"
)

const applyTimeout = 5 * time.Second

// Store is the task store backed by an Engine.
type Store struct {
	eng *engine.Engine
	cfg config.Config
}

// New creates a Store over eng using cfg's done-gate floor and namespace
// keyword list.
func New(eng *engine.Engine, cfg config.Config) *Store {
	return &Store{eng: eng, cfg: cfg}
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	Title           string
	Description     string
	CreatedBy       string
	AssignedTo      string
	Priority        types.TaskPriority
	Namespace       string
	DependsOn       []int64
	ExecutionMode   types.RuntimeMode
	ConsistencyMode types.ConsistencyMode // empty means "derive from priority"
}

// Create validates req, derives consistency_mode when not given explicitly,
// and inserts a new task. The returned warnings slice carries the
// namespace policy advisory when applicable; it never causes a failure.
func (s *Store) Create(req CreateRequest) (*types.Task, []string, *codes.Error) {
	if err := s.validateDependencyExistence(req.DependsOn); err != nil {
		return nil, nil, err
	}

	consistency := req.ConsistencyMode
	if consistency == "" {
		if req.Priority == types.PriorityCritical {
			consistency = types.ConsistencyStrict
		} else {
			consistency = types.ConsistencyRelaxed
		}
	}

	if req.ExecutionMode == "" {
		req.ExecutionMode = types.RuntimeModeAny
	}

	id, err := s.eng.NextTaskID()
	if err != nil {
		return nil, nil, codes.Internalf(err)
	}

	now := time.Now().UnixMilli()
	task := &types.Task{
		ID:              id,
		Title:           req.Title,
		Description:     req.Description,
		CreatedBy:       req.CreatedBy,
		AssignedTo:      req.AssignedTo,
		Status:          types.TaskStatusPending,
		Priority:        req.Priority,
		Namespace:       req.Namespace,
		DependsOn:       req.DependsOn,
		ExecutionMode:   req.ExecutionMode,
		ConsistencyMode: consistency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	cmd, marshalErr := engine.NewCommand(engine.OpCreateTask, task)
	if marshalErr != nil {
		return nil, nil, codes.Internalf(marshalErr)
	}
	if _, applyErr := s.eng.Apply(cmd, applyTimeout); applyErr != nil {
		return nil, nil, codes.Internalf(applyErr)
	}

	metrics.TasksTotal.WithLabelValues(string(task.Status)).Inc()

	var warnings []string
	if task.Namespace == "" && s.matchesNamespaceKeyword(req.Title, req.Description) {
		warnings = append(warnings, "title or description matches orchestration keywords but no namespace was supplied")
	}

	return task, warnings, nil
}

func (s *Store) matchesNamespaceKeyword(title, description string) bool {
	haystack := strings.ToLower(title + " " + description)
	for _, keyword := range s.cfg.NamespaceKeywords {
		if keyword != "" && strings.Contains(haystack, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// UpdateRequest is the input to Update. Nil pointer fields are left
// unchanged; Status nil means "no status transition requested".
type UpdateRequest struct {
	TaskID             int64
	UpdatedBy          string
	Status             *types.TaskStatus
	AssignedTo         *string
	Confidence         *float64
	VerificationPassed *bool
	VerifiedBy         *string
	EvidenceRefs       *[]string
	DependsOn          *[]int64
}

// Update applies req to the task, enforcing the state graph and (when
// transitioning to done) the done gate, atomically.
func (s *Store) Update(req UpdateRequest) (*types.Task, *codes.Error) {
	task, err := s.eng.Store().GetTask(req.TaskID)
	if err != nil {
		return nil, codes.New(codes.NotFound, "task not found")
	}

	if req.DependsOn != nil {
		if err := s.validateDependsOnNoCycle(task.ID, *req.DependsOn); err != nil {
			return nil, err
		}
		task.DependsOn = *req.DependsOn
	}
	if req.AssignedTo != nil {
		task.AssignedTo = *req.AssignedTo
	}
	if req.Confidence != nil {
		task.Confidence = *req.Confidence
	}
	if req.VerificationPassed != nil {
		task.VerificationPassed = *req.VerificationPassed
	}
	if req.VerifiedBy != nil {
		task.VerifiedBy = *req.VerifiedBy
	}
	if req.EvidenceRefs != nil {
		task.EvidenceRefs = *req.EvidenceRefs
	}

	if req.Status != nil && *req.Status != task.Status {
		if task.Status.IsTerminal() {
			return nil, codes.New(codes.InvalidTransition, "task is in a terminal status")
		}
		if !validTransition(task.Status, *req.Status) {
			return nil, codes.New(codes.InvalidTransition, "no such transition in the task state graph")
		}
		if *req.Status == types.TaskStatusDone {
			if gateErr := checkDoneGate(task, req.UpdatedBy, s.cfg); gateErr != nil {
				s.recordGateFailure(gateErr)
				return nil, gateErr
			}
		}
		task.Status = *req.Status
	}

	task.UpdatedAt = time.Now().UnixMilli()

	cmd, marshalErr := engine.NewCommand(engine.OpUpdateTask, task)
	if marshalErr != nil {
		return nil, codes.Internalf(marshalErr)
	}
	if _, applyErr := s.eng.Apply(cmd, applyTimeout); applyErr != nil {
		return nil, codes.Internalf(applyErr)
	}

	return task, nil
}

func (s *Store) recordGateFailure(err *codes.Error) {
	reason := "evidence"
	switch {
	case err.Code == codes.VerifierRequired:
		reason = "verifier_required"
	case strings.Contains(err.Message, "confidence"):
		reason = "confidence"
	case strings.Contains(err.Message, "verification_passed"):
		reason = "verification"
	}
	metrics.TaskDoneGateFailuresTotal.WithLabelValues(reason).Inc()
}

// ListAll returns every task unfiltered and unpaginated, for callers (the
// scheduler's candidate scan) that need the whole set rather than a page
// of it.
func (s *Store) ListAll() ([]*types.Task, error) {
	return s.eng.Store().ListTasks()
}

// ListResult is List's return value.
type ListResult struct {
	Tasks      []*types.Task
	HasMore    bool
	NextCursor string
}

// List returns tasks ordered oldest-first by (created_at, id), starting
// just after cursor (the "<created_at_ms>:<id>" format also used by
// messages) when one is given, up to limit results.
func (s *Store) List(cursor string, limit int) (ListResult, error) {
	if limit <= 0 {
		limit = 50
	}

	var cursorCreatedAt, cursorID int64
	if cursor != "" {
		var err error
		cursorCreatedAt, cursorID, err = DecodeCursor(cursor)
		if err != nil {
			return ListResult{}, fmt.Errorf("tasks: invalid cursor: %w", err)
		}
	}

	all, err := s.eng.Store().ListTasks()
	if err != nil {
		return ListResult{}, err
	}

	candidates := make([]*types.Task, 0, len(all))
	for _, t := range all {
		if cursor != "" && !afterCursor(t, cursorCreatedAt, cursorID) {
			continue
		}
		candidates = append(candidates, t)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt != candidates[j].CreatedAt {
			return candidates[i].CreatedAt < candidates[j].CreatedAt
		}
		return candidates[i].ID < candidates[j].ID
	})

	hasMore := false
	if len(candidates) > limit {
		hasMore = true
		candidates = candidates[:limit]
	}

	var nextCursor string
	if n := len(candidates); n > 0 {
		last := candidates[n-1]
		nextCursor = EncodeCursor(last.CreatedAt, last.ID)
	}

	return ListResult{Tasks: candidates, HasMore: hasMore, NextCursor: nextCursor}, nil
}

func afterCursor(t *types.Task, cursorCreatedAt, cursorID int64) bool {
	if t.CreatedAt != cursorCreatedAt {
		return t.CreatedAt > cursorCreatedAt
	}
	return t.ID > cursorID
}

// EncodeCursor renders the "<created_at_ms>:<id>" cursor format.
func EncodeCursor(createdAt, id int64) string {
	return fmt.Sprintf("%d:%d", createdAt, id)
}

// DecodeCursor parses the "<created_at_ms>:<id>" cursor format.
func DecodeCursor(cursor string) (createdAt int64, id int64, err error) {
	parts := strings.SplitN(cursor, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("tasks: malformed cursor %q", cursor)
	}
	createdAt, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("tasks: malformed cursor %q: %w", cursor, err)
	}
	id, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("tasks: malformed cursor %q: %w", cursor, err)
	}
	return createdAt, id, nil
}

// Get returns the task with the given id.
func (s *Store) Get(id int64) (*types.Task, error) {
	return s.eng.Store().GetTask(id)
}

func (s *Store) validateDependencyExistence(dependsOn []int64) *codes.Error {
	for _, depID := range dependsOn {
		task, err := s.eng.Store().GetTask(depID)
		if err != nil || task == nil {
			return codes.New(codes.DependencyMissing, "depends_on references a task that does not exist")
		}
	}
	return nil
}

// validateDependsOnNoCycle checks both existence and, by walking the
// dependency graph from each proposed dependency, that none of them can
// reach taskID (which would make taskID an indirect dependency of itself).
func (s *Store) validateDependsOnNoCycle(taskID int64, dependsOn []int64) *codes.Error {
	if err := s.validateDependencyExistence(dependsOn); err != nil {
		return err
	}

	visited := make(map[int64]bool)
	queue := append([]int64{}, dependsOn...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == taskID {
			return codes.New(codes.DependencyCycle, "depends_on would introduce a dependency cycle")
		}
		if visited[id] {
			continue
		}
		visited[id] = true

		dep, err := s.eng.Store().GetTask(id)
		if err != nil || dep == nil {
			continue
		}
		queue = append(queue, dep.DependsOn...)
	}
	return nil
}
