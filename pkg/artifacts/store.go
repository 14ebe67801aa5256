package artifacts

import (
	"time"

	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/types"
)

// Store attaches artifacts to tasks and annotates them for the handoff
// assembler, using the ACL collaborator for access grants.
type Store struct {
	eng *engine.Engine
	acl *ACL
}

// New creates a Store over eng, using acl as its ACL collaborator.
func New(eng *engine.Engine, acl *ACL) *Store {
	return &Store{eng: eng, acl: acl}
}

// AttachRequest is the input to Attach.
type AttachRequest struct {
	TaskID     int64
	ArtifactID string
	AttachedBy string
	SizeBytes  int64
	Digest     string
	Ready      bool
}

// Attach records that artifactID belongs to taskID and, as a side
// effect, grants the task's current assignee read access to it via the
// ACL collaborator.
func (s *Store) Attach(req AttachRequest) (*types.TaskArtifactLink, *codes.Error) {
	task, err := s.eng.Store().GetTask(req.TaskID)
	if err != nil || task == nil {
		return nil, codes.New(codes.NotFound, "task not found")
	}

	link := &types.TaskArtifactLink{
		TaskID:     req.TaskID,
		ArtifactID: req.ArtifactID,
		AttachedBy: req.AttachedBy,
		AttachedAt: time.Now().UnixMilli(),
		SizeBytes:  req.SizeBytes,
		Digest:     req.Digest,
		Ready:      req.Ready,
	}

	cmd, marshalErr := engine.NewCommand(engine.OpAttachArtifact, link)
	if marshalErr != nil {
		return nil, codes.Internalf(marshalErr)
	}
	if _, applyErr := s.eng.Apply(cmd, applyTimeout); applyErr != nil {
		return nil, codes.Internalf(applyErr)
	}

	if task.AssignedTo != "" {
		if err := s.acl.Grant(req.ArtifactID, task.AssignedTo); err != nil {
			return nil, codes.Internalf(err)
		}
	}

	return link, nil
}

// List returns taskID's attached artifacts.
func (s *Store) List(taskID int64) ([]*types.TaskArtifactLink, error) {
	return s.eng.Store().ListArtifactsForTask(taskID)
}

// View annotates a TaskArtifactLink with the agent-specific access
// check get_task_handoff and list_task_artifacts both need.
type View struct {
	*types.TaskArtifactLink
	HasAccess bool
}

// ListForAgent returns taskID's attachments annotated with whether
// agentID has read access to each one.
func (s *Store) ListForAgent(taskID int64, agentID string) ([]View, error) {
	links, err := s.List(taskID)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(links))
	for _, link := range links {
		has, err := s.acl.HasAccess(link.ArtifactID, agentID)
		if err != nil {
			return nil, err
		}
		views = append(views, View{TaskArtifactLink: link, HasAccess: has})
	}
	return views, nil
}
