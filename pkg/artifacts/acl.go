// Package artifacts adapts the task core to two collaborators owned
// outside the task store: the artifact ACL and the download ticket
// issuer. Neither stores or transports artifact bytes; attach_task_artifact
// and get_task_handoff call through these thin seams so the byte-transport
// implementation can be swapped without touching the task store.
package artifacts

import (
	"time"

	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/types"
)

const applyTimeout = 5 * time.Second

// ACL is the artifact access-control collaborator. It is backed by the
// same store as the rest of the hub, but is kept behind this narrow
// interface so a remote ACL service could replace it later.
type ACL struct {
	eng *engine.Engine
}

// NewACL creates an ACL collaborator over eng.
func NewACL(eng *engine.Engine) *ACL {
	return &ACL{eng: eng}
}

// Grant records that agentID may read artifactID. attach_task_artifact
// calls this for the task's current assignee as a side effect of
// attaching; it is idempotent (granting twice is a no-op beyond the
// write itself).
func (a *ACL) Grant(artifactID, agentID string) error {
	if agentID == "" {
		return nil
	}
	grant := &types.ArtifactAccessGrant{
		ArtifactID: artifactID,
		AgentID:    agentID,
		GrantedAt:  time.Now().UnixMilli(),
	}
	cmd, err := engine.NewGrantArtifactACLCommand(*grant)
	if err != nil {
		return err
	}
	_, err = a.eng.Apply(cmd, applyTimeout)
	return err
}

// HasAccess reports whether agentID currently holds a read grant for
// artifactID.
func (a *ACL) HasAccess(artifactID, agentID string) (bool, error) {
	if agentID == "" {
		return false, nil
	}
	return a.eng.Store().HasArtifactAccess(artifactID, agentID)
}
