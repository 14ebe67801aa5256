package hub

import (
	"github.com/cuemby/caephub/pkg/artifacts"
	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/events"
	"github.com/cuemby/caephub/pkg/shaping"
)

const defaultDownloadTTLSeconds = 900

// AttachTaskArtifactRequest is attach_task_artifact's input.
type AttachTaskArtifactRequest struct {
	TaskID         int64
	ArtifactID     string
	AttachedBy     string
	SizeBytes      int64
	Digest         string
	Ready          bool
	IdempotencyKey string
}

// AttachTaskArtifact records that an artifact belongs to a task and, as
// a side effect, grants the task's current assignee read access to it.
func (h *Hub) AttachTaskArtifact(req AttachTaskArtifactRequest) result {
	return h.dispatch(req.AttachedBy, "attach_task_artifact", req.IdempotencyKey, func() (result, *codes.Error) {
		link, err := h.artifacts.Attach(artifacts.AttachRequest{
			TaskID:     req.TaskID,
			ArtifactID: req.ArtifactID,
			AttachedBy: req.AttachedBy,
			SizeBytes:  req.SizeBytes,
			Digest:     req.Digest,
			Ready:      req.Ready,
		})
		if err != nil {
			return nil, err
		}
		h.publish(events.EventArtifactAttached, "artifact attached", map[string]string{"artifact_id": req.ArtifactID})
		return ok(result{
			"artifact": result{
				"task_id":     link.TaskID,
				"artifact_id": link.ArtifactID,
				"attached_by": link.AttachedBy,
				"attached_at": link.AttachedAt,
				"size_bytes":  link.SizeBytes,
				"digest":      link.Digest,
				"ready":       link.Ready,
			},
		}), nil
	})
}

// ListTaskArtifactsRequest is list_task_artifacts's input.
type ListTaskArtifactsRequest struct {
	TaskID         int64
	Agent          string
	IdempotencyKey string
}

// ListTaskArtifacts returns taskID's attached artifacts annotated with
// whether req.Agent currently has read access to each one.
func (h *Hub) ListTaskArtifacts(req ListTaskArtifactsRequest) result {
	return h.dispatch(req.Agent, "list_task_artifacts", req.IdempotencyKey, func() (result, *codes.Error) {
		views, err := h.artifacts.ListForAgent(req.TaskID, req.Agent)
		if err != nil {
			return nil, codes.Internalf(err)
		}
		out := make([]result, len(views))
		for i, v := range views {
			out[i] = artifactLinkMap(v)
		}
		return ok(result{"artifacts": out}), nil
	})
}

// GetTaskHandoffRequest is get_task_handoff's input.
type GetTaskHandoffRequest struct {
	TaskID           int64
	Agent            string
	ResponseMode     string
	IncludeDownloads bool
	DownloadTTLSec   int
	IdempotencyKey   string
}

// GetTaskHandoff assembles everything an agent needs to pick up a task:
// the task itself (shaped per req.ResponseMode), its dependency tasks,
// its attached artifacts annotated with req.Agent's access, and (if
// requested) a short-lived download ticket for every artifact req.Agent
// can read and that is ready. A ticket-issuer failure is reported via
// artifact_downloads_error rather than failing the whole call.
func (h *Hub) GetTaskHandoff(req GetTaskHandoffRequest) result {
	return h.dispatch(req.Agent, "get_task_handoff", req.IdempotencyKey, func() (result, *codes.Error) {
		mode := shaping.Mode(req.ResponseMode)
		if mode == "" {
			mode = shaping.ModeCompact
		}
		if !mode.Valid() {
			return nil, codes.New(codes.Internal, "unknown response_mode")
		}

		task, err := h.tasks.Get(req.TaskID)
		if err != nil || task == nil {
			return nil, codes.New(codes.NotFound, "task not found")
		}

		dependsOn := make([]result, 0, len(task.DependsOn))
		for _, depID := range task.DependsOn {
			dep, depErr := h.tasks.Get(depID)
			if depErr != nil || dep == nil {
				continue
			}
			dependsOn = append(dependsOn, result{"id": dep.ID, "status": string(dep.Status)})
		}

		views, viewErr := h.artifacts.ListForAgent(req.TaskID, req.Agent)
		if viewErr != nil {
			return nil, codes.Internalf(viewErr)
		}
		artifactRows := make([]result, len(views))
		for i, v := range views {
			artifactRows[i] = artifactLinkMap(v)
		}

		out := result{
			"task":          shaping.Shape(taskRow(task), mode),
			"depends_on":    dependsOn,
			"evidence_refs": task.EvidenceRefs,
			"artifacts":     artifactRows,
		}

		if req.IncludeDownloads {
			ttl := req.DownloadTTLSec
			if ttl <= 0 {
				ttl = defaultDownloadTTLSeconds
			}
			downloads := make([]result, 0, len(views))
			var issueErr error
			for _, v := range views {
				if !v.HasAccess || !v.Ready {
					continue
				}
				ticket, tErr := h.tickets.Issue(v.ArtifactID, ttl)
				if tErr != nil {
					issueErr = tErr
					continue
				}
				downloads = append(downloads, result{
					"artifact_id": ticket.ArtifactID,
					"url":         ticket.URL,
					"expires_at":  ticket.ExpiresAt,
				})
			}
			out["artifact_downloads"] = downloads
			if issueErr != nil {
				out["artifact_downloads_error"] = issueErr.Error()
			}
		}

		return ok(out), nil
	})
}
