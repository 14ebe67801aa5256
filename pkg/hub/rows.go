package hub

import (
	"github.com/cuemby/caephub/pkg/artifacts"
	"github.com/cuemby/caephub/pkg/messages"
	"github.com/cuemby/caephub/pkg/shaping"
	"github.com/cuemby/caephub/pkg/types"
)

// taskMap renders t's full field set, the shape every non-list tool
// response embeds a task under.
func taskMap(t *types.Task) result {
	return result{
		"id":                  t.ID,
		"title":               t.Title,
		"description":         t.Description,
		"created_by":          t.CreatedBy,
		"assigned_to":         t.AssignedTo,
		"status":              string(t.Status),
		"priority":            string(t.Priority),
		"namespace":           t.Namespace,
		"depends_on":          t.DependsOn,
		"execution_mode":      string(t.ExecutionMode),
		"consistency_mode":    string(t.ConsistencyMode),
		"confidence":          t.Confidence,
		"verification_passed": t.VerificationPassed,
		"verified_by":         t.VerifiedBy,
		"evidence_refs":       t.EvidenceRefs,
		"created_at":          t.CreatedAt,
		"updated_at":          t.UpdatedAt,
	}
}

// taskRow wraps t as a shaping.Row: routing carries the fields every
// shaped mode keeps, description is previewed/digested/counted as the
// row's body.
func taskRow(t *types.Task) shaping.Row {
	return shaping.Row{
		Full: taskMap(t),
		Routing: result{
			"id":               t.ID,
			"status":           string(t.Status),
			"priority":         string(t.Priority),
			"assigned_to":      t.AssignedTo,
			"namespace":        t.Namespace,
			"execution_mode":   string(t.ExecutionMode),
			"consistency_mode": string(t.ConsistencyMode),
			"created_at":       t.CreatedAt,
			"updated_at":       t.UpdatedAt,
		},
		Body: t.Description,
	}
}

// claimMap renders c's full field set.
func claimMap(c *types.Claim) result {
	return result{
		"task_id":          c.TaskID,
		"agent_id":         c.AgentID,
		"token":            c.Token,
		"lease_expires_at": c.LeaseExpiresAt,
		"claimed_at":       c.ClaimedAt,
	}
}

// messageMap renders v's full field set, including blob-ref resolution
// state when present.
func messageMap(v messages.View) result {
	out := result{
		"id":         v.Message.ID,
		"from":       v.Message.FromAgent,
		"to":         v.Message.ToAgent,
		"content":    v.Message.Content,
		"metadata":   v.Message.Metadata,
		"trace_id":   v.Message.TraceID,
		"span_id":    v.Message.SpanID,
		"created_at": v.Message.CreatedAt,
		"broadcast":  v.Message.Broadcast,
		"read":       v.Read,
	}
	if v.BlobRef != nil {
		out["blob_ref"] = result{
			"hash":           v.BlobRef.Hash,
			"declared_chars": v.BlobRef.DeclaredChars,
			"resolved":       v.BlobRef.Resolved,
			"codec":          v.BlobRef.Codec,
			"integrity_ok":   v.BlobRef.IntegrityOK,
		}
		if v.BlobRef.Resolved {
			out["resolved_content"] = v.ResolvedContent
		}
	}
	return out
}

// messageRow wraps v as a shaping.Row. Blob-ref resolution state
// (blob_ref and, once resolved, resolved_content) is carried into every
// shaped mode, not only full.
func messageRow(v messages.View) shaping.Row {
	full := messageMap(v)
	routing := result{
		"id":         v.Message.ID,
		"from":       v.Message.FromAgent,
		"to":         v.Message.ToAgent,
		"broadcast":  v.Message.Broadcast,
		"created_at": v.Message.CreatedAt,
		"read":       v.Read,
	}
	for _, k := range []string{"blob_ref", "resolved_content"} {
		if val, present := full[k]; present {
			routing[k] = val
		}
	}
	return shaping.Row{Full: full, Routing: routing, Body: v.Body()}
}

// artifactLinkMap renders a task-artifact attachment's full field set,
// plus the caller-specific access annotation the handoff assembler and
// list_task_artifacts both attach.
func artifactLinkMap(v artifacts.View) result {
	return result{
		"task_id":     v.TaskID,
		"artifact_id": v.ArtifactID,
		"attached_by": v.AttachedBy,
		"attached_at": v.AttachedAt,
		"size_bytes":  v.SizeBytes,
		"digest":      v.Digest,
		"ready":       v.Ready,
		"has_access":  v.HasAccess,
	}
}
