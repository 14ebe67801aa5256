package artifacts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DownloadTicket is a short-lived, single-artifact download grant
// obtained from the ticket issuer collaborator for a handoff packet.
type DownloadTicket struct {
	ArtifactID string
	URL        string
	ExpiresAt  int64 // ms epoch
}

// TicketIssuer mints download tickets for artifacts. Real deployments
// back this with whatever signs URLs for their object store; it is
// never called from inside a store transaction, and a failed issuance
// must not fail the surrounding get_task_handoff call.
type TicketIssuer interface {
	Issue(artifactID string, ttlSec int) (DownloadTicket, error)
}

// LocalTicketIssuer issues opaque, unsigned ticket URLs rooted at
// baseURL. It never fails — it exists so get_task_handoff has a
// concrete collaborator to call in tests and single-node deployments
// that don't front artifacts with a real signing service.
type LocalTicketIssuer struct {
	baseURL string
}

// NewLocalTicketIssuer creates a LocalTicketIssuer serving tickets under
// baseURL (e.g. "https://hub.local/artifacts").
func NewLocalTicketIssuer(baseURL string) *LocalTicketIssuer {
	return &LocalTicketIssuer{baseURL: baseURL}
}

// Issue mints a ticket for artifactID valid for ttlSec seconds.
func (i *LocalTicketIssuer) Issue(artifactID string, ttlSec int) (DownloadTicket, error) {
	token := uuid.New().String()
	return DownloadTicket{
		ArtifactID: artifactID,
		URL:        fmt.Sprintf("%s/%s?ticket=%s", i.baseURL, artifactID, token),
		ExpiresAt:  time.Now().Add(time.Duration(ttlSec) * time.Second).UnixMilli(),
	}, nil
}
