package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/caephub/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketAgents        = []byte("agents")
	bucketMessages      = []byte("messages")
	bucketMessageReads  = []byte("message_reads")
	bucketBlobs         = []byte("blobs")
	bucketTasks         = []byte("tasks")
	bucketClaims        = []byte("claims")
	bucketArtifactLinks = []byte("task_artifact_links")
	bucketArtifactACL   = []byte("artifact_acl")
	bucketIdempotency   = []byte("idempotency")
	bucketPollBackoff   = []byte("poll_backoff")
	bucketActivity      = []byte("activity")
)

// BoltStore implements Store using BoltDB as the single-file embedded
// database backing the engine's FSM.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store, creating dataDir's
// database file and every bucket the hub needs if they don't already exist.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "caephub.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketAgents,
			bucketMessages,
			bucketMessageReads,
			bucketBlobs,
			bucketTasks,
			bucketClaims,
			bucketArtifactLinks,
			bucketArtifactACL,
			bucketIdempotency,
			bucketPollBackoff,
			bucketActivity,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func messageReadKey(agentID string, messageID int64) []byte {
	key := make([]byte, 0, len(agentID)+1+8)
	key = append(key, []byte(agentID)...)
	key = append(key, 0)
	key = append(key, itob(messageID)...)
	return key
}

func idempotencyKey(agentID, tool, key string) []byte {
	k := make([]byte, 0, len(agentID)+1+len(tool)+1+len(key))
	k = append(k, []byte(agentID)...)
	k = append(k, 0)
	k = append(k, []byte(tool)...)
	k = append(k, 0)
	k = append(k, []byte(key)...)
	return k
}

// Agent operations

func (s *BoltStore) UpsertAgent(agent *types.Agent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgents)
		data, err := json.Marshal(agent)
		if err != nil {
			return err
		}
		return b.Put([]byte(agent.ID), data)
	})
}

func (s *BoltStore) GetAgent(id string) (*types.Agent, error) {
	var agent types.Agent
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgents)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("agent not found: %s", id)
		}
		return json.Unmarshal(data, &agent)
	})
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (s *BoltStore) ListAgents() ([]*types.Agent, error) {
	var agents []*types.Agent
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgents)
		return b.ForEach(func(k, v []byte) error {
			var agent types.Agent
			if err := json.Unmarshal(v, &agent); err != nil {
				return err
			}
			agents = append(agents, &agent)
			return nil
		})
	})
	return agents, err
}

// Message operations

func (s *BoltStore) NextMessageID() (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)
		return nil
	})
	return id, err
}

func (s *BoltStore) AppendMessage(msg *types.Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return b.Put(itob(msg.ID), data)
	})
}

func (s *BoltStore) GetMessage(id int64) (*types.Message, error) {
	var msg types.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		data := b.Get(itob(id))
		if data == nil {
			return fmt.Errorf("message not found: %d", id)
		}
		return json.Unmarshal(data, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *BoltStore) ListMessages() ([]*types.Message, error) {
	var messages []*types.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		return b.ForEach(func(k, v []byte) error {
			var msg types.Message
			if err := json.Unmarshal(v, &msg); err != nil {
				return err
			}
			messages = append(messages, &msg)
			return nil
		})
	})
	return messages, err
}

func (s *BoltStore) MarkMessageRead(agentID string, messageID int64, at int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessageReads)
		return b.Put(messageReadKey(agentID, messageID), itob(at))
	})
}

func (s *BoltStore) IsMessageRead(agentID string, messageID int64) (bool, error) {
	var read bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessageReads)
		read = b.Get(messageReadKey(agentID, messageID)) != nil
		return nil
	})
	return read, err
}

// Blob operations

func (s *BoltStore) PutBlob(hash string, value []byte, createdAt int64) (bool, error) {
	var created bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		if b.Get([]byte(hash)) != nil {
			created = false
			return nil
		}
		blob := types.ProtocolBlob{Hash: hash, Value: value, CreatedAt: createdAt}
		data, err := json.Marshal(blob)
		if err != nil {
			return err
		}
		created = true
		return b.Put([]byte(hash), data)
	})
	return created, err
}

func (s *BoltStore) GetBlob(hash string) (*types.ProtocolBlob, error) {
	var blob *types.ProtocolBlob
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		data := b.Get([]byte(hash))
		if data == nil {
			return nil
		}
		blob = &types.ProtocolBlob{}
		return json.Unmarshal(data, blob)
	})
	return blob, err
}

// Task operations

func (s *BoltStore) NextTaskID() (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)
		return nil
	})
	return id, err
}

func (s *BoltStore) CreateTask(task *types.Task) error {
	return s.UpdateTask(task)
}

func (s *BoltStore) GetTask(id int64) (*types.Task, error) {
	var task types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data := b.Get(itob(id))
		if data == nil {
			return fmt.Errorf("task not found: %d", id)
		}
		return json.Unmarshal(data, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *BoltStore) ListTasks() ([]*types.Task, error) {
	var tasks []*types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		return b.ForEach(func(k, v []byte) error {
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			tasks = append(tasks, &task)
			return nil
		})
	})
	return tasks, err
}

func (s *BoltStore) UpdateTask(task *types.Task) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return b.Put(itob(task.ID), data)
	})
}

// Claim operations

func (s *BoltStore) PutClaim(claim *types.Claim) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClaims)
		data, err := json.Marshal(claim)
		if err != nil {
			return err
		}
		return b.Put(itob(claim.TaskID), data)
	})
}

func (s *BoltStore) GetClaim(taskID int64) (*types.Claim, error) {
	var claim *types.Claim
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClaims)
		data := b.Get(itob(taskID))
		if data == nil {
			return nil
		}
		claim = &types.Claim{}
		return json.Unmarshal(data, claim)
	})
	return claim, err
}

func (s *BoltStore) ListClaims() ([]*types.Claim, error) {
	var claims []*types.Claim
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClaims)
		return b.ForEach(func(k, v []byte) error {
			var claim types.Claim
			if err := json.Unmarshal(v, &claim); err != nil {
				return err
			}
			claims = append(claims, &claim)
			return nil
		})
	})
	return claims, err
}

// Task artifact link operations

func (s *BoltStore) AttachArtifact(link *types.TaskArtifactLink) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifactLinks)
		data, err := json.Marshal(link)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%d\x00%s", link.TaskID, link.ArtifactID)
		return b.Put([]byte(key), data)
	})
}

func (s *BoltStore) ListArtifactsForTask(taskID int64) ([]*types.TaskArtifactLink, error) {
	var links []*types.TaskArtifactLink
	prefix := fmt.Sprintf("%d\x00", taskID)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifactLinks)
		c := b.Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && len(k) >= len(prefix) && string(k[:len(prefix)]) == prefix; k, v = c.Next() {
			var link types.TaskArtifactLink
			if err := json.Unmarshal(v, &link); err != nil {
				return err
			}
			links = append(links, &link)
		}
		return nil
	})
	return links, err
}

// Artifact ACL operations

func (s *BoltStore) GrantArtifactAccess(grant *types.ArtifactAccessGrant) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifactACL)
		data, err := json.Marshal(grant)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s\x00%s", grant.ArtifactID, grant.AgentID)
		return b.Put([]byte(key), data)
	})
}

func (s *BoltStore) HasArtifactAccess(artifactID, agentID string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifactACL)
		key := fmt.Sprintf("%s\x00%s", artifactID, agentID)
		found = b.Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

// Idempotency operations

func (s *BoltStore) GetIdempotency(agentID, tool, key string) (*types.IdempotencyRecord, error) {
	var record *types.IdempotencyRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIdempotency)
		data := b.Get(idempotencyKey(agentID, tool, key))
		if data == nil {
			return nil
		}
		record = &types.IdempotencyRecord{}
		return json.Unmarshal(data, record)
	})
	return record, err
}

func (s *BoltStore) PutIdempotency(record *types.IdempotencyRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIdempotency)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put(idempotencyKey(record.AgentID, record.Tool, record.Key), data)
	})
}

func (s *BoltStore) PurgeIdempotencyBefore(cutoff int64) (int, error) {
	var purged int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIdempotency)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var record types.IdempotencyRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			if record.StoredAt < cutoff {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		purged = len(stale)
		return nil
	})
	return purged, err
}

// Poll backoff operations

func (s *BoltStore) GetPollBackoff(agentID string) (*types.PollBackoffState, error) {
	var state *types.PollBackoffState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPollBackoff)
		data := b.Get([]byte(agentID))
		if data == nil {
			return nil
		}
		state = &types.PollBackoffState{}
		return json.Unmarshal(data, state)
	})
	return state, err
}

func (s *BoltStore) PutPollBackoff(state *types.PollBackoffState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPollBackoff)
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return b.Put([]byte(state.AgentID), data)
	})
}

// Activity operations

func (s *BoltStore) AppendActivity(record *types.ActivityRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActivity)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(int64(seq)), data)
	})
}

func (s *BoltStore) ListRecentActivity(limit int) ([]*types.ActivityRecord, error) {
	var records []*types.ActivityRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActivity)
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var record types.ActivityRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	return records, err
}
