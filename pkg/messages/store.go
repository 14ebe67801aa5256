// Package messages implements the hub's append-only message log: send,
// read with normal/delta ordering and cursor pagination, per-agent
// lazily-materialized read marks for broadcast messages, and blob-ref
// resolution for content that references a stored protocol blob instead
// of carrying it inline.
package messages

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/caephub/pkg/codec"
	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/config"
	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/metrics"
	"github.com/cuemby/caephub/pkg/types"
)

const applyTimeout = 5 * time.Second

// Store is the message log backed by an Engine.
type Store struct {
	eng *engine.Engine
	cfg config.Config
}

// New creates a Store over eng using cfg's length limits and polling
// guard configuration.
func New(eng *engine.Engine, cfg config.Config) *Store {
	return &Store{eng: eng, cfg: cfg}
}

// SendRequest is the input to Send.
type SendRequest struct {
	From     string
	To       string // empty means broadcast
	Content  string
	Metadata string
	TraceID  string
	SpanID   string
}

// Send validates req against the configured length maxima, appends a new
// message, and returns it.
func (s *Store) Send(req SendRequest) (*types.Message, *codes.Error) {
	if len(req.Content) > s.cfg.MaxMessageContentChars {
		return nil, codes.New(codes.ContentTooLong, fmt.Sprintf("content exceeds %d characters", s.cfg.MaxMessageContentChars))
	}
	if len(req.Metadata) > s.cfg.MaxMessageMetadataChars {
		return nil, codes.New(codes.MetadataTooLong, fmt.Sprintf("metadata exceeds %d characters", s.cfg.MaxMessageMetadataChars))
	}

	id, err := s.eng.NextMessageID()
	if err != nil {
		return nil, codes.Internalf(err)
	}

	msg := &types.Message{
		ID:        id,
		FromAgent: req.From,
		ToAgent:   req.To,
		Content:   req.Content,
		Metadata:  req.Metadata,
		TraceID:   req.TraceID,
		SpanID:    req.SpanID,
		CreatedAt: time.Now().UnixMilli(),
		Broadcast: req.To == "",
	}

	cmd, marshalErr := engine.NewCommand(engine.OpAppendMessage, msg)
	if marshalErr != nil {
		return nil, codes.Internalf(marshalErr)
	}
	if _, applyErr := s.eng.Apply(cmd, applyTimeout); applyErr != nil {
		return nil, codes.Internalf(applyErr)
	}

	kind := "direct"
	if msg.Broadcast {
		kind = "broadcast"
	}
	metrics.MessagesTotal.WithLabelValues(kind).Inc()
	metrics.MessageContentBytes.Observe(float64(len(msg.Content)))

	return msg, nil
}

// SendBlobMessage sends a message whose content is a blob-ref envelope
// pointing at a payload too large (or too valuable to repeat) to inline,
// storing the encoded payload as a protocol blob first.
func (s *Store) SendBlobMessage(req SendRequest, payload string, mode codec.Mode, maxBlobChars int) (*types.Message, codec.Result, *codes.Error) {
	if len(payload) > maxBlobChars {
		return nil, codec.Result{}, codes.New(codes.BlobTooLong, fmt.Sprintf("payload exceeds %d characters", maxBlobChars))
	}

	encoded, err := codec.Encode(payload, mode)
	if err != nil {
		return nil, codec.Result{}, codes.Internalf(err)
	}

	hash := codec.BlobHash(encoded.StoredValue)
	cmd, err := engine.NewPutBlobCommand(hash, []byte(encoded.StoredValue), time.Now().UnixMilli())
	if err != nil {
		return nil, codec.Result{}, codes.Internalf(err)
	}
	created, err := s.eng.Apply(cmd, applyTimeout)
	if err != nil {
		return nil, codec.Result{}, codes.Internalf(err)
	}
	if isNew, _ := created.(bool); isNew {
		metrics.BlobsTotal.Inc()
	}
	metrics.BlobCodecGainPct.WithLabelValues(string(encoded.CodecUsed)).Observe(encoded.GainPct)

	ref, err := codec.MakeBlobRef(hash, len(payload))
	if err != nil {
		return nil, codec.Result{}, codes.Internalf(err)
	}

	req.Content = ref
	msg, sendErr := s.Send(req)
	return msg, encoded, sendErr
}

// ReadOptions controls Read's filtering, ordering, and pagination.
type ReadOptions struct {
	Agent           string
	From            string
	UnreadOnly      bool
	Limit           int
	Offset          int
	SinceTS         int64
	Cursor          string
	Polling         bool
	ResolveBlobRefs bool
}

// BlobRefView is the augmentation attached to a message whose content
// parses as a blob-ref envelope.
type BlobRefView struct {
	Hash          string
	DeclaredChars int
	Resolved      bool
	Codec         string
	IntegrityOK   bool
}

// View pairs a stored message with its read state and, if requested and
// applicable, its resolved blob-ref payload.
type View struct {
	Message         *types.Message
	Read            bool
	BlobRef         *BlobRefView
	ResolvedContent string
}

// Body returns the string Read/shaping operations should preview/digest:
// resolved blob content in preference to the raw envelope, matching
// spec's blob-ref resolution rule.
func (v View) Body() string {
	if v.BlobRef != nil && v.BlobRef.Resolved {
		return v.ResolvedContent
	}
	return v.Message.Content
}

// ReadResult is Read's return value.
type ReadResult struct {
	Messages   []View
	HasMore    bool
	NextCursor string
}

// Read returns messages addressed to opts.Agent (direct or broadcast),
// applying normal or delta ordering, optional blob-ref resolution, and
// marking every returned unread message as read for opts.Agent.
func (s *Store) Read(opts ReadOptions) (ReadResult, *codes.Error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	delta := opts.Cursor != "" || opts.SinceTS != 0

	var cursorCreatedAt, cursorID int64
	if opts.Cursor != "" {
		var err error
		cursorCreatedAt, cursorID, err = DecodeCursor(opts.Cursor)
		if err != nil {
			return ReadResult{}, codes.New(codes.Internal, "invalid cursor")
		}
	}

	all, err := s.eng.Store().ListMessages()
	if err != nil {
		return ReadResult{}, codes.Internalf(err)
	}

	var candidates []*types.Message
	for _, m := range all {
		if m.ToAgent != "" && m.ToAgent != opts.Agent {
			continue
		}
		if m.ToAgent == "" && m.FromAgent == opts.Agent {
			continue // an agent never receives its own broadcast
		}
		if opts.From != "" && m.FromAgent != opts.From {
			continue
		}
		if opts.SinceTS != 0 && m.CreatedAt < opts.SinceTS {
			continue
		}
		if opts.Cursor != "" && !afterCursor(m, cursorCreatedAt, cursorID) {
			continue
		}
		candidates = append(candidates, m)
	}

	if delta {
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].CreatedAt != candidates[j].CreatedAt {
				return candidates[i].CreatedAt < candidates[j].CreatedAt
			}
			return candidates[i].ID < candidates[j].ID
		})
	} else {
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].CreatedAt != candidates[j].CreatedAt {
				return candidates[i].CreatedAt > candidates[j].CreatedAt
			}
			return candidates[i].ID > candidates[j].ID
		})
	}

	fetchLimit := opts.Limit
	if delta {
		fetchLimit = opts.Limit + 1
	}

	if opts.Offset > 0 && opts.Offset < len(candidates) {
		candidates = candidates[opts.Offset:]
	} else if opts.Offset >= len(candidates) {
		candidates = nil
	}

	hasMore := false
	if len(candidates) > fetchLimit {
		hasMore = true
		candidates = candidates[:fetchLimit]
	}
	if delta && len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
		hasMore = true
	}

	views := make([]View, 0, len(candidates))
	var nextCursor string
	for _, m := range candidates {
		read, err := s.eng.Store().IsMessageRead(opts.Agent, m.ID)
		if err != nil {
			return ReadResult{}, codes.Internalf(err)
		}

		if opts.UnreadOnly && read {
			continue
		}

		view := View{Message: m, Read: read}

		if opts.ResolveBlobRefs {
			if hash, declared, ok := codec.ParseBlobRef(m.Content); ok {
				view.BlobRef = &BlobRefView{Hash: hash, DeclaredChars: declared}
				blob, err := s.eng.Store().GetBlob(hash)
				if err == nil && blob != nil {
					decoded, decErr := codec.Decode(string(blob.Value))
					if decErr == nil {
						view.BlobRef.Resolved = true
						view.BlobRef.IntegrityOK = decoded.IntegrityOK
						view.BlobRef.Codec = string(decoded.Codec)
						view.ResolvedContent = decoded.Value
					}
				}
			}
		}

		views = append(views, view)

		if !read {
			if err := s.markRead(opts.Agent, m.ID); err != nil {
				return ReadResult{}, codes.Internalf(err)
			}
			view.Read = true
		}

		if delta {
			nextCursor = EncodeCursor(m.CreatedAt, m.ID)
		}
	}

	return ReadResult{Messages: views, HasMore: hasMore, NextCursor: nextCursor}, nil
}

func (s *Store) markRead(agentID string, messageID int64) error {
	cmd, err := engine.NewMarkMessageReadCommand(agentID, messageID, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	_, err = s.eng.Apply(cmd, applyTimeout)
	return err
}

func afterCursor(m *types.Message, cursorCreatedAt, cursorID int64) bool {
	if m.CreatedAt != cursorCreatedAt {
		return m.CreatedAt > cursorCreatedAt
	}
	return m.ID > cursorID
}

// EncodeCursor renders the "<created_at>:<id>" cursor format.
func EncodeCursor(createdAt, id int64) string {
	return fmt.Sprintf("%d:%d", createdAt, id)
}

// DecodeCursor parses the "<created_at>:<id>" cursor format.
func DecodeCursor(cursor string) (createdAt int64, id int64, err error) {
	parts := strings.SplitN(cursor, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("messages: malformed cursor %q", cursor)
	}
	createdAt, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("messages: malformed cursor %q: %w", cursor, err)
	}
	id, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("messages: malformed cursor %q: %w", cursor, err)
	}
	return createdAt, id, nil
}
