package hub

import (
	"github.com/cuemby/caephub/pkg/api"
	"github.com/cuemby/caephub/pkg/codec"
	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/events"
	"github.com/cuemby/caephub/pkg/messages"
	"github.com/cuemby/caephub/pkg/shaping"
)

// SendMessageRequest is send_message's input.
type SendMessageRequest struct {
	From           string
	To             string
	Content        string
	Metadata       string
	TraceID        string
	SpanID         string
	IdempotencyKey string
}

// SendMessage appends a direct (To set) or broadcast (To empty) message.
func (h *Hub) SendMessage(req SendMessageRequest) result {
	return h.dispatch(req.From, "send_message", req.IdempotencyKey, func() (result, *codes.Error) {
		msg, err := h.messages.Send(messages.SendRequest{
			From:     req.From,
			To:       req.To,
			Content:  req.Content,
			Metadata: req.Metadata,
			TraceID:  req.TraceID,
			SpanID:   req.SpanID,
		})
		if err != nil {
			return nil, err
		}
		h.publish(events.EventMessageSent, "message sent", map[string]string{"from": msg.FromAgent, "to": msg.ToAgent})
		return ok(result{"message": messageMap(messages.View{Message: msg})}), nil
	})
}

// SendBlobMessageRequest is send_blob_message's input.
type SendBlobMessageRequest struct {
	From            string
	To              string
	Payload         string
	CompressionMode codec.Mode
	Metadata        string
	TraceID         string
	SpanID          string
	IdempotencyKey  string
}

// SendBlobMessage stores payload as a content-addressed protocol blob
// and sends a message whose content is a blob-ref envelope pointing at
// it, rather than inlining payload.
func (h *Hub) SendBlobMessage(req SendBlobMessageRequest) result {
	return h.dispatch(req.From, "send_blob_message", req.IdempotencyKey, func() (result, *codes.Error) {
		msg, encoded, err := h.messages.SendBlobMessage(messages.SendRequest{
			From:     req.From,
			To:       req.To,
			Metadata: req.Metadata,
			TraceID:  req.TraceID,
			SpanID:   req.SpanID,
		}, req.Payload, req.CompressionMode, h.cfg.MaxProtocolBlobChars)
		if err != nil {
			return nil, err
		}
		h.publish(events.EventBlobStored, "blob message sent", map[string]string{"from": msg.FromAgent, "to": msg.ToAgent})
		return ok(result{
			"message": messageMap(messages.View{Message: msg}),
			"codec": result{
				"used":     string(encoded.CodecUsed),
				"applied":  encoded.Applied,
				"lossless": encoded.Lossless,
				"gain_pct": encoded.GainPct,
			},
		}), nil
	})
}

// ReadMessagesRequest is read_messages's input.
type ReadMessagesRequest struct {
	Agent           string
	From            string
	UnreadOnly      bool
	Limit           int
	Offset          int
	SinceTS         int64
	Cursor          string
	Polling         bool
	ResolveBlobRefs bool
	ResponseMode    string
	IdempotencyKey  string
}

// ReadMessages returns messages addressed to req.Agent, shaped per
// req.ResponseMode and guarded against full-mode-while-polling.
func (h *Hub) ReadMessages(req ReadMessagesRequest) result {
	return h.dispatch(req.Agent, "read_messages", req.IdempotencyKey, func() (result, *codes.Error) {
		mode := shaping.Mode(req.ResponseMode)
		if mode == "" {
			mode = shaping.ModeCompact
		}
		if !mode.Valid() {
			return nil, codes.New(codes.Internal, "unknown response_mode")
		}

		delta := req.Cursor != "" || req.SinceTS != 0
		if gErr := api.GuardPollingToolMode(api.GuardRequest{
			Tool:          "read_messages",
			Mode:          mode,
			Polling:       req.Polling,
			Delta:         delta,
			AllowOverride: !h.cfg.DisallowFullInPolling,
		}); gErr != nil {
			return nil, gErr
		}

		res, err := h.messages.Read(messages.ReadOptions{
			Agent:           req.Agent,
			From:            req.From,
			UnreadOnly:      req.UnreadOnly,
			Limit:           req.Limit,
			Offset:          req.Offset,
			SinceTS:         req.SinceTS,
			Cursor:          req.Cursor,
			Polling:         req.Polling,
			ResolveBlobRefs: req.ResolveBlobRefs,
		})
		if err != nil {
			return nil, err
		}

		rows := make([]shaping.Row, len(res.Messages))
		for i, v := range res.Messages {
			rows[i] = messageRow(v)
		}
		shaped := shaping.ShapeAll(rows, mode)

		if mode == shaping.ModeNano {
			return shaping.NanoEnvelope("m", shaped, res.HasMore, res.NextCursor), nil
		}
		return ok(result{
			"messages":    shaped,
			"has_more":    res.HasMore,
			"next_cursor": res.NextCursor,
		}), nil
	})
}
