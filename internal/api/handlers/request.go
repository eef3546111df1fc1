package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/advisorhub/mira/internal/api/middleware"
	"github.com/advisorhub/mira/pkg/models"
)

const truncationMarker = "... [truncated]"

// chatBody is the raw request body. Messages stay raw so shape errors can be
// reported precisely.
type chatBody struct {
	Mode        models.ChatMode        `json:"mode"`
	Messages    json.RawMessage        `json:"messages"`
	Metadata    map[string]interface{} `json:"metadata"`
	Context     *models.MiraContext    `json:"context"`
	Event       *models.AIALEvent      `json:"event"`
	Temperature *float64               `json:"temperature"`
	MaxTokens   *int                   `json:"max_tokens"`

	TenantID      string `json:"tenantId"`
	TenantIDSnake string `json:"tenant_id"`
	RequestID     string `json:"requestId"`
}

// validationError is a 400 with a client-facing message.
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func invalid(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// chatRequest validates the messages of a stream or batch body and returns
// the sanitized request.
func (b *chatBody) chatRequest(maxMessages, maxContent int) (*models.ChatRequest, error) {
	raw := bytes.TrimSpace(b.Messages)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, invalid("Missing required field: messages")
	}
	if raw[0] != '[' {
		return nil, invalid("messages must be an array")
	}
	var msgs []models.ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, invalid("Invalid messages: %v", err)
	}
	if len(msgs) == 0 {
		return nil, invalid("messages array cannot be empty")
	}

	// Validate what the pipeline will see: history beyond maxMessages is
	// dropped first.
	msgs = sanitizeMessages(msgs, maxMessages, maxContent)
	hasUser := false
	for _, m := range msgs {
		if !m.Role.Valid() {
			return nil, invalid("Invalid message role: %s", m.Role)
		}
		if !m.HasContent {
			return nil, invalid("Each message must have content")
		}
		if m.Role == models.RoleUser {
			hasUser = true
		}
	}
	if !hasUser {
		return nil, invalid("At least one user message is required")
	}

	metadata := b.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &models.ChatRequest{
		Mode:        b.Mode,
		Messages:    msgs,
		Metadata:    metadata,
		Context:     b.Context,
		Temperature: b.Temperature,
		MaxTokens:   b.MaxTokens,
	}, nil
}

// sanitizeMessages keeps the most recent maxMessages and truncates content
// longer than maxContent characters.
func sanitizeMessages(msgs []models.ChatMessage, maxMessages, maxContent int) []models.ChatMessage {
	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	out := make([]models.ChatMessage, len(msgs))
	for i, m := range msgs {
		m.Content = truncateContent(m.Content, maxContent)
		out[i] = m
	}
	return out
}

func truncateContent(s string, limit int) string {
	if limit <= 0 || len(s) <= limit || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + truncationMarker
}

// tenantID resolves the request tenant: body, metadata, advisor, context,
// then the X-Tenant-Id header.
func (b *chatBody) tenantID(ctx context.Context) string {
	for _, v := range []string{b.TenantID, b.TenantIDSnake, models.StringFrom(b.Metadata, "tenantId", "tenant_id")} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if advisor, ok := b.Metadata["advisor"].(map[string]interface{}); ok {
		if v := strings.TrimSpace(models.StringFrom(advisor, "tenantId", "tenant_id")); v != "" {
			return v
		}
	}
	if b.Context != nil && strings.TrimSpace(b.Context.TenantID) != "" {
		return strings.TrimSpace(b.Context.TenantID)
	}
	v, _ := middleware.TenantFromContext(ctx)
	return v
}

func (b *chatBody) requestID() string {
	if id := strings.TrimSpace(b.RequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

// advisorID reads the advisor from metadata, then the context.
func (b *chatBody) advisorID() string {
	if v := strings.TrimSpace(models.StringFrom(b.Metadata, "advisorId", "advisor_id")); v != "" {
		return v
	}
	if advisor, ok := b.Metadata["advisor"].(map[string]interface{}); ok {
		if v := strings.TrimSpace(models.StringFrom(advisor, "id")); v != "" {
			return v
		}
	}
	if b.Context != nil {
		return strings.TrimSpace(b.Context.AdvisorID)
	}
	return ""
}

// miraContext returns the request context, or one derived from metadata
// module/topic/journey_type and page, defaulting to the customer module.
func miraContext(req *models.ChatRequest, tenantID string) *models.MiraContext {
	var out models.MiraContext
	if req.Context != nil {
		out = *req.Context
	} else {
		for _, key := range []string{"module", "topic", "journey_type"} {
			if m := models.MiraModule(models.StringFrom(req.Metadata, key)); m.Valid() {
				out.Module = m
				break
			}
		}
		out.Page = models.StringFrom(req.Metadata, "page")
		if pd, ok := req.Metadata["pageData"].(map[string]interface{}); ok {
			out.PageData = pd
		}
	}
	if !out.Module.Valid() {
		out.Module = models.ModuleCustomer
	}
	if out.Page == "" {
		out.Page = "/"
	}
	if out.TenantID == "" {
		out.TenantID = tenantID
	}
	return &out
}

// topicHistory reads metadata.topic_history, seeded with metadata.topic.
func topicHistory(meta map[string]interface{}) []string {
	var out []string
	if raw, ok := meta["topic_history"].([]interface{}); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		if t := models.StringFrom(meta, "topic"); t != "" {
			out = []string{t}
		}
	}
	return out
}
