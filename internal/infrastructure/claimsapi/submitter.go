package claimsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/claims-intake/internal/core/domain"
	"github.com/kirillkom/claims-intake/internal/infrastructure/resilience"
)

type SubmitterOptions struct {
	Path       string
	Resilience resilience.Config
	Executor   *resilience.Executor
}

// Submitter posts finalized claims to the backend.
type Submitter struct {
	client   *Client
	path     string
	executor *resilience.Executor
}

func NewSubmitter(client *Client, opts SubmitterOptions) *Submitter {
	return &Submitter{
		client:   client,
		path:     normalizePath(opts.Path, "/claims/"),
		executor: newExecutorIfNil(opts.Executor, opts.Resilience),
	}
}

func (s *Submitter) SubmitClaim(ctx context.Context, payload domain.ClaimPayload) (domain.SubmissionAck, error) {
	var raw []byte
	err := s.executor.Execute(ctx, "claims.submit", func(attemptCtx context.Context) error {
		body, err := s.client.post(attemptCtx, s.path, payload, "submit")
		if err != nil {
			return err
		}
		raw = body
		return nil
	}, classifySubmitError)
	if err != nil {
		return domain.SubmissionAck{}, toSubmissionError(err)
	}

	resp := DecodeSubmissionResponse(raw)
	if resp.Shape == ShapeUnrecognized {
		slog.Warn("claims_api_unrecognized_submit_response", "body_bytes", len(raw))
		return domain.SubmissionAck{}, nil
	}
	return domain.SubmissionAck{ClaimID: resp.ClaimID, Recognized: true}, nil
}

type ResponseShape int

const (
	ShapeUnrecognized ResponseShape = iota
	ShapeSuccess
)

// SubmissionResponse is the decoded accepted-claim body. ClaimID is set only for ShapeSuccess.
type SubmissionResponse struct {
	Shape   ResponseShape
	ClaimID string
}

// DecodeSubmissionResponse reads {"data":{"id":..}} or {"id":..}; anything else is unrecognized.
func DecodeSubmissionResponse(raw []byte) SubmissionResponse {
	body, ok := decodeObject(raw)
	if !ok {
		return SubmissionResponse{Shape: ShapeUnrecognized}
	}
	if data, ok := body["data"].(map[string]any); ok {
		if id, ok := idString(data["id"]); ok {
			return SubmissionResponse{Shape: ShapeSuccess, ClaimID: id}
		}
	}
	if id, ok := idString(body["id"]); ok {
		return SubmissionResponse{Shape: ShapeSuccess, ClaimID: id}
	}
	return SubmissionResponse{Shape: ShapeUnrecognized}
}

func decodeObject(raw []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil || body == nil {
		return nil, false
	}
	return body, true
}

func idString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case json.Number:
		return id.String(), true
	default:
		return "", false
	}
}

const genericRejection = "The claims service rejected the submission."

// backendMessage prefers field errors over detail and message text.
func backendMessage(raw []byte) (string, map[string]string) {
	body, ok := decodeObject(raw)
	if !ok {
		return genericRejection, nil
	}

	fields := fieldErrors(body)
	if len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+": "+fields[name])
		}
		return strings.Join(parts, "; "), fields
	}

	for _, key := range []string{"non_field_errors", "detail", "message", "error"} {
		if text := firstText(body[key]); text != "" {
			return text, nil
		}
	}
	return genericRejection, nil
}

var nonFieldKeys = map[string]bool{
	"detail":           true,
	"message":          true,
	"error":            true,
	"status":           true,
	"code":             true,
	"non_field_errors": true,
	"errors":           true,
}

func fieldErrors(body map[string]any) map[string]string {
	source := body
	if nested, ok := body["errors"].(map[string]any); ok {
		source = nested
	}

	fields := make(map[string]string)
	for key, value := range source {
		if nonFieldKeys[key] {
			continue
		}
		if text := firstText(value); text != "" {
			fields[key] = text
		}
	}
	return fields
}

func firstText(v any) string {
	switch value := v.(type) {
	case []any:
		for _, item := range value {
			if text, ok := item.(string); ok && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
	case string:
		return strings.TrimSpace(value)
	}
	return ""
}
