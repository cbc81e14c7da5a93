package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
)

// ErrInvalidRequest means the event itself is unusable, before any model is involved
var ErrInvalidRequest = errors.New("invalid request")

// Event is one inference call. It matches the body fields of an API Gateway proxy
// request, and also accepts a body that is already structured JSON.
type Event struct {
	Body            json.RawMessage `json:"body"`
	IsBase64Encoded bool            `json:"isBase64Encoded,omitempty"`
}

// Payload returns the JSON document carried by the event body
func (event Event) Payload() ([]byte, error) {
	body := bytes.TrimSpace(event.Body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, fmt.Errorf("%w: missing body", ErrInvalidRequest)
	}
	if body[0] != '"' {
		return body, nil
	}
	var text string
	if err := json.Unmarshal(body, &text); err != nil {
		return nil, fmt.Errorf("%w: body is not a valid JSON string: %v", ErrInvalidRequest, err)
	}
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("%w: body is not valid base64: %v", ErrInvalidRequest, err)
		}
		return decoded, nil
	}
	if len(bytes.TrimSpace([]byte(text))) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidRequest)
	}
	return []byte(text), nil
}

type requestIDKey struct{}

// WithRequestID attaches a request ID for callers that do not run inside Lambda
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the Lambda request ID, an ID attached with WithRequestID, or a new uuid
func RequestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}
