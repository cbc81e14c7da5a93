package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/Eventual-Inc/modelfn/pkg/frame"
)

// Bridge protocol
//
// Artifacts Go cannot deserialize natively (pickled estimators) are served by an external
// command. The command is started once per prediction with the artifact path appended to
// its arguments. The input frame arrives on stdin as an arrow IPC stream, column names
// included, and the command answers on stdout with
//
//	{"predictions": [...]}
//
// or, on failure,
//
//	{"error": "...", "error_type": "input" | "load" | "predict"}

const (
	bridgeErrorInput   = "input"
	bridgeErrorLoad    = "load"
	bridgeErrorPredict = "predict"
)

type bridgeResponse struct {
	Predictions []interface{} `json:"predictions"`
	Error       string        `json:"error,omitempty"`
	ErrorType   string        `json:"error_type,omitempty"`
}

type bridgeRunFn func(ctx context.Context, command []string, artifactPath string, input *frame.Frame) ([]interface{}, error)

var runBridge bridgeRunFn = defaultRunBridge

// ParseBridgeCommand splits a configured command line on whitespace
func ParseBridgeCommand(raw string) []string {
	return strings.Fields(strings.TrimSpace(raw))
}

type BridgeLoader struct {
	Command []string
}

func (l *BridgeLoader) Load(_ context.Context, path string) (Predictor, error) {
	if len(l.Command) == 0 {
		return nil, errors.New("bridge command is not configured")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("artifact %s is not a regular file", path)
	}
	return &bridgePredictor{command: l.Command, artifactPath: path}, nil
}

type bridgePredictor struct {
	command      []string
	artifactPath string
}

func (p *bridgePredictor) Predict(ctx context.Context, input *frame.Frame) ([]interface{}, error) {
	return runBridge(ctx, p.command, p.artifactPath, input)
}

func defaultRunBridge(ctx context.Context, command []string, artifactPath string, input *frame.Frame) ([]interface{}, error) {
	var stdin bytes.Buffer
	if err := input.WriteIPC(&stdin); err != nil {
		return nil, fmt.Errorf("%w: unable to encode bridge input: %w", ErrPredict, err)
	}
	args := append(append([]string{}, command[1:]...), artifactPath)
	cmd := exec.CommandContext(ctx, command[0], args...)
	cmd.Stdin = &stdin
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if runErr := cmd.Run(); runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		errText := strings.TrimSpace(stderr.String())
		var execErr *exec.Error
		var pathErr *os.PathError
		if errors.As(runErr, &execErr) || errors.As(runErr, &pathErr) {
			return nil, fmt.Errorf("%w: bridge command unavailable: %w", ErrLoad, runErr)
		}
		// a structured error on stdout takes precedence over the exit status
		if decoded, ok := decodeBridgeResponse(stdout.Bytes()); ok && decoded.Error != "" {
			return nil, bridgeError(decoded)
		}
		if errText == "" {
			return nil, fmt.Errorf("%w: bridge command failed: %w", ErrPredict, runErr)
		}
		return nil, fmt.Errorf("%w: bridge command failed: %w: %s", ErrPredict, runErr, errText)
	}

	decoded, ok := decodeBridgeResponse(stdout.Bytes())
	if !ok {
		return nil, fmt.Errorf("%w: unable to decode bridge response", ErrPredict)
	}
	if strings.TrimSpace(decoded.Error) != "" {
		return nil, bridgeError(decoded)
	}
	if len(decoded.Predictions) != input.NumRows() {
		return nil, fmt.Errorf(
			"%w: bridge returned %d predictions for %d rows",
			ErrPredict,
			len(decoded.Predictions),
			input.NumRows(),
		)
	}
	return decoded.Predictions, nil
}

func decodeBridgeResponse(raw []byte) (bridgeResponse, bool) {
	var decoded bridgeResponse
	if err := json.Unmarshal(bytes.TrimSpace(raw), &decoded); err != nil {
		return decoded, false
	}
	return decoded, true
}

func bridgeError(decoded bridgeResponse) error {
	msg := strings.TrimSpace(decoded.Error)
	switch decoded.ErrorType {
	case bridgeErrorInput:
		return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
	case bridgeErrorLoad:
		return fmt.Errorf("%w: %s", ErrLoad, msg)
	default:
		return fmt.Errorf("%w: bridge runtime error: %s", ErrPredict, msg)
	}
}
