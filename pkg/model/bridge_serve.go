package model

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/Eventual-Inc/modelfn/pkg/frame"
)

func bridgeErrorType(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, frame.ErrShape), errors.Is(err, frame.ErrMalformed):
		return bridgeErrorInput
	case errors.Is(err, ErrLoad):
		return bridgeErrorLoad
	default:
		return bridgeErrorPredict
	}
}

// ServeBridge is the command side of the bridge protocol: it reads one frame from in,
// predicts with the artifact at artifactPath and writes the response to out. The returned
// code is the process exit status.
func ServeBridge(ctx context.Context, loader Loader, artifactPath string, in io.Reader, out io.Writer) int {
	enc := json.NewEncoder(out)
	fail := func(err error) int {
		if encErr := enc.Encode(bridgeResponse{Error: err.Error(), ErrorType: bridgeErrorType(err)}); encErr != nil {
			return 2
		}
		return 1
	}

	predictor, err := loader.Load(ctx, artifactPath)
	if err != nil {
		return fail(errors.Join(ErrLoad, err))
	}
	input, err := frame.ReadIPC(in)
	if err != nil {
		return fail(err)
	}
	defer input.Release()

	predictions, err := predictor.Predict(ctx, input)
	if err != nil {
		return fail(err)
	}
	if predictions == nil {
		predictions = []interface{}{}
	}
	if err := enc.Encode(bridgeResponse{Predictions: predictions}); err != nil {
		return 2
	}
	return 0
}
