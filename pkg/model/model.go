package model

import (
	"context"
	"errors"

	"github.com/Eventual-Inc/modelfn/pkg/frame"
)

var (
	// ErrLoad means the artifact could not be deserialized into a Predictor
	ErrLoad = errors.New("model load failed")
	// ErrInvalidInput means the input frame does not fit what the model consumes
	ErrInvalidInput = errors.New("invalid model input")
	// ErrPredict means the predictor failed while running
	ErrPredict = errors.New("prediction failed")
)

// Predictor is a loaded model. Implementations are read-only after loading and safe for
// concurrent use.
type Predictor interface {
	// Predict returns one prediction per input row, each a JSON-compatible value
	Predict(ctx context.Context, input *frame.Frame) ([]interface{}, error)
}

// Loader deserializes a local artifact file into a Predictor
type Loader interface {
	Load(ctx context.Context, path string) (Predictor, error)
}

type LoaderFunc func(ctx context.Context, path string) (Predictor, error)

func (f LoaderFunc) Load(ctx context.Context, path string) (Predictor, error) {
	return f(ctx, path)
}

// PredictorFunc adapts a function into a Predictor
type PredictorFunc func(ctx context.Context, input *frame.Frame) ([]interface{}, error)

func (f PredictorFunc) Predict(ctx context.Context, input *frame.Frame) ([]interface{}, error) {
	return f(ctx, input)
}
