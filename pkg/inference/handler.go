// Package inference implements the fetch-cache-load-infer request handler.
//
// Every invocation parses the event body into a frame, makes sure the model artifact is
// in the local cache (downloading it on a cold cache), deserializes it into a predictor
// and answers with an API Gateway proxy response. Failures become error responses with a
// status code; Handle never returns a Go error for them.
package inference

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"github.com/Eventual-Inc/modelfn/pkg/artifactcache"
	"github.com/Eventual-Inc/modelfn/pkg/config"
	"github.com/Eventual-Inc/modelfn/pkg/frame"
	"github.com/Eventual-Inc/modelfn/pkg/logging/timing"
	"github.com/Eventual-Inc/modelfn/pkg/metrics"
	"github.com/Eventual-Inc/modelfn/pkg/model"
	"github.com/Eventual-Inc/modelfn/pkg/objectstorage"
)

type ArtifactCache interface {
	GetOrFetch(ctx context.Context, objectPath string) (string, error)
}

type ModelLoader interface {
	Load(ctx context.Context, format string, path string) (model.Predictor, error)
}

type Handler struct {
	config config.Config
	cache  ArtifactCache
	loader ModelLoader

	mu            sync.Mutex
	predictor     model.Predictor
	predictorPath string
}

func NewHandler(cfg config.Config, cache ArtifactCache, loader ModelLoader) *Handler {
	return &Handler{
		config: cfg,
		cache:  cache,
		loader: loader,
	}
}

// New wires a Handler against the object store, cache directory and loaders named by cfg
func New(ctx context.Context, cfg config.Config) (*Handler, error) {
	store, err := objectstorage.StoreFactory(ctx, cfg.Location())
	if err != nil {
		return nil, fmt.Errorf("unable to create object store: %w", err)
	}
	cache := artifactcache.New(cfg.CacheDir, store)
	registry := model.NewDefaultRegistry(model.ParseBridgeCommand(cfg.BridgeCommand))
	return NewHandler(cfg, cache, registry), nil
}

// Handle serves one invocation. The returned error is always nil; failures are reported
// through the response status.
func (h *Handler) Handle(ctx context.Context, event Event) (events.APIGatewayProxyResponse, error) {
	predictions, err := h.Predict(ctx, event)
	if err != nil {
		return errorResponse(err), nil
	}
	return successResponse(predictions), nil
}

// Predict runs one invocation and returns the raw predictions, or an error that Classify
// maps to a response status
func (h *Handler) Predict(ctx context.Context, event Event) ([]interface{}, error) {
	start := time.Now()
	if h.config.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.InvokeTimeout)
		defer cancel()
	}
	log := logrus.WithFields(logrus.Fields{
		"request_id": RequestID(ctx),
		"artifact":   h.config.ModelPath(),
	})

	predictions, err := h.invoke(ctx, log, event)
	status := http.StatusOK
	if err != nil {
		status, _ = Classify(err)
		entry := log.WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			entry.Error("Invocation failed")
		} else {
			entry.Info("Rejected invocation")
		}
	} else {
		log.WithField("rows", len(predictions)).Debug("Invocation succeeded")
	}

	metrics.Invocations.WithLabelValues(strconv.Itoa(status)).Inc()
	metrics.InvocationDuration.Observe(time.Since(start).Seconds())
	return predictions, err
}

func (h *Handler) invoke(ctx context.Context, log logrus.FieldLogger, event Event) ([]interface{}, error) {
	payload, err := event.Payload()
	if err != nil {
		return nil, err
	}
	input, err := frame.Parse(payload)
	if err != nil {
		return nil, err
	}
	defer input.Release()

	predictor, err := h.predictorFor(ctx, log)
	if err != nil {
		return nil, err
	}

	defer timing.Timeit(log, "predict")()
	predictions, err := predictor.Predict(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(predictions) != input.NumRows() {
		return nil, fmt.Errorf("%w: predictor returned %d predictions for %d rows", model.ErrPredict, len(predictions), input.NumRows())
	}
	return predictions, nil
}

// Warm fetches and loads the model ahead of the first invocation
func (h *Handler) Warm(ctx context.Context) error {
	_, err := h.predictorFor(ctx, logrus.WithField("artifact", h.config.ModelPath()))
	return err
}

func (h *Handler) predictorFor(ctx context.Context, log logrus.FieldLogger) (model.Predictor, error) {
	fetched := timing.Timeit(log, "fetch")
	path, err := h.cache.GetOrFetch(ctx, h.config.ModelPath())
	fetched()
	if err != nil {
		return nil, err
	}
	if !h.config.ReuseModel {
		return h.load(ctx, log, path)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.predictor != nil && h.predictorPath == path {
		return h.predictor, nil
	}
	predictor, err := h.load(ctx, log, path)
	if err != nil {
		return nil, err
	}
	h.predictor = predictor
	h.predictorPath = path
	return predictor, nil
}

func (h *Handler) load(ctx context.Context, log logrus.FieldLogger, path string) (model.Predictor, error) {
	defer timing.Timeit(log, "load")()
	return h.loader.Load(ctx, h.config.ModelFormat, path)
}
