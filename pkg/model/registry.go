package model

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Eventual-Inc/modelfn/pkg/metrics"
)

// Artifact formats
const FormatAuto = "auto"
const FormatNative = "native"
const FormatBridge = "bridge"

// Registry maps artifact formats to the loaders that understand them
type Registry struct {
	loaders    map[string]Loader
	extensions map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		loaders:    map[string]Loader{},
		extensions: map[string]string{},
	}
}

// NewDefaultRegistry registers the native loader and, for pickled artifacts, the bridge
// loader running bridgeCommand
func NewDefaultRegistry(bridgeCommand []string) *Registry {
	registry := NewRegistry()
	registry.Register(FormatNative, NativeLoader{}, ".yaml", ".yml", ".json")
	registry.Register(FormatBridge, &BridgeLoader{Command: bridgeCommand}, ".pkl", ".pickle", ".joblib")
	return registry
}

// Register adds a loader for format, selected in auto mode for files with the given extensions
func (r *Registry) Register(format string, loader Loader, extensions ...string) {
	r.loaders[format] = loader
	for _, ext := range extensions {
		r.extensions[strings.ToLower(ext)] = format
	}
}

func (r *Registry) Formats() []string {
	formats := make([]string, 0, len(r.loaders))
	for format := range r.loaders {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// Resolve picks the concrete format for an artifact path
func (r *Registry) Resolve(format string, path string) (string, error) {
	if format == "" || format == FormatAuto {
		ext := strings.ToLower(filepath.Ext(path))
		resolved, ok := r.extensions[ext]
		if !ok {
			return "", fmt.Errorf("%w: no loader registered for extension %q", ErrLoad, ext)
		}
		return resolved, nil
	}
	if _, ok := r.loaders[format]; !ok {
		return "", fmt.Errorf("%w: unknown model format %q, expected one of %v", ErrLoad, format, r.Formats())
	}
	return format, nil
}

// Load deserializes the artifact at path. Every failure wraps ErrLoad.
func (r *Registry) Load(ctx context.Context, format string, path string) (Predictor, error) {
	resolved, err := r.Resolve(format, path)
	if err != nil {
		return nil, err
	}
	predictor, err := r.loaders[resolved].Load(ctx, path)
	if err != nil {
		metrics.ModelLoads.WithLabelValues(resolved, "error").Inc()
		return nil, fmt.Errorf("%w: %s artifact %s: %w", ErrLoad, resolved, path, err)
	}
	metrics.ModelLoads.WithLabelValues(resolved, "ok").Inc()
	return predictor, nil
}
