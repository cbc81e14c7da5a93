package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Eventual-Inc/modelfn/pkg/frame"
	"github.com/Eventual-Inc/modelfn/pkg/schema"
)

// Native model kinds
const KindLinear = "linear"
const KindTree = "tree"

// Document is the on-disk form of a native model, written as YAML or JSON.
//
//	kind: linear
//	features: [sepal_length, sepal_width, petal_length, petal_width]
//	classes: [setosa, versicolor, virginica]
//	coefficients: [[...], [...], [...]]
//	intercepts: [...]
type Document struct {
	Kind         string                `yaml:"kind"`
	Features     []schema.FeatureField `yaml:"features"`
	Classes      []interface{}         `yaml:"classes,omitempty"`
	Coefficients [][]float64           `yaml:"coefficients,omitempty"`
	Intercepts   []float64             `yaml:"intercepts,omitempty"`
	Nodes        []TreeNode            `yaml:"nodes,omitempty"`
}

// TreeNode is either a split (feature, threshold, left, right) or a leaf (value).
// Rows go left when x[feature] <= threshold.
type TreeNode struct {
	Feature   int         `yaml:"feature,omitempty"`
	Threshold float64     `yaml:"threshold,omitempty"`
	Left      int         `yaml:"left,omitempty"`
	Right     int         `yaml:"right,omitempty"`
	Value     interface{} `yaml:"value,omitempty"`
}

func (node TreeNode) isLeaf() bool {
	return node.Left == 0 && node.Right == 0
}

type NativeLoader struct{}

func (NativeLoader) Load(_ context.Context, path string) (Predictor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unable to decode model document: %w", err)
	}
	return NewNativePredictor(doc)
}

// NewNativePredictor validates doc and builds its predictor
func NewNativePredictor(doc Document) (Predictor, error) {
	if len(doc.Features) == 0 {
		return nil, errors.New("model declares no features")
	}
	for _, field := range doc.Features {
		if field.Type != schema.DoubleType && field.Type != schema.BoolType {
			return nil, fmt.Errorf("feature %q has type %s, native models only take numeric features", field.Name, field.Type)
		}
	}
	features := (&schema.Schema{Fields: doc.Features}).Names()
	switch doc.Kind {
	case KindLinear:
		return newLinearPredictor(doc, features)
	case KindTree:
		return newTreePredictor(doc, features)
	default:
		return nil, fmt.Errorf("unsupported native model kind %q", doc.Kind)
	}
}

type linearPredictor struct {
	features     []string
	classes      []interface{}
	coefficients [][]float64
	intercepts   []float64
}

func newLinearPredictor(doc Document, features []string) (*linearPredictor, error) {
	if len(doc.Coefficients) == 0 {
		return nil, errors.New("linear model has no coefficients")
	}
	for i, row := range doc.Coefficients {
		if len(row) != len(features) {
			return nil, fmt.Errorf("coefficient row %d has %d values, expected %d", i, len(row), len(features))
		}
	}
	intercepts := doc.Intercepts
	if len(intercepts) == 0 {
		intercepts = make([]float64, len(doc.Coefficients))
	}
	if len(intercepts) != len(doc.Coefficients) {
		return nil, fmt.Errorf("linear model has %d intercepts for %d coefficient rows", len(intercepts), len(doc.Coefficients))
	}
	switch {
	case len(doc.Classes) == 0 && len(doc.Coefficients) != 1:
		return nil, errors.New("regression model must have exactly one coefficient row")
	case len(doc.Classes) == 2 && len(doc.Coefficients) == 1:
	case len(doc.Classes) > 0 && len(doc.Classes) != len(doc.Coefficients):
		return nil, fmt.Errorf("linear model has %d classes for %d coefficient rows", len(doc.Classes), len(doc.Coefficients))
	}
	return &linearPredictor{
		features:     features,
		classes:      doc.Classes,
		coefficients: doc.Coefficients,
		intercepts:   intercepts,
	}, nil
}

func (p *linearPredictor) Predict(ctx context.Context, input *frame.Frame) ([]interface{}, error) {
	rows, err := input.Float64Rows(p.features)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	predictions := make([]interface{}, len(rows))
	for r, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores := make([]float64, len(p.coefficients))
		for k, coefficients := range p.coefficients {
			score := p.intercepts[k]
			for i, x := range row {
				score += coefficients[i] * x
			}
			scores[k] = score
		}
		predictions[r] = p.decide(scores)
	}
	return predictions, nil
}

func (p *linearPredictor) decide(scores []float64) interface{} {
	if len(p.classes) == 0 {
		return scores[0]
	}
	if len(scores) == 1 {
		if scores[0] > 0 {
			return p.classes[1]
		}
		return p.classes[0]
	}
	best := 0
	for k := 1; k < len(scores); k++ {
		if scores[k] > scores[best] {
			best = k
		}
	}
	return p.classes[best]
}

type treePredictor struct {
	features []string
	nodes    []TreeNode
}

func newTreePredictor(doc Document, features []string) (*treePredictor, error) {
	if len(doc.Nodes) == 0 {
		return nil, errors.New("tree model has no nodes")
	}
	for i, node := range doc.Nodes {
		if node.isLeaf() {
			if node.Value == nil {
				return nil, fmt.Errorf("leaf node %d has no value", i)
			}
			continue
		}
		// children always come after their parent, which rules out cycles
		if node.Left <= i || node.Right <= i || node.Left >= len(doc.Nodes) || node.Right >= len(doc.Nodes) {
			return nil, fmt.Errorf("node %d has invalid children %d and %d", i, node.Left, node.Right)
		}
		if node.Feature < 0 || node.Feature >= len(features) {
			return nil, fmt.Errorf("node %d splits on unknown feature %d", i, node.Feature)
		}
		if math.IsNaN(node.Threshold) {
			return nil, fmt.Errorf("node %d has a NaN threshold", i)
		}
	}
	return &treePredictor{features: features, nodes: doc.Nodes}, nil
}

func (p *treePredictor) Predict(ctx context.Context, input *frame.Frame) ([]interface{}, error) {
	rows, err := input.Float64Rows(p.features)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	predictions := make([]interface{}, len(rows))
	for r, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := 0
		for !p.nodes[idx].isLeaf() {
			node := p.nodes[idx]
			if row[node.Feature] <= node.Threshold {
				idx = node.Left
			} else {
				idx = node.Right
			}
		}
		predictions[r] = p.nodes[idx].Value
	}
	return predictions, nil
}
