package schema

import (
	"reflect"
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"gopkg.in/yaml.v3"
)

func TestFeatureFieldUnmarshalYAML(t *testing.T) {
	doc := `
fields:
  - sepal_length
  - name: species_hint
    type: string
  - name: petal_width
    doc: width in cm
`
	var s Schema
	if err := yaml.Unmarshal([]byte(doc), &s); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	want := []FeatureField{
		{Name: "sepal_length", Type: DoubleType},
		{Name: "species_hint", Type: StringType},
		{Name: "petal_width", Doc: "width in cm", Type: DoubleType},
	}
	if !reflect.DeepEqual(s.Fields, want) {
		t.Fatalf("got %+v want %+v", s.Fields, want)
	}
	if names := s.Names(); !reflect.DeepEqual(names, []string{"sepal_length", "species_hint", "petal_width"}) {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestFeatureFieldRejectsUnknownType(t *testing.T) {
	var s Schema
	err := yaml.Unmarshal([]byte("fields:\n  - name: x\n    type: tensor\n"), &s)
	if err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestArrowSchema(t *testing.T) {
	s := Schema{Fields: []FeatureField{NewDoubleField("a", ""), NewStringField("b", ""), NewBoolField("c", "")}}
	arrowSchema := s.ArrowSchema()
	if len(arrowSchema.Fields()) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(arrowSchema.Fields()))
	}
	if names := s.Names(); !reflect.DeepEqual(names, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected names %v", names)
	}
	if !arrow.TypeEqual(arrowSchema.Field(1).Type, arrow.BinaryTypes.String) {
		t.Fatalf("unexpected type for b: %s", arrowSchema.Field(1).Type)
	}
}
