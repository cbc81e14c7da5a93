package schema

import (
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"
	"gopkg.in/yaml.v3"
)

type TypeEnum = string

var (
	DoubleType TypeEnum = "double"
	StringType TypeEnum = "string"
	BoolType   TypeEnum = "boolean"
)

var FieldTypeToArrowType = map[TypeEnum]arrow.DataType{
	DoubleType: arrow.PrimitiveTypes.Float64,
	StringType: arrow.BinaryTypes.String,
	BoolType:   arrow.FixedWidthTypes.Boolean,
}

// FeatureField declares one input column a model consumes
type FeatureField struct {
	Name string   `yaml:"name" json:"name"`
	Doc  string   `yaml:"doc,omitempty" json:"doc,omitempty"`
	Type TypeEnum `yaml:"type,omitempty" json:"type,omitempty"`
}

// UnmarshalYAML accepts either a full field mapping or a bare column name
func (field *FeatureField) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*field = NewDoubleField(node.Value, "")
		return nil
	}
	type plain FeatureField
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*field = FeatureField(decoded)
	if field.Type == "" {
		field.Type = DoubleType
	}
	if _, ok := FieldTypeToArrowType[field.Type]; !ok {
		return fmt.Errorf("feature %q has unsupported type %q", field.Name, field.Type)
	}
	return nil
}

type Schema struct {
	Fields []FeatureField `yaml:"fields,omitempty" json:"fields,omitempty"`
}

func (schema *Schema) Names() []string {
	names := make([]string, len(schema.Fields))
	for i, field := range schema.Fields {
		names[i] = field.Name
	}
	return names
}

func (schema *Schema) ArrowSchema() *arrow.Schema {
	var arrowFields []arrow.Field
	for _, field := range schema.Fields {
		arrowFields = append(arrowFields, arrow.Field{Name: field.Name, Type: FieldTypeToArrowType[field.Type], Nullable: true})
	}
	return arrow.NewSchema(arrowFields, nil)
}

func NewDoubleField(name string, doc string) FeatureField {
	return FeatureField{
		Name: name,
		Doc:  doc,
		Type: DoubleType,
	}
}

func NewStringField(name string, doc string) FeatureField {
	return FeatureField{
		Name: name,
		Doc:  doc,
		Type: StringType,
	}
}

func NewBoolField(name string, doc string) FeatureField {
	return FeatureField{
		Name: name,
		Doc:  doc,
		Type: BoolType,
	}
}
