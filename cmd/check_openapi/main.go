package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"recordbook/pkg/domain"
	"recordbook/pkg/queue"
)

type openAPIDoc struct {
	Paths      map[string]map[string]any `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Nullable   bool              `yaml:"nullable"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

type schemaShape struct {
	Type       string
	Required   []string
	Properties map[string]propertyShape
}

type propertyShape struct {
	Type     string
	Nullable bool
	ItemsRef string
}

// routes served by the records service, keyed by path with the expected method.
var routes = map[string]string{
	"/healthz":     "get",
	"/readyz":      "get",
	"/":            "get",
	"/upload_data": "post",
	"/show_one":    "get",
	"/show_many":   "get",
	"/filtered":    "get",
	"/delete/{id}": "delete",
	"/update/{id}": "put",
	"/events":      "get",
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}

	doc, err := loadDoc(os.Args[1])
	if err != nil {
		exitErr(err)
	}
	if err := checkDoc(doc); err != nil {
		exitErr(err)
	}
	fmt.Println("OpenAPI consistency check passed.")
}

func checkDoc(doc openAPIDoc) error {
	if err := validateRoutes(doc); err != nil {
		return err
	}

	record, err := getSchema(doc, "Record")
	if err != nil {
		return err
	}
	if err := ensureSameShape("Record", shapeFromType(reflect.TypeOf(domain.Record{})), shapeFromSchema(record), true); err != nil {
		return err
	}

	fields, err := getSchema(doc, "RecordFields")
	if err != nil {
		return err
	}
	// Request bodies may omit any field, so only property shapes are compared.
	if err := ensureSameShape("RecordFields", shapeFromType(reflect.TypeOf(domain.Fields{})), shapeFromSchema(fields), false); err != nil {
		return err
	}

	event, err := getSchema(doc, "RecordEvent")
	if err != nil {
		return err
	}
	if err := ensureSameShape("RecordEvent", shapeFromType(reflect.TypeOf(queue.RecordEvent{})), shapeFromSchema(event), true); err != nil {
		return err
	}

	result, err := getSchema(doc, "Result")
	if err != nil {
		return err
	}
	return validateResult(result)
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateRoutes(doc openAPIDoc) error {
	paths := make([]string, 0, len(routes))
	for p := range routes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		ops, ok := doc.Paths[p]
		if !ok {
			return fmt.Errorf("path %q missing", p)
		}
		if _, ok := ops[routes[p]]; !ok {
			return fmt.Errorf("path %q missing %s operation", p, routes[p])
		}
	}
	return nil
}

func validateResult(s schema) error {
	if s.Type != "object" {
		return errors.New("Result must be object")
	}
	if !makeSet(s.Required)["success"] {
		return errors.New("Result.required must include \"success\"")
	}
	successProp, ok := s.Properties["success"]
	if !ok || successProp.Type != "boolean" {
		return errors.New("Result.success must be boolean")
	}
	for _, field := range []string{"message", "id", "error", "code", "requestId"} {
		prop, ok := s.Properties[field]
		if !ok || prop.Type != "string" {
			return fmt.Errorf("Result.%s must be string", field)
		}
	}
	return nil
}

// shapeFromType derives the JSON object shape of a struct from its json tags.
// Embedded structs are flattened the way encoding/json flattens them.
func shapeFromType(t reflect.Type) schemaShape {
	out := schemaShape{Type: "object", Properties: map[string]propertyShape{}}
	collectFields(t, &out)
	sort.Strings(out.Required)
	return out
}

func collectFields(t reflect.Type, out *schemaShape) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if f.Anonymous && tag == "" {
			collectFields(f.Type, out)
			continue
		}
		if !f.IsExported() || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		prop := propertyShape{}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			prop.Nullable = true
			ft = ft.Elem()
		}
		prop.Type = jsonType(ft)
		out.Properties[name] = prop
		if !strings.Contains(opts, "omitempty") {
			out.Required = append(out.Required, name)
		}
	}
}

func jsonType(t reflect.Type) string {
	if t == reflect.TypeOf(time.Time{}) {
		return "string"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

func shapeFromSchema(s schema) schemaShape {
	out := schemaShape{
		Type:       s.Type,
		Required:   append([]string(nil), s.Required...),
		Properties: make(map[string]propertyShape, len(s.Properties)),
	}
	sort.Strings(out.Required)
	for name, prop := range s.Properties {
		shape := propertyShape{Type: prop.Type, Nullable: prop.Nullable}
		if prop.Items != nil {
			shape.ItemsRef = strings.TrimSpace(prop.Items.Ref)
		}
		out.Properties[name] = shape
	}
	return out
}

// ensureSameShape compares the Go-derived shape (want) with the documented one (got).
func ensureSameShape(name string, want, got schemaShape, compareRequired bool) error {
	if want.Type != got.Type {
		return fmt.Errorf("%s type mismatch: %q vs %q", name, want.Type, got.Type)
	}
	if compareRequired && strings.Join(want.Required, ",") != strings.Join(got.Required, ",") {
		return fmt.Errorf("%s required mismatch: %v vs %v", name, want.Required, got.Required)
	}
	if len(want.Properties) != len(got.Properties) {
		return fmt.Errorf("%s property count mismatch: %d vs %d", name, len(want.Properties), len(got.Properties))
	}
	for key, wantProp := range want.Properties {
		gotProp, ok := got.Properties[key]
		if !ok {
			return fmt.Errorf("%s missing property %q in openapi schema", name, key)
		}
		if wantProp != gotProp {
			return fmt.Errorf("%s property %q mismatch: %+v vs %+v", name, key, wantProp, gotProp)
		}
	}
	return nil
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
