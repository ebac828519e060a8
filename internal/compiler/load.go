package compiler

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/csc/internal/ir"
)

// Format names a behavior spec encoding.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported spec file extension %q (want .cue, .json, .yaml or .yml)", filepath.Ext(path))
	}
}

var ruleFields = map[string]bool{
	"id": true, "when": true, "then": true, "scope": true, "cooldown": true, "guards": true,
}

// LoadFile reads a behavior spec from disk. The document may be the behavior
// container itself or hold it under a top-level "behavior" key.
func LoadFile(path string) (ir.BehaviorSpec, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return ir.BehaviorSpec{}, &SpecError{Code: ErrLoad, Field: "file", Message: err.Error(), Pos: ir.Position{File: path}}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.BehaviorSpec{}, &SpecError{Code: ErrLoad, Field: "file", Message: fmt.Sprintf("read spec: %v", err), Pos: ir.Position{File: path}}
	}
	return LoadBytes(data, format, path)
}

// LoadBytes decodes a behavior spec held in memory. source names the origin
// in error positions.
func LoadBytes(data []byte, format Format, source string) (ir.BehaviorSpec, error) {
	switch format {
	case FormatCUE, FormatJSON:
		return loadCUE(data, source)
	case FormatYAML:
		return loadYAML(data, source)
	default:
		return ir.BehaviorSpec{}, &SpecError{Code: ErrLoad, Field: "file", Message: fmt.Sprintf("unsupported format %q", format), Pos: ir.Position{File: source}}
	}
}

// loadCUE handles CUE and JSON alike: JSON is valid CUE, and going through
// cuecontext keeps per-rule positions.
func loadCUE(data []byte, source string) (ir.BehaviorSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(source))
	if err := v.Err(); err != nil {
		return ir.BehaviorSpec{}, formatCUEError(err, source)
	}

	if b := v.LookupPath(cue.ParsePath("behavior")); b.Exists() {
		v = b
	}

	spec := ir.BehaviorSpec{Source: source}
	schemaErr := func(field, msg string, pos cue.Value) error {
		p := positionOf(pos.Pos())
		if !p.IsValid() {
			p.File = source
		}
		return &SpecError{Code: ErrSchemaVersion, Field: field, Message: msg, Pos: p}
	}

	sv := v.LookupPath(cue.ParsePath("schema_version"))
	if sv.Exists() {
		s, err := sv.String()
		if err != nil {
			return ir.BehaviorSpec{}, schemaErr("schema_version", "schema_version must be a string", sv)
		}
		spec.SchemaVersion = s
	}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return spec, nil
	}
	iter, err := rulesVal.List()
	if err != nil {
		return ir.BehaviorSpec{}, schemaErr("rules", "rules must be a list", rulesVal)
	}

	for i := 0; iter.Next(); i++ {
		rv := iter.Value()
		field := fmt.Sprintf("rules[%d]", i)
		fields, err := rv.Fields()
		if err != nil {
			return ir.BehaviorSpec{}, schemaErr(field, "rule must be a struct", rv)
		}

		decl := ir.RuleDecl{Pos: positionOf(rv.Pos())}
		for fields.Next() {
			label, fv := fields.Selector().Unquoted(), fields.Value()
			if !ruleFields[label] {
				return ir.BehaviorSpec{}, schemaErr(field+"."+label, fmt.Sprintf("unknown rule field %q", label), fv)
			}
			switch label {
			case "id", "when", "then", "scope":
				s, err := fv.String()
				if err != nil {
					return ir.BehaviorSpec{}, schemaErr(field+"."+label, label+" must be a string", fv)
				}
				switch label {
				case "id":
					decl.ID = s
				case "when":
					decl.When = s
				case "then":
					decl.Then = s
				case "scope":
					decl.Scope = s
				}
			case "guards":
				giter, err := fv.List()
				if err != nil {
					return ir.BehaviorSpec{}, schemaErr(field+".guards", "guards must be a list of strings", fv)
				}
				for giter.Next() {
					g, err := giter.Value().String()
					if err != nil {
						return ir.BehaviorSpec{}, schemaErr(field+".guards", "guards must be a list of strings", giter.Value())
					}
					decl.Guards = append(decl.Guards, g)
				}
			case "cooldown":
				var cd any
				if err := fv.Decode(&cd); err != nil {
					return ir.BehaviorSpec{}, schemaErr(field+".cooldown", fmt.Sprintf("cooldown: %v", err), fv)
				}
				decl.Cooldown = cd
			}
		}
		spec.Rules = append(spec.Rules, decl)
	}
	return spec, nil
}

func loadYAML(data []byte, source string) (ir.BehaviorSpec, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return ir.BehaviorSpec{}, &SpecError{Code: ErrLoad, Field: "yaml", Message: err.Error(), Pos: ir.Position{File: source}}
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	schemaErr := func(field, msg string, n *yaml.Node) error {
		return &SpecError{Code: ErrSchemaVersion, Field: field, Message: msg, Pos: ir.Position{File: source, Line: n.Line, Col: n.Column}}
	}
	if root.Kind != yaml.MappingNode {
		return ir.BehaviorSpec{}, schemaErr("document", "spec must be a mapping", root)
	}
	if b := mappingValue(root, "behavior"); b != nil {
		root = b
		if root.Kind != yaml.MappingNode {
			return ir.BehaviorSpec{}, schemaErr("behavior", "behavior must be a mapping", root)
		}
	}

	spec := ir.BehaviorSpec{Source: source}
	if sv := mappingValue(root, "schema_version"); sv != nil {
		if sv.Kind != yaml.ScalarNode {
			return ir.BehaviorSpec{}, schemaErr("schema_version", "schema_version must be a string", sv)
		}
		spec.SchemaVersion = sv.Value
	}

	rules := mappingValue(root, "rules")
	if rules == nil {
		return spec, nil
	}
	if rules.Kind != yaml.SequenceNode {
		return ir.BehaviorSpec{}, schemaErr("rules", "rules must be a list", rules)
	}

	for i, rn := range rules.Content {
		field := fmt.Sprintf("rules[%d]", i)
		if rn.Kind != yaml.MappingNode {
			return ir.BehaviorSpec{}, schemaErr(field, "rule must be a mapping", rn)
		}
		for j := 0; j+1 < len(rn.Content); j += 2 {
			key := rn.Content[j].Value
			if !ruleFields[key] {
				return ir.BehaviorSpec{}, schemaErr(field+"."+key, fmt.Sprintf("unknown rule field %q", key), rn.Content[j])
			}
		}

		var decl ir.RuleDecl
		if err := rn.Decode(&decl); err != nil {
			return ir.BehaviorSpec{}, schemaErr(field, err.Error(), rn)
		}
		decl.Pos = ir.Position{File: source, Line: rn.Line, Col: rn.Column}
		spec.Rules = append(spec.Rules, decl)
	}
	return spec, nil
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
