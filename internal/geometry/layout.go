package geometry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed layout_schema.json
var layoutSchemaJSON []byte

// layoutFile is the on-disk layout document (JSON or YAML).
type layoutFile struct {
	Version int    `json:"version" yaml:"version"`
	Name    string `json:"name" yaml:"name"`
	Width   int    `json:"width" yaml:"width"`
	Height  int    `json:"height" yaml:"height"`
	Grid    struct {
		Columns int `json:"columns" yaml:"columns"`
		Rows    int `json:"rows" yaml:"rows"`
	} `json:"grid" yaml:"grid"`
	Keys []layoutKey `json:"keys" yaml:"keys"`
	// AdditionalProximity maps a key's character to weaker-tier proximity
	// characters, e.g. "e" -> ["é", "è", "ê"].
	AdditionalProximity map[string][]string `json:"additionalProximity" yaml:"additionalProximity"`
}

type layoutKey struct {
	Char   string `json:"char" yaml:"char"`
	X      int    `json:"x" yaml:"x"`
	Y      int    `json:"y" yaml:"y"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
	Sweet  *struct {
		X      float64 `json:"x" yaml:"x"`
		Y      float64 `json:"y" yaml:"y"`
		Radius float64 `json:"radius" yaml:"radius"`
	} `json:"sweetSpot,omitempty" yaml:"sweetSpot,omitempty"`
}

// Load reads a layout file, validates it, and builds a Keyboard. The format
// is chosen by extension: .json (schema-validated) or .yaml/.yml.
func Load(path string) (*Keyboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON validates layout JSON against the embedded schema and builds a
// Keyboard from it.
func ParseJSON(data []byte) (*Keyboard, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("keyboard-layout-v1.schema.json",
		bytes.NewReader(layoutSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add layout schema: %w", err)
	}
	schema, err := compiler.Compile("keyboard-layout-v1.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile layout schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("parse layout json: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("layout schema validation: %w", err)
	}

	var lf layoutFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("decode layout json: %w", err)
	}
	return buildLayout(&lf)
}

// ParseYAML builds a Keyboard from a YAML layout document. YAML layouts are
// validated structurally by buildLayout rather than by JSON schema.
func ParseYAML(data []byte) (*Keyboard, error) {
	var lf layoutFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("decode layout yaml: %w", err)
	}
	return buildLayout(&lf)
}

func buildLayout(lf *layoutFile) (*Keyboard, error) {
	if lf.Width <= 0 || lf.Height <= 0 {
		return nil, fmt.Errorf("layout %q: non-positive dimensions %dx%d",
			lf.Name, lf.Width, lf.Height)
	}
	if lf.Grid.Columns <= 0 || lf.Grid.Rows <= 0 {
		return nil, fmt.Errorf("layout %q: invalid grid %dx%d",
			lf.Name, lf.Grid.Columns, lf.Grid.Rows)
	}
	if len(lf.Keys) == 0 {
		return nil, fmt.Errorf("layout %q: no keys", lf.Name)
	}

	keys := make([]Key, 0, len(lf.Keys))
	for i, lk := range lf.Keys {
		code, err := singleRune(lk.Char)
		if err != nil {
			return nil, fmt.Errorf("layout %q key %d: %w", lf.Name, i, err)
		}
		if lk.Width <= 0 || lk.Height <= 0 {
			return nil, fmt.Errorf("layout %q key %q: non-positive hitbox",
				lf.Name, lk.Char)
		}
		k := Key{Code: code, X: lk.X, Y: lk.Y, Width: lk.Width, Height: lk.Height}
		if lk.Sweet != nil {
			if lk.Sweet.Radius <= 0 {
				return nil, fmt.Errorf("layout %q key %q: non-positive sweet-spot radius",
					lf.Name, lk.Char)
			}
			k.HasSweetSpot = true
			k.SweetSpotX = lk.Sweet.X
			k.SweetSpotY = lk.Sweet.Y
			k.SweetSpotRadius = lk.Sweet.Radius
		}
		keys = append(keys, k)
	}

	var additional map[rune][]rune
	if len(lf.AdditionalProximity) > 0 {
		additional = make(map[rune][]rune, len(lf.AdditionalProximity))
		for base, variants := range lf.AdditionalProximity {
			code, err := singleRune(base)
			if err != nil {
				return nil, fmt.Errorf("layout %q additionalProximity: %w", lf.Name, err)
			}
			rs := make([]rune, 0, len(variants))
			for _, v := range variants {
				vr, err := singleRune(v)
				if err != nil {
					return nil, fmt.Errorf("layout %q additionalProximity %q: %w",
						lf.Name, base, err)
				}
				rs = append(rs, vr)
			}
			additional[code] = rs
		}
	}

	return New(lf.Name, lf.Width, lf.Height, lf.Grid.Columns, lf.Grid.Rows,
		keys, additional), nil
}

func singleRune(s string) (rune, error) {
	rs := []rune(s)
	if len(rs) != 1 {
		return 0, fmt.Errorf("expected a single character, got %q", s)
	}
	return rs[0], nil
}
