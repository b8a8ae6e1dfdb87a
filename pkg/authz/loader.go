package authz

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/mitchellh/mapstructure"
)

// PolicyFile is the on-disk policy table.
//
//	policies:
//	  - name: SeniorITStaff
//	    requirements:
//	      - kind: role
//	        roles: [Admin]
//	      - kind: department
//	        departments: [IT]
//	      - kind: minimum_age
//	        age: 25
type PolicyFile struct {
	Policies []PolicySpec `yaml:"policies"`
}

// PolicySpec is one policy entry before its requirements are decoded.
type PolicySpec struct {
	Name         string           `yaml:"name"`
	Requirements []map[string]any `yaml:"requirements"`
}

// DecodeFunc turns the parameters of one requirement entry (without its
// "kind" key) into a Requirement.
type DecodeFunc func(params map[string]any) (Requirement, error)

// Decoders maps requirement kinds to their decoders. Custom requirement
// kinds register a decoder here and a handler on the engine.
type Decoders map[string]DecodeFunc

// DefaultDecoders returns decoders for the built-in requirement kinds.
func DefaultDecoders() Decoders {
	return Decoders{
		KindRole:       decodeInto[RoleRequirement],
		KindMinimumAge: decodeInto[MinimumAgeRequirement],
		KindDepartment: decodeInto[DepartmentRequirement],
		KindOwner:      decodeInto[OwnerRequirement],
		KindClaim:      decodeInto[ClaimRequirement],
		KindTimeWindow: decodeTimeWindow,
	}
}

// Register adds or replaces the decoder for kind.
func (d Decoders) Register(kind string, fn DecodeFunc) {
	d[kind] = fn
}

// LoadPolicyFile reads a YAML policy table from path into reg.
func LoadPolicyFile(path string, reg *Registry, dec Decoders) error {
	f, err := os.Open(path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return fmt.Errorf("authz: open policy file: %w", err)
	}
	defer f.Close()

	return LoadPolicies(f, reg, dec)
}

// LoadPolicies reads a YAML policy table from r into reg. An unknown kind,
// unknown parameter or malformed value is an error.
func LoadPolicies(r io.Reader, reg *Registry, dec Decoders) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("authz: read policies: %w", err)
	}

	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("authz: parse policies: %w", err)
	}

	for _, spec := range file.Policies {
		reqs := make([]Requirement, 0, len(spec.Requirements))
		for i, raw := range spec.Requirements {
			req, err := dec.decode(raw)
			if err != nil {
				return fmt.Errorf("authz: policy %q requirement %d: %w", spec.Name, i, err)
			}
			reqs = append(reqs, req)
		}
		if err := reg.Register(spec.Name, reqs...); err != nil {
			return err
		}
	}
	return nil
}

func (d Decoders) decode(raw map[string]any) (Requirement, error) {
	kind, _ := raw["kind"].(string)
	if kind == "" {
		return nil, fmt.Errorf("%w: missing kind", ErrInvalidPolicy)
	}

	fn, ok := d[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown requirement kind %q", ErrInvalidPolicy, kind)
	}

	params := make(map[string]any, len(raw))
	for k, v := range raw {
		if k != "kind" {
			params[k] = v
		}
	}
	return fn(params)
}

func decodeInto[T Requirement](params map[string]any) (Requirement, error) {
	var out T
	if err := decodeParams(params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeTimeWindow(params map[string]any) (Requirement, error) {
	var conf struct {
		Start string `mapstructure:"start"`
		End   string `mapstructure:"end"`
	}
	if err := decodeParams(params, &conf); err != nil {
		return nil, err
	}
	return TimeWindow(conf.Start, conf.End)
}

func decodeParams(params map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(params); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	return nil
}
