package factory

import (
	"fmt"

	"gopkg.in/yaml.v3"

	aerrors "github.com/milad-o/agenticflow-sub002/internal/errors"
	"github.com/milad-o/agenticflow-sub002/pkg/composite"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// Spec describes a retriever tree in YAML:
//
//	type: ensemble
//	config:
//	  fusion_method: rank_fusion
//	children:
//	  - type: bm25
//	    config: {k1: 1.2}
//	  - type: semantic
//
// Hybrid takes dense and sparse, contextual takes base. Config keys are
// the yaml tags of the type's config struct; omitted keys keep defaults.
type Spec struct {
	Type     string    `yaml:"type"`
	Config   yaml.Node `yaml:"config,omitempty"`
	Children []Spec    `yaml:"children,omitempty"`
	Dense    *Spec     `yaml:"dense,omitempty"`
	Sparse   *Spec     `yaml:"sparse,omitempty"`
	Base     *Spec     `yaml:"base,omitempty"`
}

// ParseSpec decodes a YAML retriever tree.
func ParseSpec(data []byte) (Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Spec{}, retriever.ConfigurationError("parsing retriever spec", err)
	}
	if s.Type == "" {
		return Spec{}, retriever.ConfigurationError("retriever spec has no type", nil)
	}
	return s, nil
}

// Build constructs the tree described by spec over src. deps supplies the
// provider, reranker and logger; its child fields are filled from the
// spec.
func (r *Registry) Build(spec Spec, src any, deps Dependencies) (retriever.Retriever, error) {
	kind := spec.Type
	if kind == Auto {
		kind = DetectType(src)
	}

	cfg, err := r.decodeConfig(kind, spec.Config)
	if err != nil {
		return nil, err
	}

	deps.Children, deps.Dense, deps.Sparse, deps.Base = nil, nil, nil, nil
	switch kind {
	case composite.EnsembleType, composite.FusionType:
		for i, child := range spec.Children {
			built, err := r.Build(child, src, deps)
			if err != nil {
				return nil, wrapChild(kind, fmt.Sprintf("children[%d]", i), err)
			}
			deps.Children = append(deps.Children, built)
		}

	case composite.HybridType:
		dense := Spec{Type: DefaultDenseType}
		if spec.Dense != nil {
			dense = *spec.Dense
		}
		sparse := Spec{Type: DefaultSparseType}
		if spec.Sparse != nil {
			sparse = *spec.Sparse
		}
		if deps.Dense, err = r.Build(dense, src, deps); err != nil {
			return nil, wrapChild(kind, "dense", err)
		}
		if deps.Sparse, err = r.Build(sparse, src, deps); err != nil {
			return nil, wrapChild(kind, "sparse", err)
		}

	case composite.ContextualType:
		if spec.Base == nil {
			return nil, aerrors.New(aerrors.ErrCodeMissingRetriever, "contextual spec needs a base", nil)
		}
		if deps.Base, err = r.Build(*spec.Base, src, deps); err != nil {
			return nil, wrapChild(kind, "base", err)
		}
	}

	return r.Create(kind, src, cfg, deps)
}

// BuildFromYAML parses and builds a retriever tree.
func (r *Registry) BuildFromYAML(data []byte, src any, deps Dependencies) (retriever.Retriever, error) {
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, err
	}
	return r.Build(spec, src, deps)
}

// decodeConfig overlays node onto kind's default config.
func (r *Registry) decodeConfig(kind string, node yaml.Node) (any, error) {
	cfg, err := r.NewConfig(kind)
	if err != nil {
		return nil, err
	}
	if node.Kind == 0 {
		return cfg, nil
	}
	if err := node.Decode(cfg); err != nil {
		return nil, retriever.ConfigurationError(fmt.Sprintf("decoding %s config", kind), err)
	}
	return cfg, nil
}

func wrapChild(kind, path string, err error) error {
	return aerrors.Wrap(aerrors.ErrCodeConfigInvalid, err).
		WithDetail("parent", kind).
		WithDetail("child", path)
}
