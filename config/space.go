package config

import (
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/tabsearch/model_selection"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// Space is a per-family override of search distributions, keyed by
// step-prefixed parameter name.
type Space map[string]Dist

// ParamSpace converts s for the search.
func (s Space) ParamSpace() model_selection.ParamSpace {
	out := make(model_selection.ParamSpace, len(s))
	for k, d := range s {
		out[k] = d.Distribution
	}
	return out
}

// Dist is a distribution as written in YAML. Accepted forms:
//
//	classifier__n_neighbors: [5, 15, 25]         # categorical
//	classifier__n_neighbors: {values: [5, 15]}   # categorical
//	classifier__max_depth: {int: [3, 12]}        # add "log: true" for log scale
//	classifier__subsample: {uniform: [0.5, 1.0]}
//	classifier__C: {loguniform: [0.01, 10]}
//
// Nested integer lists such as [[100], [100, 150]] decode to []int values.
type Dist struct {
	model_selection.Distribution
}

type rawDist struct {
	Values     []yaml.Node `yaml:"values,omitempty"`
	Int        []int       `yaml:"int,omitempty"`
	Log        bool        `yaml:"log,omitempty"`
	Uniform    []float64   `yaml:"uniform,omitempty"`
	LogUniform []float64   `yaml:"loguniform,omitempty"`
}

func (d *Dist) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		values, err := decodeValues(node.Content)
		if err != nil {
			return err
		}
		d.Distribution = model_selection.NewCategorical(values...)
		return nil
	}

	raw := rawDist{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	set := 0
	for _, present := range []bool{raw.Values != nil, raw.Int != nil, raw.Uniform != nil, raw.LogUniform != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return errors.Newf("line %d: distribution needs exactly one of values, int, uniform, loguniform", node.Line)
	}
	switch {
	case raw.Values != nil:
		values, err := decodeValues(ptrs(raw.Values))
		if err != nil {
			return err
		}
		d.Distribution = model_selection.NewCategorical(values...)
	case raw.Int != nil:
		if len(raw.Int) != 2 {
			return errors.Newf("line %d: int range needs [low, high]", node.Line)
		}
		d.Distribution = model_selection.IntRange{Low: raw.Int[0], High: raw.Int[1], Log: raw.Log}
	case raw.Uniform != nil:
		if len(raw.Uniform) != 2 {
			return errors.Newf("line %d: uniform range needs [low, high]", node.Line)
		}
		d.Distribution = model_selection.FloatRange{Low: raw.Uniform[0], High: raw.Uniform[1]}
	default:
		if len(raw.LogUniform) != 2 {
			return errors.Newf("line %d: loguniform range needs [low, high]", node.Line)
		}
		d.Distribution = model_selection.LogUniformRange{Low: raw.LogUniform[0], High: raw.LogUniform[1]}
	}
	return nil
}

func (d Dist) MarshalYAML() (interface{}, error) {
	switch v := d.Distribution.(type) {
	case model_selection.Categorical:
		return map[string]interface{}{"values": v.Values}, nil
	case model_selection.IntRange:
		out := map[string]interface{}{"int": []int{v.Low, v.High}}
		if v.Log {
			out["log"] = true
		}
		return out, nil
	case model_selection.FloatRange:
		return map[string]interface{}{"uniform": []float64{v.Low, v.High}}, nil
	case model_selection.LogUniformRange:
		return map[string]interface{}{"loguniform": []float64{v.Low, v.High}}, nil
	default:
		return nil, errors.Newf("cannot encode distribution %T", d.Distribution)
	}
}

func ptrs(nodes []yaml.Node) []*yaml.Node {
	out := make([]*yaml.Node, len(nodes))
	for i := range nodes {
		out[i] = &nodes[i]
	}
	return out
}

// decodeValues turns candidate nodes into Go values: scalars keep their YAML
// type (int, float64, bool, string) and integer sequences become []int.
func decodeValues(nodes []*yaml.Node) ([]any, error) {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind == yaml.SequenceNode {
			var ints []int
			if err := n.Decode(&ints); err != nil {
				return nil, errors.Wrapf(err, "line %d: list candidates must be integer lists", n.Line)
			}
			out = append(out, ints)
			continue
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
