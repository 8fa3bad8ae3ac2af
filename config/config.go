// Package config loads the run configuration from YAML.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/tabsearch/family"
	"github.com/YuminosukeSato/tabsearch/model_selection"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/pkg/log"
)

// Config is the full run configuration. CLI flags are applied on top of it.
type Config struct {
	NIter       int              `yaml:"n_iter"`
	CV          int              `yaml:"cv"`
	Scoring     string           `yaml:"scoring"`
	Seed        uint64           `yaml:"seed"`
	Workers     int              `yaml:"workers"`
	Families    []string         `yaml:"families"`
	IDColumn    string           `yaml:"id_column"`
	LabelColumn string           `yaml:"label_column"`
	Results     Results          `yaml:"results"`
	Spaces      map[string]Space `yaml:"spaces,omitempty"`
	Log         Log              `yaml:"log"`
	Report      Report           `yaml:"report"`
}

// Results says where submissions go.
type Results struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

// Log configures the logging backend.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Report configures the optional trial score plot.
type Report struct {
	Plot string `yaml:"plot,omitempty"`
}

const (
	FormatZerolog = "zerolog"
	FormatJSON    = "json"
)

// Default returns the configuration used when no file is given.
func Default() Config {
	families := make([]string, 0, len(family.All()))
	for _, n := range family.All() {
		families = append(families, n.String())
	}
	return Config{
		NIter:       10,
		CV:          5,
		Scoring:     "roc_auc",
		Seed:        1,
		Workers:     2,
		Families:    families,
		IDColumn:    "id",
		LabelColumn: "match",
		Results:     Results{Dir: ".", Prefix: "RandomSearch"},
		Log:         Log{Level: "info", Format: FormatZerolog},
	}
}

// Load reads a YAML file over Default and validates the result. Unknown keys
// are rejected.
func Load(file string) (Config, error) {
	f, err := os.Open(file)
	if err != nil {
		return Config{}, errors.Wrap(err, "open config")
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "decode config %s", file)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field, including space overrides against the
// families they target.
func (c Config) Validate() error {
	if c.NIter < 1 {
		return errors.NewValidationError("n_iter", "must be >= 1", c.NIter)
	}
	if c.CV < 2 {
		return errors.NewValidationError("cv", "must be >= 2", c.CV)
	}
	if _, err := model_selection.GetScorer(c.Scoring); err != nil {
		return err
	}
	if _, err := c.FamilyNames(); err != nil {
		return err
	}
	if c.IDColumn == "" {
		return errors.NewValidationError("id_column", "must not be empty", c.IDColumn)
	}
	if c.LabelColumn == "" || c.LabelColumn == c.IDColumn {
		return errors.NewValidationError("label_column", "must be set and differ from id_column", c.LabelColumn)
	}
	if c.Results.Dir == "" {
		return errors.NewValidationError("results.dir", "must not be empty", c.Results.Dir)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("log.level", err.Error(), c.Log.Level)
	}
	if c.Log.Format != FormatZerolog && c.Log.Format != FormatJSON {
		return errors.NewValidationError("log.format", "must be zerolog or json", c.Log.Format)
	}
	for name, space := range c.Spaces {
		n, err := family.Parse(name)
		if err != nil {
			return err
		}
		if err := family.ValidateSpace(n, space.ParamSpace()); err != nil {
			return err
		}
	}
	return nil
}

// FamilyNames parses Families. Duplicates are rejected.
func (c Config) FamilyNames() ([]family.Name, error) {
	if len(c.Families) == 0 {
		return nil, errors.NewValidationError("families", "must name at least one family", c.Families)
	}
	seen := map[family.Name]bool{}
	out := make([]family.Name, 0, len(c.Families))
	for _, s := range c.Families {
		n, err := family.Parse(s)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			return nil, errors.NewValidationError("families", "duplicate family", s)
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

// SearchSpace returns the space searched for a family: the built-in space
// with any configured override entries replacing or adding parameters.
func (c Config) SearchSpace(name family.Name) (model_selection.ParamSpace, error) {
	space, err := family.DefaultSpace(name)
	if err != nil {
		return nil, err
	}
	for key, override := range c.Spaces {
		if n, err := family.Parse(key); err == nil && n == name {
			for param, d := range override {
				space[param] = d.Distribution
			}
		}
	}
	return space, nil
}
