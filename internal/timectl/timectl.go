package timectl

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

//go:embed presets.yaml
var defaultPresets []byte

// MaxBudget caps any clock budget or increment.
const MaxBudget = 24 * time.Hour

// maxBudgetMs is MaxBudget in milliseconds.
const maxBudgetMs = int64(MaxBudget / time.Millisecond)

// Preset is a named time control.
type Preset struct {
	Name      string
	Initial   time.Duration
	Increment time.Duration
}

// TimeControl is a resolved, per-side clock budget in milliseconds.
type TimeControl struct {
	Label       string `json:"label,omitempty"`
	WhiteMs     int64  `json:"w"`
	BlackMs     int64  `json:"b"`
	IncrementMs int64  `json:"incrementMs,omitempty"`
}

// Validate checks every budget is within [0, MaxBudget] and the clocks are positive.
func (tc TimeControl) Validate() error {
	if tc.WhiteMs <= 0 || tc.BlackMs <= 0 || tc.IncrementMs < 0 {
		return arenadto.ErrInvalidRequest.With("clock budgets must be positive")
	}
	if tc.WhiteMs > maxBudgetMs || tc.BlackMs > maxBudgetMs || tc.IncrementMs > maxBudgetMs {
		return arenadto.ErrInvalidRequest.With(fmt.Sprintf("clock budgets cannot exceed %s", MaxBudget))
	}
	return nil
}

func (tc TimeControl) String() string {
	if tc.Label != "" {
		return tc.Label
	}
	if tc.WhiteMs == tc.BlackMs {
		return fmt.Sprintf("%dms+%dms", tc.WhiteMs, tc.IncrementMs)
	}
	return fmt.Sprintf("w%dms/b%dms+%dms", tc.WhiteMs, tc.BlackMs, tc.IncrementMs)
}

type presetFile struct {
	Presets map[string]struct {
		Initial   string `yaml:"initial"`
		Increment string `yaml:"increment"`
	} `yaml:"presets"`
}

// Catalog holds the known presets. It is read-only after Load.
type Catalog struct {
	presets map[string]Preset
}

// Load reads the embedded presets and then applies overrideFile if provided.
// Override entries replace embedded ones with the same name.
func Load(overrideFile string) (*Catalog, error) {
	c := &Catalog{presets: make(map[string]Preset)}
	if err := c.apply(defaultPresets); err != nil {
		return nil, fmt.Errorf("embedded presets: %w", err)
	}
	if strings.TrimSpace(overrideFile) != "" {
		raw, err := os.ReadFile(overrideFile)
		if err != nil {
			return nil, fmt.Errorf("read presets %s: %w", overrideFile, err)
		}
		if err := c.apply(raw); err != nil {
			return nil, fmt.Errorf("parse presets %s: %w", overrideFile, err)
		}
	}
	return c, nil
}

// Default returns the embedded presets; it panics only if the embedded file is broken.
func Default() *Catalog {
	c, err := Load("")
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) apply(raw []byte) error {
	var f presetFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	for name, p := range f.Presets {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("preset with empty name")
		}
		initial, err := time.ParseDuration(p.Initial)
		if err != nil || initial <= 0 || initial > MaxBudget {
			return fmt.Errorf("preset %q: bad initial %q", name, p.Initial)
		}
		var inc time.Duration
		if strings.TrimSpace(p.Increment) != "" {
			inc, err = time.ParseDuration(p.Increment)
			if err != nil || inc < 0 || inc > MaxBudget {
				return fmt.Errorf("preset %q: bad increment %q", name, p.Increment)
			}
		}
		c.presets[name] = Preset{Name: name, Initial: initial, Increment: inc}
	}
	return nil
}

func (c *Catalog) Get(name string) (Preset, bool) {
	p, ok := c.presets[strings.TrimSpace(name)]
	return p, ok
}

// Names lists presets ordered by initial time, then increment.
func (c *Catalog) Names() []string {
	out := make([]Preset, 0, len(c.presets))
	for _, p := range c.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Initial != out[j].Initial {
			return out[i].Initial < out[j].Initial
		}
		if out[i].Increment != out[j].Increment {
			return out[i].Increment < out[j].Increment
		}
		return out[i].Name < out[j].Name
	})
	names := make([]string, len(out))
	for i, p := range out {
		names[i] = p.Name
	}
	return names
}

// Resolve turns a lobby time spec into clock budgets. A nil spec means untimed
// and yields a nil TimeControl.
func (c *Catalog) Resolve(spec *arenadto.TimeSpec) (*TimeControl, error) {
	if spec == nil {
		return nil, nil
	}
	template := strings.TrimSpace(spec.Template)
	switch {
	case template != "" && spec.Custom != nil:
		return nil, arenadto.ErrInvalidRequest.With("time control must be either a template or custom, not both")
	case template != "":
		p, ok := c.Get(template)
		if !ok {
			return nil, arenadto.ErrInvalidRequest.With(fmt.Sprintf("unknown time control %q", template))
		}
		ms := p.Initial.Milliseconds()
		return &TimeControl{Label: p.Name, WhiteMs: ms, BlackMs: ms, IncrementMs: p.Increment.Milliseconds()}, nil
	case spec.Custom != nil:
		if spec.Custom.WhiteMs <= 0 || spec.Custom.BlackMs <= 0 {
			return nil, arenadto.ErrInvalidRequest.With("custom time control needs positive budgets for both sides")
		}
		if spec.Custom.WhiteMs > maxBudgetMs || spec.Custom.BlackMs > maxBudgetMs {
			return nil, arenadto.ErrInvalidRequest.With(fmt.Sprintf("custom time control cannot exceed %s per side", MaxBudget))
		}
		return &TimeControl{WhiteMs: spec.Custom.WhiteMs, BlackMs: spec.Custom.BlackMs}, nil
	default:
		return nil, nil
	}
}
