package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"toolcore.dev/internal/sim/effect"
	"toolcore.dev/internal/sim/host"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz    int  `yaml:"tick_rate_hz"`
	Authoritative bool `yaml:"authoritative"`
	Creative      bool `yaml:"creative"`

	WelderSpeedMultiplier  float64 `yaml:"welder_speed_multiplier"`
	GrinderSpeedMultiplier float64 `yaml:"grinder_speed_multiplier"`
	BulkWeldThreshold      int     `yaml:"bulk_weld_threshold"`

	EntitlementTTLSeconds int `yaml:"entitlement_ttl_seconds"`
	// Entitlements grants content ids to player identities in the demo scene.
	Entitlements map[uint64][]string `yaml:"entitlements"`

	Log     Log     `yaml:"log"`
	Storage Storage `yaml:"storage"`
	Serve   Serve   `yaml:"serve"`
	Demo    Demo    `yaml:"demo"`

	Tools []Tool `yaml:"tools"`
}

type Log struct {
	Dir      string `yaml:"dir"`
	File     string `yaml:"file"`
	Keep     int    `yaml:"keep"`
	MaxLines int    `yaml:"max_lines"`
	Level    string `yaml:"level"`
}

type Storage struct {
	// DataDir holds the compressed tick logs.
	DataDir   string `yaml:"data_dir"`
	IndexPath string `yaml:"index_path"`
	// SnapshotEveryTicks writes a scene snapshot under DataDir/snapshots. 0 disables.
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
}

type Serve struct {
	Addr string `yaml:"addr"`
}

type Demo struct {
	Seed int64 `yaml:"seed"`
	Size int   `yaml:"size"`
}

// Tool is one tool definition plus its starting pose.
type Tool struct {
	ID    string `yaml:"id"`
	Mode  string `yaml:"mode"`
	Shape string `yaml:"shape"`

	// Rate is the number of blocks worked per tick.
	Rate  int     `yaml:"rate"`
	Speed float64 `yaml:"speed"`

	Radius     float64    `yaml:"radius"`
	Length     float64    `yaml:"length"`
	HalfExtent [3]float64 `yaml:"half_extent"`

	CacheBlocks bool    `yaml:"cache_blocks"`
	Debug       bool    `yaml:"debug"`
	Turret      bool    `yaml:"turret"`
	TargetRange float64 `yaml:"target_range"`
	// Block tools are mounted on a grid and pull from its conveyor network.
	Block      bool    `yaml:"block"`
	WorkColour *uint32 `yaml:"work_colour"`

	Owner    int64  `yaml:"owner"`
	Identity uint64 `yaml:"identity"`

	// Capacity of the tool's own inventory, 0 for unlimited. Items are its starting stock.
	Capacity int            `yaml:"capacity"`
	Items    map[string]int `yaml:"items"`

	Position [3]float64 `yaml:"position"`
	Forward  [3]float64 `yaml:"forward"`
	Up       [3]float64 `yaml:"up"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:        "1.0",
		TickRateHz:             5,
		Authoritative:          true,
		WelderSpeedMultiplier:  1,
		GrinderSpeedMultiplier: 1,
		BulkWeldThreshold:      4,
		EntitlementTTLSeconds:  300,
		Log: Log{
			Dir:      "logs",
			File:     "toolcore.log",
			Keep:     5,
			MaxLines: 500,
			Level:    "info",
		},
		Storage: Storage{DataDir: "data", IndexPath: "data/index.sqlite"},
		Serve:   Serve{Addr: ":8090"},
		Demo:    Demo{Seed: 1, Size: 6},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Digest identifies the effective tuning: the hex sha256 of its JSON form.
func (t Tuning) Digest() (string, []byte, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), b, nil
}

// SnapshotDir is where scene snapshots are written.
func (t Tuning) SnapshotDir() string { return filepath.Join(t.Storage.DataDir, "snapshots") }

func (t Tuning) TickInterval() time.Duration {
	if t.TickRateHz <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(t.TickRateHz)
}

func (t Tuning) EntitlementTTL() time.Duration {
	return time.Duration(t.EntitlementTTLSeconds) * time.Second
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate_hz must be positive, got %d", t.TickRateHz))
	}
	if t.WelderSpeedMultiplier < 0 || t.GrinderSpeedMultiplier < 0 {
		errs = append(errs, errors.New("speed multipliers must not be negative"))
	}
	if t.Storage.SnapshotEveryTicks < 0 {
		errs = append(errs, fmt.Errorf("storage.snapshot_every_ticks must not be negative, got %d", t.Storage.SnapshotEveryTicks))
	}
	seen := map[string]bool{}
	for i, tool := range t.Tools {
		if tool.ID != "" {
			if seen[tool.ID] {
				errs = append(errs, fmt.Errorf("tools[%d]: duplicate id %q", i, tool.ID))
			}
			seen[tool.ID] = true
		}
		if err := tool.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("tools[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (t Tool) Validate() error {
	if _, err := host.ParseMode(t.Mode); err != nil {
		return err
	}
	shape, err := effect.ParseShape(t.Shape)
	if err != nil {
		return err
	}
	if t.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %d", t.Rate)
	}
	switch shape {
	case effect.ShapeSphere:
		if t.Radius <= 0 {
			return fmt.Errorf("sphere radius must be positive")
		}
	case effect.ShapeCylinder:
		if t.Radius <= 0 || t.Length <= 0 {
			return fmt.Errorf("cylinder radius and length must be positive")
		}
	case effect.ShapeCuboid:
		for _, h := range t.HalfExtent {
			if h <= 0 {
				return fmt.Errorf("cuboid half_extent must be positive")
			}
		}
	case effect.ShapeLine, effect.ShapeRay:
		if t.Length <= 0 {
			return fmt.Errorf("%s length must be positive", shape)
		}
	}
	if t.Forward == ([3]float64{}) {
		return fmt.Errorf("forward must not be zero")
	}
	if t.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative")
	}
	for kind, n := range t.Items {
		if kind == "" || n < 0 {
			return fmt.Errorf("bad starting item %q x%d", kind, n)
		}
	}
	return nil
}
