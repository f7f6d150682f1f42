package hazard

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meenmo/cdslib/utils"
)

// Snapshot is the serialized form of a calibrated curve.
type Snapshot struct {
	Origin        string         `yaml:"origin"`
	Extrapolation Extrapolation  `yaml:"extrapolation"`
	Nodes         []SnapshotNode `yaml:"nodes"`
}

// SnapshotNode is one pillar of a Snapshot.
type SnapshotNode struct {
	Date       string  `yaml:"date"`
	HazardRate float64 `yaml:"hazard_rate"`
}

// Snapshot captures the curve's current nodes.
func (c *Curve) Snapshot() Snapshot {
	nodes := c.Nodes()
	s := Snapshot{
		Origin:        utils.FormatDate(c.origin),
		Extrapolation: c.extrapolation,
		Nodes:         make([]SnapshotNode, 0, len(nodes)),
	}
	for _, n := range nodes {
		s.Nodes = append(s.Nodes, SnapshotNode{Date: utils.FormatDate(n.Date), HazardRate: n.Rate})
	}
	return s
}

// FromSnapshot rebuilds a frozen curve, re-checking node ordering.
func FromSnapshot(s Snapshot) (*Curve, error) {
	origin, err := utils.ParseDate(s.Origin)
	if err != nil {
		return nil, fmt.Errorf("FromSnapshot: origin: %w", err)
	}
	ext, err := ParseExtrapolation(string(s.Extrapolation))
	if err != nil {
		return nil, fmt.Errorf("FromSnapshot: %w", err)
	}
	c := NewCurve(origin, WithExtrapolation(ext))
	for i, n := range s.Nodes {
		d, err := utils.ParseDate(n.Date)
		if err != nil {
			return nil, fmt.Errorf("FromSnapshot: node %d: %w", i, err)
		}
		if err := c.Append(d, n.HazardRate); err != nil {
			return nil, fmt.Errorf("FromSnapshot: node %d: %w", i, err)
		}
	}
	c.Freeze()
	return c, nil
}

// Save writes the curve as YAML.
func (c *Curve) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Snapshot()); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return enc.Close()
}

// Load reads a curve written by Save.
func Load(r io.Reader) (*Curve, error) {
	var s Snapshot
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return FromSnapshot(s)
}

// SaveFile writes the curve to path.
func (c *Curve) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("SaveFile: %w", err)
	}
	if err := c.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a curve from path.
func LoadFile(path string) (*Curve, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: %w", err)
	}
	defer f.Close()
	return Load(f)
}
