// ABOUTME: Playbook file loading
// ABOUTME: A playbook is a JSON document of keyed bullets grouped by section
package playbook

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/harper/ace-pipeline/internal/models"
)

// Playbook is the parsed playbook file
type Playbook struct {
	Bullets map[string]models.Bullet `json:"bullets"`
}

// Load reads a playbook from path
func Load(path string) (*Playbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse decodes a playbook and fills missing bullet IDs from their keys
func Parse(r io.Reader) (*Playbook, error) {
	var pb Playbook
	if err := json.NewDecoder(r).Decode(&pb); err != nil {
		return nil, fmt.Errorf("failed to decode playbook: %w", err)
	}
	if len(pb.Bullets) == 0 {
		return nil, fmt.Errorf("no bullets found in playbook")
	}

	for key, b := range pb.Bullets {
		if b.ID == "" {
			b.ID = key
			pb.Bullets[key] = b
		}
	}
	return &pb, nil
}

// Ordered returns the bullets sorted by key
func (p *Playbook) Ordered() []models.Bullet {
	keys := make([]string, 0, len(p.Bullets))
	for k := range p.Bullets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.Bullet, 0, len(keys))
	for _, k := range keys {
		out = append(out, p.Bullets[k])
	}
	return out
}

// Contents returns every bullet's text in key order
func (p *Playbook) Contents() []string {
	bullets := p.Ordered()
	out := make([]string, len(bullets))
	for i, b := range bullets {
		out[i] = b.Content
	}
	return out
}
