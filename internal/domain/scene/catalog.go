package scene

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CustomID selects the free-form prompt instead of a catalog title.
const CustomID = "custom"

//go:embed scenes.yaml
var builtin []byte

// Scene is a catalog entry. Title seeds the dialogue prompt.
type Scene struct {
	ID          string `yaml:"id"          json:"id"`
	Title       string `yaml:"title"       json:"title"`
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon"        json:"icon"`
}

type Catalog struct {
	scenes []Scene
	byID   map[string]Scene
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(builtin)
}

// Parse builds a catalog from YAML. Ids must be unique and non-empty.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Scenes []Scene `yaml:"scenes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scene catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]Scene, len(doc.Scenes))}
	for i, s := range doc.Scenes {
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			return nil, fmt.Errorf("scene %d has no id", i)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate scene id %q", s.ID)
		}
		c.byID[s.ID] = s
		c.scenes = append(c.scenes, s)
	}
	return c, nil
}

// List returns the scenes in catalog order.
func (c *Catalog) List() []Scene {
	out := make([]Scene, len(c.scenes))
	copy(out, c.scenes)
	return out
}

func (c *Catalog) Get(id string) (Scene, bool) {
	s, ok := c.byID[strings.TrimSpace(id)]
	return s, ok
}
