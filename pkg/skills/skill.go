// Package skills indexes the executive intelligence skills shipped with the
// repository and with installed extensions. A skill is a directory holding a
// skill.md file, optionally opened by YAML frontmatter; its category comes
// from where the directory sits in the tree.
package skills

// Skill is a registered skill.
type Skill struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string `json:"category" yaml:"category"`
	Extension   string `json:"extension,omitempty" yaml:"extension,omitempty"`
	Directory   string `json:"directory" yaml:"directory"`
	Content     string `json:"-" yaml:"-"` // body of skill.md without frontmatter
}

// Metadata is the optional frontmatter of a skill.md file.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}
