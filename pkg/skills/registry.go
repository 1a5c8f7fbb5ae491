package skills

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/headelf/headelf/pkg/logger"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const (
	idPrefix          = "headelf"
	defaultCategory   = "general"
	extensionCategory = "extension"
)

// skillFilePattern matches skill.md in any letter case at any depth.
const skillFilePattern = "**/[sS][kK][iI][lL][lL].[mM][dD]"

// Registry holds the skills found under a set of roots. It is safe for
// concurrent use; Load may be called again to pick up changes.
type Registry struct {
	skillDirs     []string
	extensionsDir string

	mu     sync.RWMutex
	skills map[string]*Skill
}

// Option configures a Registry.
type Option func(*Registry)

// WithSkillDirs sets the skill roots, searched in order. The first skill
// registered under an ID wins.
func WithSkillDirs(dirs ...string) Option {
	return func(r *Registry) {
		r.skillDirs = dirs
	}
}

// WithExtensionsDir sets the directory extensions are installed in. Skills
// under <dir>/<extension>/skills are registered in category
// extension-<extension>.
func WithExtensionsDir(dir string) Option {
	return func(r *Registry) {
		r.extensionsDir = dir
	}
}

// NewRegistry returns an empty registry. Call Load to populate it.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		skillDirs: []string{"./skills"},
		skills:    map[string]*Skill{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load rescans every root and replaces the registry contents. Skills that
// fail to load are left out and their errors returned together; the
// remaining skills are registered regardless.
func (r *Registry) Load(ctx context.Context) error {
	found := map[string]*Skill{}
	var result *multierror.Error

	for _, dir := range r.skillDirs {
		if err := r.loadRoot(ctx, dir, "", found); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for _, ext := range r.extensionRoots() {
		if err := r.loadRoot(ctx, ext.dir, ext.name, found); err != nil {
			result = multierror.Append(result, err)
		}
	}

	r.mu.Lock()
	r.skills = found
	r.mu.Unlock()

	logger.G(ctx).WithField("count", len(found)).Debug("skills loaded")
	return result.ErrorOrNil()
}

type extensionRoot struct {
	name string
	dir  string
}

func (r *Registry) extensionRoots() []extensionRoot {
	if r.extensionsDir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.extensionsDir)
	if err != nil {
		return nil
	}

	var roots []extensionRoot
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(r.extensionsDir, e.Name(), "skills")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			roots = append(roots, extensionRoot{name: e.Name(), dir: dir})
		}
	}
	return roots
}

// loadRoot registers the skills under root. A missing root is not an error.
func (r *Registry) loadRoot(ctx context.Context, root, extension string, found map[string]*Skill) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil
	}

	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, skillFilePattern, doublestar.WithFilesOnly())
	if err != nil {
		return errors.Wrapf(err, "failed to search %s", root)
	}
	sort.Strings(matches)

	var result *multierror.Error
	for _, match := range matches {
		skillDir := path.Dir(match)
		if skillDir == "." {
			// A skill.md at the root describes the collection, not a skill.
			continue
		}

		skill, err := loadSkill(fsys, match)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "skill %s", filepath.Join(root, skillDir)))
			continue
		}

		dirName := path.Base(skillDir)
		skill.Category = category(path.Dir(skillDir), extension)
		skill.Extension = extension
		skill.Directory = filepath.Join(root, filepath.FromSlash(skillDir))
		skill.ID = strings.Join([]string{idPrefix, skill.Category, dirName}, "-")
		if skill.Name == "" {
			skill.Name = titleFromDir(dirName)
		}

		if existing, ok := found[skill.ID]; ok {
			logger.G(ctx).WithField("skill", skill.ID).WithField("kept", existing.Directory).
				Debug("skipping duplicate skill")
			continue
		}
		found[skill.ID] = skill
	}
	return result.ErrorOrNil()
}

// category joins the parent directories of a skill with "-". Extension
// skills all share the category of their extension.
func category(parent, extension string) string {
	if extension != "" {
		return extensionCategory + "-" + extension
	}
	if parent == "." || parent == "" {
		return defaultCategory
	}
	return strings.ReplaceAll(parent, "/", "-")
}

func titleFromDir(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func loadSkill(fsys fs.FS, name string) (*Skill, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter")
	}

	var m Metadata
	m.Name, _ = metaData["name"].(string)
	m.Description, _ = metaData["description"].(string)

	return &Skill{
		Name:        m.Name,
		Description: m.Description,
		Content:     extractBodyContent(string(content)),
	}, nil
}

// extractBodyContent removes YAML frontmatter and returns the body
func extractBodyContent(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}

// Get returns the skill registered under id.
func (r *Registry) Get(id string) (*Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[id]
	return s, ok
}

// List returns every skill ordered by ID.
func (r *Registry) List() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedSkills(r.skills, func(*Skill) bool { return true })
}

// ByCategory returns the skills in cat ordered by ID.
func (r *Registry) ByCategory(cat string) []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedSkills(r.skills, func(s *Skill) bool { return s.Category == cat })
}

// Categories returns the distinct categories in sorted order.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	cats := []string{}
	for _, s := range r.skills {
		if _, ok := seen[s.Category]; !ok {
			seen[s.Category] = struct{}{}
			cats = append(cats, s.Category)
		}
	}
	sort.Strings(cats)
	return cats
}

func sortedSkills(skills map[string]*Skill, keep func(*Skill) bool) []*Skill {
	out := []*Skill{}
	for _, s := range skills {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
