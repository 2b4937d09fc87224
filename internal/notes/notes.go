// Package notes loads the operator-maintained NOTES.md snapshot that is
// injected into every turn's instruction context. The file is re-read on
// each run so edits take effect without a restart.
package notes

import (
	"bufio"
	"strings"

	"github.com/Clearner1/ZulipAgent/internal/fsstore"
	"gopkg.in/yaml.v3"
)

type Frontmatter struct {
	Title   string   `yaml:"title,omitempty"`
	Tags    []string `yaml:"tags,omitempty"`
	Updated string   `yaml:"updated,omitempty"`
}

type Snapshot struct {
	Meta Frontmatter
	Body string
}

// Load reads the notes file and strips YAML front matter. A missing file is
// not an error; the second return reports presence.
func Load(path string) (Snapshot, bool, error) {
	content, ok, err := fsstore.ReadText(path)
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	meta, body, _ := ParseFrontmatter(content)
	return Snapshot{Meta: meta, Body: strings.TrimSpace(body)}, true, nil
}

// ParseFrontmatter splits a leading "---" YAML block from the body. Content
// without a front-matter block is returned unchanged.
func ParseFrontmatter(contents string) (Frontmatter, string, bool) {
	sc := bufio.NewScanner(strings.NewReader(contents))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		return Frontmatter{}, contents, false
	}
	if strings.TrimSpace(sc.Text()) != "---" {
		return Frontmatter{}, contents, false
	}

	var yamlLines []string
	var bodyLines []string
	foundEnd := false
	for sc.Scan() {
		line := sc.Text()
		if !foundEnd {
			if strings.TrimSpace(line) == "---" {
				foundEnd = true
				continue
			}
			yamlLines = append(yamlLines, line)
			continue
		}
		bodyLines = append(bodyLines, line)
	}
	if !foundEnd {
		return Frontmatter{}, contents, false
	}

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(strings.Join(yamlLines, "\n")), &fm); err != nil {
		return Frontmatter{}, strings.Join(bodyLines, "\n"), false
	}
	return fm, strings.Join(bodyLines, "\n"), true
}
