// Package msgcat renders user-facing text from YAML templates: embedded
// defaults plus an optional directory of overrides.
package msgcat

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

const defaultFile = "messages.en.yaml"

//go:embed messages.en.yaml
var defaults embed.FS

// Catalog maps dotted keys ("errors.wrong_turn") to text/template sources.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]string
	parsed    map[string]*template.Template
}

// New loads the embedded messages, then every .yaml/.yml file in overrideDir.
// Two override files defining the same key is an error.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{templates: make(map[string]string), parsed: make(map[string]*template.Template)}
	raw, err := fs.ReadFile(defaults, defaultFile)
	if err != nil {
		return nil, fmt.Errorf("read embedded messages: %w", err)
	}
	flat, err := flatten(raw)
	if err != nil {
		return nil, fmt.Errorf("parse embedded messages: %w", err)
	}
	c.merge(flat)
	if strings.TrimSpace(overrideDir) != "" {
		if err := c.loadDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read message dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	owner := make(map[string]string)
	for _, name := range files {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		flat, err := flatten(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for k := range flat {
			if prev, dup := owner[k]; dup {
				return fmt.Errorf("duplicate override key %q in %s and %s", k, prev, name)
			}
			owner[k] = name
		}
		c.merge(flat)
	}
	return nil
}

func (c *Catalog) merge(flat map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range flat {
		c.templates[k] = v
		delete(c.parsed, k)
	}
}

func flatten(raw []byte) (map[string]string, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if err := walk(tree, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(node any, prefix string, out map[string]string) error {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := walk(child, key, out); err != nil {
				return err
			}
		}
		return nil
	case string:
		if prefix == "" {
			return errors.New("string value without key")
		}
		out[prefix] = v
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported value at %s: %T", prefix, v)
	}
}

func (c *Catalog) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.templates[strings.TrimSpace(key)]
	return ok
}

// Render executes the template at key. Missing data fields are an error.
func (c *Catalog) Render(key string, data any) (string, error) {
	key = strings.TrimSpace(key)
	t, err := c.lookup(key)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (c *Catalog) lookup(key string) (*template.Template, error) {
	c.mu.RLock()
	t, ok := c.parsed[key]
	src, known := c.templates[key]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}
	if !known || strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("template not found: %s", key)
	}
	t, err := template.New(key).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.parsed[key] = t
	c.mu.Unlock()
	return t, nil
}

var generic = func() map[arenadto.Code]string {
	m := make(map[arenadto.Code]string)
	for _, e := range []*arenadto.DomainError{
		arenadto.ErrAlreadyInLobby, arenadto.ErrAlreadyInGame, arenadto.ErrSelfJoin,
		arenadto.ErrNotFound, arenadto.ErrLobbyAlreadyEnded, arenadto.ErrWrongTurn,
		arenadto.ErrIllegalMove, arenadto.ErrGameNotActive, arenadto.ErrUnauthorized,
		arenadto.ErrInvalidRequest, arenadto.ErrInternal,
	} {
		m[e.Code] = e.Message
	}
	return m
}()

// ErrorText renders the message for err's code. Detail carries the
// DomainError's own message when it differs from the generic one.
func (c *Catalog) ErrorText(err error) string {
	if err == nil {
		return ""
	}
	code := arenadto.CodeOf(err)
	detail := ""
	var de *arenadto.DomainError
	if errors.As(err, &de) && code != arenadto.CodeInternal && de.Message != generic[code] {
		detail = de.Message
	}
	text, rerr := c.Render("errors."+string(code), map[string]any{"Detail": detail, "Code": string(code)})
	if rerr != nil {
		if detail != "" {
			return detail
		}
		return string(code)
	}
	return text
}
