// Package templatefile reads query templates from configuration files and
// keeps them current while the files change.
package templatefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/sieve/internal/domain/metadata"
	"github.com/kailas-cloud/sieve/internal/domain/template"
)

// Grammar is the token definition shipped with a template file.
type Grammar struct {
	Tokens   []string `json:"tokens" yaml:"tokens" toml:"tokens"`
	Alphabet []string `json:"alphabet" yaml:"alphabet" toml:"alphabet"`
}

// File is one parsed template file.
type File struct {
	Path         string
	TemplateName string
	Grammar      template.GrammarType
	Tokens       Grammar
	Templates    []template.Template
}

type rawTemplate struct {
	ID                    int64          `json:"id" yaml:"id" toml:"id"`
	Name                  string         `json:"name" yaml:"name" toml:"name"`
	Display               string         `json:"display" yaml:"display" toml:"display"`
	Active                *bool          `json:"is_active" yaml:"is_active" toml:"is_active"`
	DataConnector         map[string]any `json:"data_connector" yaml:"data_connector" toml:"data_connector"`
	DataFilterExpressions map[string]any `json:"data_filter_expressions" yaml:"data_filter_expressions" toml:"data_filter_expressions"`
	StructuredIfExists    bool           `json:"structured_response_if_exists" yaml:"structured_response_if_exists" toml:"structured_response_if_exists"`
	StructuredFields      []string       `json:"structured_response_data_fields" yaml:"structured_response_data_fields" toml:"structured_response_data_fields"`
	SystemPrompt          string         `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	PromptFile            string         `json:"prompt_file" yaml:"prompt_file" toml:"prompt_file"`
}

type rawFile struct {
	TemplateName string        `json:"template_name" yaml:"template_name" toml:"template_name"`
	GrammarType  string        `json:"grammar_type" yaml:"grammar_type" toml:"grammar_type"`
	Grammar      Grammar       `json:"templates_grammar" yaml:"templates_grammar" toml:"templates_grammar"`
	Templates    []rawTemplate `json:"query_templates" yaml:"query_templates" toml:"query_templates"`
}

// Supported reports whether path has a template file extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	default:
		return false
	}
}

// Load reads and validates a template file. The format follows the file
// extension. Every rule is compiled; the first invalid template fails the
// whole file. prompt_file entries resolve relative to the file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	raw, err := decode(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return raw.build(path, filepath.Dir(path))
}

// Parse validates an uploaded template file in the given format ("yaml",
// "yml", "json" or "toml"). prompt_file entries are ignored.
func Parse(data []byte, format string) (File, error) {
	raw, err := decode(data, strings.ToLower(format))
	if err != nil {
		return File{}, err
	}
	return raw.build("<upload>", "")
}

func decode(data []byte, format string) (rawFile, error) {
	var (
		raw rawFile
		err error
	)
	switch format {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &raw)
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&raw)
	case "toml":
		err = toml.Unmarshal(data, &raw)
	default:
		return rawFile{}, fmt.Errorf("unsupported template file format %q", format)
	}
	if err != nil {
		return rawFile{}, fmt.Errorf("decode template file: %w", err)
	}
	return raw, nil
}

func (r rawFile) build(path, dir string) (File, error) {
	name := strings.TrimSpace(r.TemplateName)
	if name == "" || strings.Contains(name, "<") {
		return File{}, fmt.Errorf("%s: template_name must be a non-empty name", path)
	}
	out := File{Path: path, TemplateName: name, Tokens: r.Grammar}
	if r.GrammarType != "" {
		g, err := template.ParseGrammarType(r.GrammarType)
		if err != nil {
			return File{}, fmt.Errorf("%s: %w", path, err)
		}
		out.Grammar = g
	}

	seen := make(map[int64]struct{}, len(r.Templates))
	for i, rt := range r.Templates {
		if _, dup := seen[rt.ID]; dup {
			return File{}, fmt.Errorf("%s: query_templates[%d]: duplicate id %d", path, i, rt.ID)
		}
		seen[rt.ID] = struct{}{}

		t, err := rt.build(dir, out.Grammar)
		if err != nil {
			return File{}, fmt.Errorf("%s: query_templates[%d]: %w", path, i, err)
		}
		out.Templates = append(out.Templates, t)
	}
	return out, nil
}

func (rt rawTemplate) build(dir string, grammar template.GrammarType) (template.Template, error) {
	conn := make(map[string]metadata.Value, len(rt.DataConnector))
	for k, v := range rt.DataConnector {
		mv, err := metadata.FromAny(normalize(v))
		if err != nil {
			return template.Template{}, fmt.Errorf("data_connector.%s: %w", k, err)
		}
		conn[k] = mv
	}

	filters := metadata.Null()
	if rt.DataFilterExpressions != nil {
		var err error
		filters, err = metadata.FromAny(normalize(rt.DataFilterExpressions))
		if err != nil {
			return template.Template{}, fmt.Errorf("data_filter_expressions: %w", err)
		}
	}

	prompt := rt.SystemPrompt
	if prompt == "" && rt.PromptFile != "" && dir != "" {
		prompt = readPrompt(dir, rt.PromptFile)
	}

	active := true
	if rt.Active != nil {
		active = *rt.Active
	}

	return template.New(template.Params{
		ID:                    rt.ID,
		Name:                  rt.Name,
		Display:               rt.Display,
		Active:                active,
		DataConnector:         conn,
		DataFilterExpressions: filters,
		StructuredIfExists:    rt.StructuredIfExists,
		StructuredFields:      rt.StructuredFields,
		SystemPrompt:          prompt,
		Grammar:               grammar,
	})
}

// readPrompt returns the prompt file content, or "" when it does not exist.
func readPrompt(dir, name string) string {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// normalize converts decoder specific containers to the shapes
// metadata.FromAny accepts.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
