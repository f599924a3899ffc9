package cryptodocs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config is the documentation configuration descriptor. It's read once per
// build and never modified by the build engine.
type Config struct {
	Project   string `json:"project" yaml:"project"`
	Version   string `json:"version" yaml:"version"`
	Release   string `json:"release" yaml:"release"`
	Copyright string `json:"copyright" yaml:"copyright"`
	Author    string `json:"author" yaml:"author"`
	RepoURL   string `json:"repo_url" yaml:"repo_url"`

	// SysPath lists directories, relative to the documentation source
	// directory, that the autodoc extensions search for packages.
	SysPath []string `json:"sys_path,omitempty" yaml:"sys_path,omitempty"`

	Extensions           []string `json:"extensions" yaml:"extensions"`
	MystEnableExtensions []string `json:"myst_enable_extensions,omitempty" yaml:"myst_enable_extensions,omitempty"`

	SourceSuffix map[string]string `json:"source_suffix" yaml:"source_suffix"`

	IntersphinxMapping         map[string]IntersphinxTarget `json:"intersphinx_mapping,omitempty" yaml:"intersphinx_mapping,omitempty"`
	IntersphinxDisabledDomains []string                     `json:"intersphinx_disabled_domains,omitempty" yaml:"intersphinx_disabled_domains,omitempty"`

	TemplatesPath   []string `json:"templates_path,omitempty" yaml:"templates_path,omitempty"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty" yaml:"exclude_patterns,omitempty"`

	HTMLTheme        string       `json:"html_theme" yaml:"html_theme"`
	HTMLThemeOptions ThemeOptions `json:"html_theme_options" yaml:"html_theme_options"`
	HTMLLogo         string       `json:"html_logo,omitempty" yaml:"html_logo,omitempty"`

	EPUBShowURLs string `json:"epub_show_urls,omitempty" yaml:"epub_show_urls,omitempty"`
}

// IntersphinxTarget is a (base URL, inventory) pair. An empty Inventory means
// that the inventory is found at the base URL.
type IntersphinxTarget struct {
	BaseURL   string
	Inventory *string
}

func (t IntersphinxTarget) MarshalJSON() ([]byte, error) {
	return json.Marshal([]*string{&t.BaseURL, t.Inventory})
}

func (t *IntersphinxTarget) UnmarshalJSON(data []byte) error {
	var pair []*string

	err := json.Unmarshal(data, &pair)
	if err != nil {
		return fmt.Errorf("intersphinx target must be a [url, inventory] pair: %w", err)
	}

	return t.fromPair(pair)
}

func (t IntersphinxTarget) MarshalYAML() (any, error) {
	return []*string{&t.BaseURL, t.Inventory}, nil
}

func (t *IntersphinxTarget) UnmarshalYAML(node *yaml.Node) error {
	var pair []*string

	err := node.Decode(&pair)
	if err != nil {
		return fmt.Errorf("intersphinx target must be a [url, inventory] pair: %w", err)
	}

	return t.fromPair(pair)
}

func (t *IntersphinxTarget) fromPair(pair []*string) error {
	if len(pair) != 2 {
		return fmt.Errorf("intersphinx target must have two elements, got %d", len(pair))
	}

	if pair[0] == nil {
		return errors.New("intersphinx base URL cannot be null")
	}

	t.BaseURL = *pair[0]
	t.Inventory = pair[1]

	return nil
}

// ThemeOptions are the html_theme_options understood by the bundled themes.
type ThemeOptions struct {
	RepositoryURL       string     `json:"repository_url,omitempty" yaml:"repository_url,omitempty"`
	RepositoryBranch    string     `json:"repository_branch,omitempty" yaml:"repository_branch,omitempty"`
	UseRepositoryButton bool       `json:"use_repository_button,omitempty" yaml:"use_repository_button,omitempty"`
	UseSourceButton     bool       `json:"use_source_button,omitempty" yaml:"use_source_button,omitempty"`
	PathToDocs          string     `json:"path_to_docs,omitempty" yaml:"path_to_docs,omitempty"`
	IconLinks           []IconLink `json:"icon_links,omitempty" yaml:"icon_links,omitempty"`
}

// Icon link types.
const (
	IconTypeFontAwesome = "fontawesome"
	IconTypeURL         = "url"
	IconTypeLocal       = "local"
)

type IconLink struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
	Icon string `json:"icon" yaml:"icon"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// IconType returns the icon type, defaulting to font awesome.
func (l IconLink) IconType() string {
	if l.Type == "" {
		return IconTypeFontAwesome
	}

	return l.Type
}

// EPUB URL display modes.
const (
	EPUBShowURLsFootnote = "footnote"
	EPUBShowURLsInline   = "inline"
	EPUBShowURLsNo       = "no"
)

// Cryptosystems returns the documentation configuration of the
// cryptosystems package.
func Cryptosystems() Config {
	const repo = "https://github.com/ishan-surana/cryptosystems"

	return Config{
		Project:   "cryptosystems",
		Version:   "1.0.0",
		Release:   "1.0.0",
		Copyright: "2024, Ishan Surana",
		Author:    "Ishan Surana",
		RepoURL:   repo + "/",
		SysPath:   []string{".."},
		Extensions: []string{
			ExtDuration,
			ExtDoctest,
			ExtAutodoc,
			ExtAutosummary,
			ExtIntersphinx,
			ExtDesign,
			ExtCopyButton,
			ExtM2R2,
		},
		MystEnableExtensions: []string{"colon_fence"},
		SourceSuffix: map[string]string{
			".rst": ParserRestructuredText,
			".txt": ParserMarkdown,
			".md":  ParserMarkdown,
		},
		IntersphinxMapping: map[string]IntersphinxTarget{
			"python": {BaseURL: "https://docs.python.org/3/"},
			"sphinx": {BaseURL: "https://www.sphinx-doc.org/en/master/"},
		},
		IntersphinxDisabledDomains: []string{"std"},
		TemplatesPath:              []string{"_templates"},
		ExcludePatterns:            []string{},
		HTMLTheme:                  ThemeBook,
		HTMLThemeOptions: ThemeOptions{
			RepositoryURL:       repo,
			UseRepositoryButton: true,
			UseSourceButton:     true,
			PathToDocs:          "docs",
			IconLinks: []IconLink{
				{
					Name: "GitHub",
					URL:  repo,
					Icon: "fa-brands fa-github",
				},
				{
					Name: "PyPI",
					URL:  "https://pypi.org/project/cryptosystems/",
					Icon: "https://img.shields.io/pypi/v/cryptosystems?label=latest+release&color=blue",
					Type: IconTypeURL,
				},
			},
		},
		HTMLLogo:     "https://ishan-surana.github.io/images/cryptosystems.png",
		EPUBShowURLs: EPUBShowURLsFootnote,
	}
}

// LoadConfig reads a configuration descriptor from a JSON or YAML file.
// Unknown options are rejected.
func LoadConfig(path string) (Config, error) {
	var conf Config

	data, err := os.ReadFile(path)
	if err != nil {
		return conf, fmt.Errorf("read config file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()

		err = dec.Decode(&conf)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)

		err = dec.Decode(&conf)
	default:
		return conf, fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}

	if err != nil {
		return conf, fmt.Errorf("%w: unmarshal config: %w", ErrMalformedOption, err)
	}

	return conf, nil
}

var optionNames = []string{
	"project", "version", "release", "copyright", "author", "repo_url",
	"sys_path", "extensions", "myst_enable_extensions", "source_suffix",
	"intersphinx_mapping", "intersphinx_disabled_domains",
	"templates_path", "exclude_patterns", "html_theme",
	"html_theme_options", "html_logo", "epub_show_urls",
}

// Options returns the names of all recognised options.
func Options() []string {
	return slices.Clone(optionNames)
}

// Get reads a declared option. The boolean is false if the option is
// unknown or has not been set.
func (c Config) Get(option string) (any, bool) {
	var v any

	switch option {
	case "project":
		v = c.Project
	case "version":
		v = c.Version
	case "release":
		v = c.Release
	case "copyright":
		v = c.Copyright
	case "author":
		v = c.Author
	case "repo_url":
		v = c.RepoURL
	case "sys_path":
		v = c.SysPath
	case "extensions":
		v = c.Extensions
	case "myst_enable_extensions":
		v = c.MystEnableExtensions
	case "source_suffix":
		v = c.SourceSuffix
	case "intersphinx_mapping":
		v = c.IntersphinxMapping
	case "intersphinx_disabled_domains":
		v = c.IntersphinxDisabledDomains
	case "templates_path":
		v = c.TemplatesPath
	case "exclude_patterns":
		v = c.ExcludePatterns
	case "html_theme":
		v = c.HTMLTheme
	case "html_theme_options":
		v = c.HTMLThemeOptions
	case "html_logo":
		v = c.HTMLLogo
	case "epub_show_urls":
		v = c.EPUBShowURLs
	default:
		return nil, false
	}

	if isUnset(v) {
		return nil, false
	}

	return v, true
}

// Lookup reads an option, falling back to the engine default when the option
// is unset.
func (c Config) Lookup(option string) any {
	v, ok := c.Get(option)
	if ok {
		return v
	}

	return engineDefaults[option]
}

var engineDefaults = map[string]any{
	"project":        "Python",
	"version":        "",
	"release":        "",
	"source_suffix":  map[string]string{".rst": ParserRestructuredText},
	"html_theme":     ThemeBasic,
	"epub_show_urls": EPUBShowURLsInline,
}

func isUnset(v any) bool {
	switch t := v.(type) {
	case string:
		return t == ""
	case []string:
		return t == nil
	case map[string]string:
		return t == nil
	case map[string]IntersphinxTarget:
		return t == nil
	case ThemeOptions:
		return t.RepositoryURL == "" && t.RepositoryBranch == "" &&
			!t.UseRepositoryButton && !t.UseSourceButton &&
			t.PathToDocs == "" && t.IconLinks == nil
	}

	return v == nil
}

// EffectiveSourceSuffix returns the source suffix mapping with the engine
// default applied.
func (c Config) EffectiveSourceSuffix() map[string]string {
	return c.Lookup("source_suffix").(map[string]string)
}

// EffectiveTheme returns the theme name with the engine default applied.
func (c Config) EffectiveTheme() string {
	return c.Lookup("html_theme").(string)
}

// EffectiveEPUBShowURLs returns the EPUB URL mode with the engine default
// applied.
func (c Config) EffectiveEPUBShowURLs() string {
	return c.Lookup("epub_show_urls").(string)
}
