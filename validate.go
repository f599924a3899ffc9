package cryptodocs

import (
	"errors"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Validate checks the structure of a configuration. Parsers are checked
// against the registry when one is given. All problems are reported, joined.
func Validate(conf Config, parsers *ParserRegistry) error {
	var errs []error

	if conf.Release != "" {
		_, err := semver.NewVersion(conf.Release)
		if err != nil {
			errs = append(errs, malformed("release",
				"%q is not a semantic version: %v", conf.Release, err))
		} else if conf.Version != "" && !isVersionPrefix(conf.Version, conf.Release) {
			errs = append(errs, malformed("version",
				"%q is not a prefix of the release %q", conf.Version, conf.Release))
		}
	}

	seen := make(map[string]bool)

	for i, name := range conf.Extensions {
		switch {
		case strings.TrimSpace(name) == "":
			errs = append(errs, malformed("extensions", "entry %d is empty", i))
		case seen[name]:
			errs = append(errs, malformed("extensions",
				"%q is listed more than once", name))
		default:
			if _, ok := LookupExtension(name); !ok {
				errs = append(errs, unresolvable("extensions",
					"no extension named %q", name))
			}
		}

		seen[name] = true
	}

	for _, name := range conf.MystEnableExtensions {
		if !slices.Contains(knownMystExtensions, name) {
			errs = append(errs, malformed("myst_enable_extensions",
				"unknown markdown extension %q", name))
		}
	}

	suffixes := conf.EffectiveSourceSuffix()

	for _, suffix := range slices.Sorted(maps.Keys(suffixes)) {
		parser := suffixes[suffix]

		if !strings.HasPrefix(suffix, ".") || len(suffix) < 2 {
			errs = append(errs, malformed("source_suffix",
				"suffix %q must start with a dot", suffix))
		}

		if parsers == nil {
			continue
		}

		if _, ok := parsers.Get(parser); !ok {
			errs = append(errs, unresolvable("source_suffix",
				"no parser %q for %q, available parsers: %s",
				parser, suffix, strings.Join(parsers.Names(), ", ")))
		}
	}

	for _, project := range slices.Sorted(maps.Keys(conf.IntersphinxMapping)) {
		target := conf.IntersphinxMapping[project]

		if project == "" {
			errs = append(errs, malformed("intersphinx_mapping",
				"project identifier cannot be empty"))
		}

		if !isAbsHTTPURL(target.BaseURL) {
			errs = append(errs, malformed("intersphinx_mapping",
				"%s: base URL %q must be an absolute http(s) URL",
				project, target.BaseURL))
		}

		if target.Inventory != nil && strings.TrimSpace(*target.Inventory) == "" {
			errs = append(errs, malformed("intersphinx_mapping",
				"%s: inventory must be null or a location", project))
		}
	}

	for _, domain := range conf.IntersphinxDisabledDomains {
		if strings.TrimSpace(domain) == "" {
			errs = append(errs, malformed("intersphinx_disabled_domains",
				"domain cannot be empty"))
		}
	}

	for _, pattern := range conf.ExcludePatterns {
		if pattern == "" {
			errs = append(errs, malformed("exclude_patterns",
				"pattern cannot be empty"))
		}
	}

	if _, ok := LookupTheme(conf.EffectiveTheme()); !ok {
		errs = append(errs, unresolvable("html_theme",
			"no theme named %q, available themes: %s",
			conf.EffectiveTheme(), strings.Join(ThemeNames(), ", ")))
	}

	errs = append(errs, validateThemeOptions(conf.HTMLThemeOptions)...)

	switch conf.EffectiveEPUBShowURLs() {
	case EPUBShowURLsFootnote, EPUBShowURLsInline, EPUBShowURLsNo:
	default:
		errs = append(errs, malformed("epub_show_urls",
			"%q must be one of footnote, inline or no", conf.EPUBShowURLs))
	}

	return errors.Join(errs...)
}

func validateThemeOptions(opts ThemeOptions) []error {
	var errs []error

	if opts.RepositoryURL != "" && !isAbsHTTPURL(opts.RepositoryURL) {
		errs = append(errs, malformed("html_theme_options",
			"repository_url %q must be an absolute http(s) URL", opts.RepositoryURL))
	}

	if (opts.UseRepositoryButton || opts.UseSourceButton) && opts.RepositoryURL == "" {
		errs = append(errs, malformed("html_theme_options",
			"repository buttons require a repository_url"))
	}

	for i, link := range opts.IconLinks {
		if link.Name == "" || link.URL == "" {
			errs = append(errs, malformed("html_theme_options",
				"icon link %d needs both name and url", i))
		}

		switch link.IconType() {
		case IconTypeFontAwesome, IconTypeURL, IconTypeLocal:
		default:
			errs = append(errs, malformed("html_theme_options",
				"icon link %q has unknown type %q", link.Name, link.Type))
		}
	}

	return errs
}

func isAbsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isVersionPrefix reports whether version is release or a leading part of
// it that ends on a component boundary.
func isVersionPrefix(version string, release string) bool {
	rest, ok := strings.CutPrefix(release, version)
	if !ok {
		return false
	}

	return rest == "" || strings.ContainsRune(".-+", rune(rest[0]))
}
