// Package l10n translates server-side messages.
package l10n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// DefaultLocale is the locale of the message keys.
const DefaultLocale = "en"

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// Catalog holds the translations of all supported locales.
type Catalog struct {
	builder *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
}

// LoadEmbedded loads the catalogs shipped with the binary.
func LoadEmbedded() (*Catalog, error) {
	return LoadFromFS(embeddedLocales)
}

// LoadFromFS loads every locales/*.yaml file of fsys.
func LoadFromFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	sort.Strings(paths)

	fallback := language.MustParse(DefaultLocale)
	builder := catalog.NewBuilder(catalog.Fallback(fallback))
	tags := []language.Tag{fallback}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		tag, err := language.Parse(file.Locale)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid locale %q: %w", path, file.Locale, err)
		}
		for key, msg := range file.Messages {
			if err := builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("%s: message %q: %w", path, key, err)
			}
		}
		if tag != fallback {
			tags = append(tags, tag)
		}
	}
	return &Catalog{builder: builder, tags: tags, matcher: language.NewMatcher(tags)}, nil
}

// Printer returns a message printer for the locale best matching the given
// preferences, in order.
func (c *Catalog) Printer(preferred ...string) *message.Printer {
	return message.NewPrinter(c.Match(preferred...), message.Catalog(c.builder))
}

// Match picks the supported tag best matching the preferences. Entries may
// be plain locales ("de") or Accept-Language header values.
func (c *Catalog) Match(preferred ...string) language.Tag {
	var wanted []language.Tag
	for _, pref := range preferred {
		pref = strings.TrimSpace(pref)
		if pref == "" {
			continue
		}
		if tags, _, err := language.ParseAcceptLanguage(pref); err == nil {
			wanted = append(wanted, tags...)
		}
	}
	if len(wanted) == 0 {
		return c.tags[0]
	}
	_, index, confidence := c.matcher.Match(wanted...)
	if confidence == language.No {
		return c.tags[0]
	}
	return c.tags[index]
}

// RequestPrinter negotiates the printer for an HTTP request. An explicit
// user preference wins over the Accept-Language header.
func (c *Catalog) RequestPrinter(r *http.Request, userLanguage string) *message.Printer {
	return c.Printer(userLanguage, r.Header.Get("Accept-Language"))
}
