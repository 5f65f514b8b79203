package pvinstall

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/cloudfoundry/jibber_jabber"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

// DefaultLanguage is the fallback for missing locales and missing keys.
const DefaultLanguage = "en"

var languageFilePattern = regexp.MustCompile(`languages/([^/]+)\.ya?ml$`)

// Translator resolves message keys to localized strings. The string tables
// live as yaml files inside the resource box, one per language, and may
// contain {{.var}} references into the variable map.
type Translator struct {
	language    string
	langStrings map[string]StringMap
	variables   StringMap
}

// NewTranslator returns a Translator without any variable lookup.
func NewTranslator() (*Translator, error) {
	return NewTranslatorVar(StringMap{})
}

// NewTranslatorVar returns a Translator with a variable lookup. It scans for
// yaml files inside the languages folder in the resource box and picks the
// language matching the system locale.
func NewTranslatorVar(variables StringMap) (*Translator, error) {
	languageFiles := MustGetResourceFiltered("languages", languageFilePattern)
	languages := make(map[string]StringMap)
	for filename, content := range languageFiles {
		languageTag := languageFilePattern.FindStringSubmatch(filename)[1]
		langStrings := make(StringMap)
		if err := yaml.Unmarshal([]byte(content), langStrings); err != nil {
			return nil, fmt.Errorf("parse language file %s: %w", filename, err)
		}
		languages[languageTag] = langStrings
	}
	if _, ok := languages[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("no strings for default language %q", DefaultLanguage)
	}
	t := Translator{
		langStrings: languages,
		variables:   variables,
	}
	if err := t.SetLanguage(t.getLocale()); err != nil {
		t.language = DefaultLanguage
	}
	return &t, nil
}

// Get returns the localized string for a given string key, with variable
// templates expanded. Unknown keys fall back to the default language, then
// to the key itself so a missing translation stays visible instead of
// producing blank output.
func (t *Translator) Get(key string) string {
	str := t.getRaw(key)
	if str == "" {
		return key
	}
	return ExpandVariables(str, MergeVariables(t.langStrings[t.language], t.variables))
}

// GetLanguage returns the identifier (e.g. "en") for the current language.
func (t *Translator) GetLanguage() string { return t.language }

// GetLanguages returns the identifiers of all available languages, default
// language first, rest sorted alphabetically.
func (t *Translator) GetLanguages() []string {
	languages := []string{}
	for lang := range t.langStrings {
		if lang != DefaultLanguage {
			languages = append(languages, lang)
		}
	}
	sort.Strings(languages)
	return append([]string{DefaultLanguage}, languages...)
}

// SetLanguage sets the translator's language from a language code string
// (e.g. "en").
func (t *Translator) SetLanguage(language string) error {
	if _, ok := t.langStrings[language]; !ok {
		return fmt.Errorf("no language %q", language)
	}
	t.language = language
	return nil
}

// getLocale returns the system locale matched against the available
// languages, as a language code string.
func (t *Translator) getLocale() string {
	languageTags := []language.Tag{language.Raw.Make(DefaultLanguage)}
	for languageTag := range t.langStrings {
		if languageTag != DefaultLanguage && languageTag != "" {
			languageTags = append(languageTags, language.Raw.Make(languageTag))
		}
	}
	locale, _ := jibber_jabber.DetectIETF()
	match, _, _ := language.NewMatcher(languageTags).Match(language.Make(locale))
	return match.String()
}

// getRaw returns the unexpanded string for a key in the current language,
// falling back to the default language.
func (t *Translator) getRaw(key string) string {
	if value, ok := t.langStrings[t.language][key]; ok {
		return value
	}
	if value, ok := t.langStrings[DefaultLanguage][key]; ok {
		return value
	}
	return ""
}
