package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed locales/*.json
var locales embed.FS

var translations = make(map[string]map[string]string)
var DefaultLang = "en"

// Load reads the bundled locale files.
func Load() error {
	return LoadTranslations(locales, "locales")
}

// LoadTranslations reads every <lang>.json file under dir in fsys.
func LoadTranslations(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return err
		}
		var t map[string]string
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		translations[strings.TrimSuffix(name, ".json")] = t
	}
	if _, ok := translations[DefaultLang]; !ok {
		return fmt.Errorf("missing default locale %q", DefaultLang)
	}
	return nil
}

func T(lang, key string) string {
	if t, ok := translations[lang]; ok {
		if val, ok := t[key]; ok {
			return val
		}
	}
	// Fallback to English
	if lang != DefaultLang {
		return T(DefaultLang, key)
	}
	return key
}

// Tf formats the translation of key with args.
func Tf(lang, key string, args ...any) string {
	return fmt.Sprintf(T(lang, key), args...)
}

func DetectLanguage(r *http.Request) string {
	// e.g. fr-CH, fr;q=0.9, en;q=0.8, *;q=0.5
	accept := r.Header.Get("Accept-Language")
	if accept != "" {
		for _, part := range strings.Split(accept, ",") {
			lang := strings.TrimSpace(strings.Split(part, ";")[0])
			if len(lang) >= 2 {
				lang = strings.ToLower(lang[:2])
				if _, ok := translations[lang]; ok {
					return lang
				}
			}
		}
	}

	return DefaultLang
}
