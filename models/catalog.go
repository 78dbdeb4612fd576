package models

// Language is a display entry for syntax highlighting
type Language struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ExpirationOption is a relative expiry offered by the UI; nil Minutes means never
type ExpirationOption struct {
	Name    string `json:"name"`
	Minutes *int   `json:"value"`
}

// SupportedLanguages lists the languages the front end can highlight.
// The server does not reject values outside this list.
var SupportedLanguages = []Language{
	{Name: "Plain Text", Value: "plaintext"},
	{Name: "JavaScript", Value: "javascript"},
	{Name: "TypeScript", Value: "typescript"},
	{Name: "HTML", Value: "html"},
	{Name: "CSS", Value: "css"},
	{Name: "Python", Value: "python"},
	{Name: "Java", Value: "java"},
	{Name: "C", Value: "c"},
	{Name: "C++", Value: "cpp"},
	{Name: "C#", Value: "csharp"},
	{Name: "Go", Value: "go"},
	{Name: "Rust", Value: "rust"},
	{Name: "PHP", Value: "php"},
	{Name: "Ruby", Value: "ruby"},
	{Name: "Bash", Value: "bash"},
	{Name: "SQL", Value: "sql"},
}

// ExpirationOptions lists the relative expirations offered on creation
var ExpirationOptions = []ExpirationOption{
	{Name: "Never", Minutes: nil},
	{Name: "10 Minutes", Minutes: intPtr(10)},
	{Name: "1 Hour", Minutes: intPtr(60)},
	{Name: "1 Day", Minutes: intPtr(1440)},
	{Name: "1 Week", Minutes: intPtr(10080)},
	{Name: "1 Month", Minutes: intPtr(43200)},
}

var languageExtensions = map[string]string{
	"plaintext":  "txt",
	"javascript": "js",
	"typescript": "ts",
	"html":       "html",
	"css":        "css",
	"python":     "py",
	"java":       "java",
	"c":          "c",
	"cpp":        "cpp",
	"csharp":     "cs",
	"go":         "go",
	"rust":       "rs",
	"php":        "php",
	"ruby":       "rb",
	"bash":       "sh",
	"sql":        "sql",
}

// IsSupportedLanguage reports whether lang is in the catalogue
func IsSupportedLanguage(lang string) bool {
	_, ok := languageExtensions[lang]
	return ok
}

// FileExtension returns the download extension for a language, "txt" when unknown
func FileExtension(lang string) string {
	if ext, ok := languageExtensions[lang]; ok {
		return ext
	}
	return "txt"
}

func intPtr(v int) *int { return &v }
