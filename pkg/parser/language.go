package parser

import (
	"path/filepath"
	"strings"
)

// Language identifies which tree-sitter grammar a file parses with. TSX is
// its own language here rather than a TypeScript flag: it compiles to a
// distinct grammar and therefore gets its own parser pool.
type Language int

const (
	LanguageUnknown Language = iota
	LanguageTypeScript
	LanguageTSX
	LanguageJavaScript
)

func (l Language) String() string {
	switch l {
	case LanguageTypeScript:
		return "typescript"
	case LanguageTSX:
		return "tsx"
	case LanguageJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// extensionLanguages is the single source of truth for which files the
// engine indexes; the scanner and the file watcher consult it through
// Indexable so the three never drift apart.
var extensionLanguages = map[string]Language{
	".ts":  LanguageTypeScript,
	".mts": LanguageTypeScript,
	".cts": LanguageTypeScript,
	".tsx": LanguageTSX,
	".js":  LanguageJavaScript,
	".jsx": LanguageJavaScript,
	".mjs": LanguageJavaScript,
	".cjs": LanguageJavaScript,
}

// DetectLanguage maps a file path to its grammar by extension, returning
// LanguageUnknown for anything the engine does not parse.
func DetectLanguage(filePath string) Language {
	ext := strings.ToLower(filepath.Ext(filePath))
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return LanguageUnknown
}

// Indexable reports whether filePath is something the engine can parse at
// all. Scan and watch filters use this before any stat or read.
func Indexable(filePath string) bool {
	return DetectLanguage(filePath) != LanguageUnknown
}
