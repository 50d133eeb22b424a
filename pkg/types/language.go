package types

import (
	"path"
	"strings"
)

// Language identifies the source language of a file
type Language string

const (
	LanguageGo         Language = "go"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageJava       Language = "java"
	LanguageCSharp     Language = "csharp"
	LanguageRust       Language = "rust"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"
	LanguageRuby       Language = "ruby"
	LanguageMarkdown   Language = "markdown"
	LanguageText       Language = "text"
)

var extensionLanguages = map[string]Language{
	".go":   LanguageGo,
	".py":   LanguagePython,
	".pyi":  LanguagePython,
	".js":   LanguageJavaScript,
	".jsx":  LanguageJavaScript,
	".mjs":  LanguageJavaScript,
	".cjs":  LanguageJavaScript,
	".ts":   LanguageTypeScript,
	".tsx":  LanguageTypeScript,
	".java": LanguageJava,
	".cs":   LanguageCSharp,
	".rs":   LanguageRust,
	".c":    LanguageC,
	".h":    LanguageC,
	".cc":   LanguageCPP,
	".cpp":  LanguageCPP,
	".hpp":  LanguageCPP,
	".rb":   LanguageRuby,
	".md":   LanguageMarkdown,
}

// DetectLanguage maps a file path to a Language by extension.
// Unknown extensions map to LanguageText.
func DetectLanguage(p string) Language {
	if lang, ok := extensionLanguages[strings.ToLower(path.Ext(p))]; ok {
		return lang
	}
	return LanguageText
}
