package lang

import (
	"regexp"
	"strings"
)

var (
	goSingleImport = regexp.MustCompile(`(?m)^import[ \t]+(?:[\w.]+[ \t]+)?"([^"]+)"`)
	goBlockImport  = regexp.MustCompile(`(?ms)^import[ \t]*\((.*?)\)`)
	goBlockLine    = regexp.MustCompile(`(?m)^[ \t]*(?:[\w.]+[ \t]+)?"([^"]+)"`)

	pyImport     = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+([\w., \t]+)`)
	pyFromImport = regexp.MustCompile(`(?m)^[ \t]*from[ \t]+(\.*[\w.]*)[ \t]+import[ \t]*(\([^)]*\)|[^\n#;]*)`)

	jsImportFrom = regexp.MustCompile(`\bimport\s+(?:type\s+)?(?:[\w*{}\s,$]+?\s+from\s+)?['"]([^'"\n]+)['"]`)
	jsExportFrom = regexp.MustCompile(`\bexport\s+(?:type\s+)?(?:\*|\{[^}]*\})(?:\s+as\s+\w+)?\s+from\s+['"]([^'"\n]+)['"]`)
	jsRequire    = regexp.MustCompile(`\b(?:require|import)\(\s*['"]([^'"\n]+)['"]\s*\)`)

	cInclude = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include[ \t]*"([^"]+)"`)

	javaImport   = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+(?:static[ \t]+)?([\w.]+?)(?:\.\*)?[ \t]*;`)
	kotlinImport = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+([\w.]+)`)

	rubyRequire = regexp.MustCompile(`(?m)^[ \t]*(require_relative|require)[ \t(]+['"]([^'"]+)['"]`)

	rustMod = regexp.MustCompile(`(?m)^[ \t]*(?:pub(?:\([^)]*\))?[ \t]+)?mod[ \t]+(\w+)[ \t]*;`)
	rustUse = regexp.MustCompile(`(?m)^[ \t]*(?:pub(?:\([^)]*\))?[ \t]+)?use[ \t]+crate::([\w:]+)`)

	phpInclude = regexp.MustCompile(`(?m)^[ \t]*(?:require|include)(?:_once)?[ \t(]*['"]([^'"]+)['"]`)
	phpUse     = regexp.MustCompile(`(?m)^[ \t]*use[ \t]+([\w\\]+)`)

	csharpUsing = regexp.MustCompile(`(?m)^[ \t]*using[ \t]+(?:static[ \t]+)?([\w.]+)[ \t]*;`)
	swiftImport = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+(?:(?:class|struct|enum|protocol|func|var|let|typealias)[ \t]+)?(\w+)`)
	shellSource = regexp.MustCompile(`(?m)^[ \t]*(?:source|\.)[ \t]+['"]?([^'"\s;]+)`)
)

func submatches(re *regexp.Regexp, content string, group int) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		if group < len(m) {
			out = append(out, m[group])
		}
	}
	return out
}

func goImports(content string) []string {
	tokens := submatches(goSingleImport, content, 1)
	for _, block := range submatches(goBlockImport, content, 1) {
		tokens = append(tokens, submatches(goBlockLine, block, 1)...)
	}
	return tokens
}

func pythonImports(content string) []string {
	var tokens []string
	for _, list := range submatches(pyImport, content, 1) {
		for _, part := range strings.Split(list, ",") {
			fields := strings.Fields(part)
			if len(fields) > 0 {
				tokens = append(tokens, fields[0])
			}
		}
	}
	for _, m := range pyFromImport.FindAllStringSubmatch(content, -1) {
		tokens = append(tokens, fromImportTokens(m[1], m[2])...)
	}
	return tokens
}

// fromImportTokens turns "from X import a, b" into X.a and X.b, since each
// name may be a submodule. A star import yields X alone.
func fromImportTokens(module, names string) []string {
	names = strings.NewReplacer("(", " ", ")", " ", "\\", " ").Replace(names)
	var tokens []string
	for _, part := range strings.Split(names, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 || fields[0] == "*" {
			continue
		}
		if strings.Trim(module, ".") == "" {
			tokens = append(tokens, module+fields[0])
		} else {
			tokens = append(tokens, module+"."+fields[0])
		}
	}
	if len(tokens) == 0 {
		return []string{module}
	}
	return tokens
}

func jsImports(content string) []string {
	tokens := submatches(jsImportFrom, content, 1)
	tokens = append(tokens, submatches(jsExportFrom, content, 1)...)
	return append(tokens, submatches(jsRequire, content, 1)...)
}

func includeImports(content string) []string {
	return submatches(cInclude, content, 1)
}

func javaImports(content string) []string {
	return submatches(javaImport, content, 1)
}

func kotlinImports(content string) []string {
	return submatches(kotlinImport, content, 1)
}

func rubyImports(content string) []string {
	var tokens []string
	for _, m := range rubyRequire.FindAllStringSubmatch(content, -1) {
		tok := m[2]
		if m[1] == "require_relative" && !strings.HasPrefix(tok, ".") {
			tok = "./" + tok
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func rustImports(content string) []string {
	var tokens []string
	for _, mod := range submatches(rustMod, content, 1) {
		tokens = append(tokens, "./"+mod)
	}
	for _, use := range submatches(rustUse, content, 1) {
		tokens = append(tokens, strings.ReplaceAll(strings.Trim(use, ":"), "::", "/"))
	}
	return tokens
}

func phpImports(content string) []string {
	tokens := submatches(phpInclude, content, 1)
	for _, use := range submatches(phpUse, content, 1) {
		tokens = append(tokens, strings.ReplaceAll(use, `\`, "/"))
	}
	return tokens
}

func csharpImports(content string) []string {
	return submatches(csharpUsing, content, 1)
}

func swiftImports(content string) []string {
	return submatches(swiftImport, content, 1)
}

func shellImports(content string) []string {
	return submatches(shellSource, content, 1)
}
