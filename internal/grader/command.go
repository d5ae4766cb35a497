package grader

import "autograder/internal/api"

// CommandPlaceholder is the sentinel parameter value meaning "substitute
// the canonical default command for the submission language".
const CommandPlaceholder = "CMD"

// defaultCommands is the canonical per-language execution command table.
// Fixed, no dynamic discovery.
var defaultCommands = map[api.Language]string{
	api.LanguagePython: "python3 main.py",
	api.LanguageJava:   "java Main",
	api.LanguageNode:   "node index.js",
	api.LanguageGo:     "go run .",
	api.LanguageC:      "./a.out",
	api.LanguageCpp:    "./a.out",
}

// DefaultCommand returns the canonical execution command for a language.
// Unknown languages yield an empty command.
func DefaultCommand(lang api.Language) string {
	return defaultCommands[lang]
}

// resolveParamValue materialises one parameter value for a submission
// language:
//
//   - the "CMD" placeholder becomes the canonical default command,
//   - a {language: command} map resolves to the entry for the submission
//     language, or an empty command when the language is absent (the test
//     is expected to fail naturally at runtime),
//   - everything else passes through unchanged.
func resolveParamValue(value interface{}, lang api.Language) interface{} {
	switch v := value.(type) {
	case string:
		if v == CommandPlaceholder {
			return DefaultCommand(lang)
		}
		return v
	case map[string]interface{}:
		if !isCommandMap(v) {
			return v
		}
		if cmd, ok := v[string(lang)].(string); ok {
			return cmd
		}
		return ""
	case map[string]string:
		if cmd, ok := v[string(lang)]; ok {
			return cmd
		}
		return ""
	default:
		return value
	}
}

// isCommandMap reports whether a map parameter is a per-language command
// alternative: every value must be a string. Structured object parameters
// are left untouched.
func isCommandMap(m map[string]interface{}) bool {
	if len(m) == 0 {
		return false
	}
	for _, v := range m {
		if _, ok := v.(string); !ok {
			return false
		}
	}
	return true
}

// materializeParams produces the per-execution parameter snapshot for a
// test: a shallow copy of the rubric parameters with command values
// resolved for the submission language.
func materializeParams(params map[string]interface{}, lang api.Language) map[string]interface{} {
	if params == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = resolveParamValue(v, lang)
	}
	return out
}
