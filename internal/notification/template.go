package notification

import (
	"fmt"
	"regexp"
	"sort"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Rendered is the result of applying a context to a template
type Rendered struct {
	Title          string
	Message        string
	Type           Type
	IsPriority     bool
	ActionRequired bool
	TargetURL      string
}

// Placeholders extracts the set of {name} placeholders referenced by the
// template's title and message
func Placeholders(tpl *Template) []string {
	seen := make(map[string]bool)
	var names []string
	for _, text := range []string{tpl.TitleTemplate, tpl.MessageTemplate} {
		for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	sort.Strings(names)
	return names
}

// ValidateTemplate checks a template definition: every placeholder used in
// the title or message must appear in the declared variable set. Render-time
// contexts are not checked here.
func ValidateTemplate(tpl *Template) error {
	if tpl.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if tpl.TitleTemplate == "" {
		return &ValidationError{Field: "title_template", Reason: "must not be empty"}
	}
	var undeclared []string
	for _, name := range Placeholders(tpl) {
		if _, ok := tpl.Variables[name]; !ok {
			undeclared = append(undeclared, name)
		}
	}
	if len(undeclared) > 0 {
		return &UndeclaredVariableError{Names: undeclared}
	}
	return nil
}

// RenderTemplate substitutes every placeholder from the context. A
// placeholder referenced by the template but absent from the context fails
// with MissingVariableError. target_url comes from the context when present,
// otherwise from the template default. Rendering has no side effects; usage
// tracking belongs to the create-from-template operation.
func RenderTemplate(tpl *Template, context map[string]any) (*Rendered, error) {
	substitute := func(text string) (string, error) {
		var missing *MissingVariableError
		out := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
			name := match[1 : len(match)-1]
			value, ok := context[name]
			if !ok {
				if missing == nil {
					missing = &MissingVariableError{Name: name}
				}
				return match
			}
			return fmt.Sprintf("%v", value)
		})
		if missing != nil {
			return "", missing
		}
		return out, nil
	}

	title, err := substitute(tpl.TitleTemplate)
	if err != nil {
		return nil, err
	}
	message, err := substitute(tpl.MessageTemplate)
	if err != nil {
		return nil, err
	}

	targetURL := tpl.DefaultTargetURL
	if v, ok := context["target_url"]; ok {
		targetURL = fmt.Sprintf("%v", v)
	}

	return &Rendered{
		Title:          title,
		Message:        message,
		Type:           tpl.Type,
		IsPriority:     tpl.IsPriority,
		ActionRequired: tpl.ActionRequired,
		TargetURL:      targetURL,
	}, nil
}
