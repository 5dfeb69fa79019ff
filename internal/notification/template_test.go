package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholders(t *testing.T) {
	tpl := &Template{
		TitleTemplate:   "Welcome, {name}!",
		MessageTemplate: "Hi {name}, your {thing} is ready. Visit {portal_url}.",
	}
	assert.Equal(t, []string{"name", "portal_url", "thing"}, Placeholders(tpl))
}

func TestPlaceholdersIgnoresMalformed(t *testing.T) {
	tpl := &Template{
		TitleTemplate:   "Braces {} and {123} are not placeholders",
		MessageTemplate: "But {valid_name} is",
	}
	assert.Equal(t, []string{"valid_name"}, Placeholders(tpl))
}

func TestValidateTemplate(t *testing.T) {
	tpl := &Template{
		Name:            "welcome",
		TitleTemplate:   "Welcome, {name}!",
		MessageTemplate: "Your {thing} is ready.",
		Variables:       map[string]string{"name": "user display name", "thing": "object"},
	}
	assert.NoError(t, ValidateTemplate(tpl))
}

func TestValidateTemplateUndeclaredVariables(t *testing.T) {
	tpl := &Template{
		Name:            "welcome",
		TitleTemplate:   "Welcome, {name}!",
		MessageTemplate: "Your {thing} is ready at {location}.",
		Variables:       map[string]string{"name": "user display name"},
	}
	err := ValidateTemplate(tpl)
	require.Error(t, err)

	var undeclared *UndeclaredVariableError
	require.ErrorAs(t, err, &undeclared)
	assert.Equal(t, []string{"location", "thing"}, undeclared.Names)
}

func TestValidateTemplateRequiresNameAndTitle(t *testing.T) {
	err := ValidateTemplate(&Template{TitleTemplate: "t"})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "name", validation.Field)

	err = ValidateTemplate(&Template{Name: "n"})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "title_template", validation.Field)
}

func TestRenderTemplate(t *testing.T) {
	tpl := &Template{
		Name:             "welcome",
		TitleTemplate:    "Welcome, {name}!",
		MessageTemplate:  "Hi {name}, you have {count} new tasks.",
		Type:             TypeInfo,
		IsPriority:       true,
		DefaultTargetURL: "/dashboard",
		Variables:        map[string]string{"name": "", "count": ""},
	}

	rendered, err := RenderTemplate(tpl, map[string]any{"name": "Ada", "count": 3})
	require.NoError(t, err)

	assert.Equal(t, "Welcome, Ada!", rendered.Title)
	assert.Equal(t, "Hi Ada, you have 3 new tasks.", rendered.Message)
	assert.Equal(t, TypeInfo, rendered.Type)
	assert.True(t, rendered.IsPriority)
	assert.Equal(t, "/dashboard", rendered.TargetURL)
}

func TestRenderTemplateMissingVariable(t *testing.T) {
	tpl := &Template{
		Name:            "welcome",
		TitleTemplate:   "Welcome, {name}!",
		MessageTemplate: "plain",
	}

	_, err := RenderTemplate(tpl, map[string]any{})
	require.Error(t, err)

	var missing *MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "name", missing.Name)
}

func TestRenderTemplateTargetURLFromContext(t *testing.T) {
	tpl := &Template{
		Name:             "link",
		TitleTemplate:    "New item",
		MessageTemplate:  "Check it out",
		DefaultTargetURL: "/default",
	}

	rendered, err := RenderTemplate(tpl, map[string]any{"target_url": "/custom/42"})
	require.NoError(t, err)
	assert.Equal(t, "/custom/42", rendered.TargetURL)
}
