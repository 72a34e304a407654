package prompt

import (
	"github.com/manifoldco/promptui"
)

// SelectOption is one entry of a selection list.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

func selectTemplates(withDetails bool) *promptui.SelectTemplates {
	t := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label | white }}",
		Selected: "* {{ .Label | green }}",
	}
	if withDetails {
		t.Details = `
{{ "Description:" | faint }}	{{ .Description }}`
	}
	return t
}

// Select asks for one of options and returns its Value. The cursor starts
// on the option whose Value equals def.
func Select(label string, options []SelectOption, def string) (string, error) {
	cursor := 0
	for i, opt := range options {
		if opt.Value == def {
			cursor = i
			break
		}
	}

	p := promptui.Select{
		Label:     label,
		Items:     options,
		Templates: selectTemplates(len(options) > 0 && options[0].Description != ""),
		Size:      10,
		CursorPos: cursor,
	}

	i, _, err := p.Run()
	if err != nil {
		return "", wrapError(err)
	}
	return options[i].Value, nil
}

// SelectString is Select for plain strings.
func SelectString(label string, items []string, def string) (string, error) {
	options := make([]SelectOption, len(items))
	for i, item := range items {
		options[i] = SelectOption{Label: item, Value: item}
	}
	return Select(label, options, def)
}
