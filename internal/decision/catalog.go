package decision

import (
	"fmt"
	"regexp"
	"strings"
)

var commandNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidCommandName reports whether name can be registered as a command.
func ValidCommandName(name string) bool {
	return commandNamePattern.MatchString(name)
}

// HandlerSpec describes one command the model may emit.
type HandlerSpec struct {
	// Name is the command name, lower snake case.
	Name string

	// Args names the positional arguments; its length is the command's arity.
	Args []string

	// Description tells the model what the command does.
	Description string
}

// Arity returns the number of positional arguments.
func (h HandlerSpec) Arity() int {
	return len(h.Args)
}

// Signature renders the command as "name(arg, arg)".
func (h HandlerSpec) Signature() string {
	return fmt.Sprintf("%s(%s)", h.Name, strings.Join(h.Args, ", "))
}

// Catalog is the ordered set of commands available to the model.
type Catalog []HandlerSpec

// Lookup finds a command by name.
func (c Catalog) Lookup(name string) (HandlerSpec, bool) {
	for _, h := range c {
		if h.Name == name {
			return h, true
		}
	}
	return HandlerSpec{}, false
}

// Names returns command names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, h := range c {
		names[i] = h.Name
	}
	return names
}

// Describe renders the catalog as a prompt block.
func (c Catalog) Describe() string {
	var b strings.Builder
	b.WriteString("\nAVAILABLE COMMANDS\n// START\n")
	for _, h := range c {
		b.WriteString(h.Signature())
		if h.Description != "" {
			b.WriteString(": ")
			b.WriteString(h.Description)
		}
		b.WriteByte('\n')
	}
	b.WriteString("// END\n")
	b.WriteString(responseInstructions)
	return b.String()
}

const responseInstructions = `
Respond with a JSON object of the form
{"commands": [{"name": "<command>", "arguments": [{"value": "<text>"}]}]}
listing the commands to run in order. Use an empty list to do nothing.
`

// JSONSchema returns the OpenAI strict structured-output schema for the catalog.
func (c Catalog) JSONSchema() map[string]any {
	name := map[string]any{"type": "string"}
	if len(c) > 0 {
		name["enum"] = c.Names()
	}
	argument := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"value"},
		"properties": map[string]any{
			"value": map[string]any{"type": "string"},
		},
	}
	command := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"name", "arguments"},
		"properties": map[string]any{
			"name":      name,
			"arguments": map[string]any{"type": "array", "items": argument},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"commands"},
		"properties": map[string]any{
			"commands": map[string]any{"type": "array", "items": command},
		},
	}
}
