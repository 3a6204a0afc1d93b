// Package directive holds the static table of directives that are built in
// to the GraphQL language itself. Schemas in the registry may use these
// without declaring them, so tooling that inspects registered schemas needs
// to be able to look their definitions up.
package directive

import "sort"

// Location is a place in a GraphQL document or type system where a directive
// may appear.
type Location string

const (
	// executable locations
	LocationQuery              Location = "QUERY"
	LocationMutation           Location = "MUTATION"
	LocationSubscription       Location = "SUBSCRIPTION"
	LocationField              Location = "FIELD"
	LocationFragmentDefinition Location = "FRAGMENT_DEFINITION"
	LocationFragmentSpread     Location = "FRAGMENT_SPREAD"
	LocationInlineFragment     Location = "INLINE_FRAGMENT"
	LocationVariableDefinition Location = "VARIABLE_DEFINITION"

	// type-system locations
	LocationSchema               Location = "SCHEMA"
	LocationScalar               Location = "SCALAR"
	LocationObject               Location = "OBJECT"
	LocationFieldDefinition      Location = "FIELD_DEFINITION"
	LocationArgumentDefinition   Location = "ARGUMENT_DEFINITION"
	LocationInterface            Location = "INTERFACE"
	LocationUnion                Location = "UNION"
	LocationEnum                 Location = "ENUM"
	LocationEnumValue            Location = "ENUM_VALUE"
	LocationInputObject          Location = "INPUT_OBJECT"
	LocationInputFieldDefinition Location = "INPUT_FIELD_DEFINITION"
)

// Argument is a single argument accepted by a directive. Type is the GraphQL
// type reference as written in the language ("Boolean!", "String").
// DefaultValue is the argument's default as a GraphQL literal, or the empty
// string if the argument has no default.
type Argument struct {
	Name         string
	Type         string
	Description  string
	DefaultValue string
}

// Definition describes one built-in directive.
type Definition struct {
	Name        string
	Description string
	Locations   []Location
	Args        []Argument
	Repeatable  bool
}

var builtIns = map[string]Definition{
	"skip": {
		Name:        "skip",
		Description: "Directs the executor to skip this field or fragment when the `if` argument is true.",
		Locations: []Location{
			LocationField,
			LocationFragmentSpread,
			LocationInlineFragment,
		},
		Args: []Argument{
			{Name: "if", Type: "Boolean!", Description: "Skipped when true."},
		},
	},
	"include": {
		Name:        "include",
		Description: "Directs the executor to include this field or fragment only when the `if` argument is true.",
		Locations: []Location{
			LocationField,
			LocationFragmentSpread,
			LocationInlineFragment,
		},
		Args: []Argument{
			{Name: "if", Type: "Boolean!", Description: "Included when true."},
		},
	},
	"deprecated": {
		Name:        "deprecated",
		Description: "Marks an element of a GraphQL schema as no longer supported.",
		Locations: []Location{
			LocationFieldDefinition,
			LocationEnumValue,
		},
		Args: []Argument{
			{
				Name:         "reason",
				Type:         "String",
				Description:  "Explains why this element was deprecated, usually also including a suggestion for how to access supported similar data. Formatted using the Markdown syntax.",
				DefaultValue: `"No longer supported"`,
			},
		},
	},
	"specifiedBy": {
		Name:        "specifiedBy",
		Description: "Exposes a URL that specifies the behavior of this scalar.",
		Locations: []Location{
			LocationScalar,
		},
		Args: []Argument{
			{Name: "url", Type: "String!", Description: "The URL that specifies the behavior of this scalar."},
		},
	},
}

// normalizeName drops a single leading '@' so callers may pass directive
// names as they appear in documents. Directive names are case-sensitive.
func normalizeName(name string) string {
	if len(name) > 0 && name[0] == '@' {
		return name[1:]
	}
	return name
}

// Lookup returns the definition of the built-in directive with the given
// name, if there is one. The name may be given with or without a leading '@'.
// The returned Definition is a copy; callers may modify it freely.
func Lookup(name string) (Definition, bool) {
	def, ok := builtIns[normalizeName(name)]
	if !ok {
		return Definition{}, false
	}
	return copyDefinition(def), true
}

// IsBuiltIn returns whether the given name names a directive built in to the
// GraphQL language. The name may be given with or without a leading '@'.
func IsBuiltIn(name string) bool {
	_, ok := builtIns[normalizeName(name)]
	return ok
}

// Names returns the names of all built-in directives, sorted.
func Names() []string {
	names := make([]string, 0, len(builtIns))
	for name := range builtIns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the definitions of all built-in directives, sorted by name.
// The returned Definitions are copies; callers may modify them freely.
func All() []Definition {
	defs := make([]Definition, 0, len(builtIns))
	for _, name := range Names() {
		defs = append(defs, copyDefinition(builtIns[name]))
	}
	return defs
}

func copyDefinition(def Definition) Definition {
	defCopy := def

	if def.Locations != nil {
		defCopy.Locations = make([]Location, len(def.Locations))
		copy(defCopy.Locations, def.Locations)
	}
	if def.Args != nil {
		defCopy.Args = make([]Argument, len(def.Args))
		copy(defCopy.Args, def.Args)
	}

	return defCopy
}
