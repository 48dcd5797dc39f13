package stylesheet

// Declaration is a single property: value pair inside a rule.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// Rule is a style rule with its selector text and declarations in source order.
type Rule struct {
	Selector     string
	Declarations []Declaration
}

// Selectors splits the rule's selector list on top-level commas.
func (r Rule) Selectors() []string {
	return splitTopLevel(r.Selector, ',')
}
