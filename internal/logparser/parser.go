package logparser

// Parser scans a line's body against an ordered rule table, first match
// wins. The table is built up from DefaultRules() and is freely composable:
// host code can append rules, drop rules by name, or keep only a named
// subset without touching the canonical table itself.
type Parser struct {
	rules []Rule
}

// NewParser builds a parser over the canonical rule set.
func NewParser() *Parser {
	return &Parser{rules: DefaultRules()}
}

// newWithRules constructs a Parser over an explicit rule slice, used by the
// composability helpers below to return a new, independent Parser rather
// than mutating the receiver.
func newWithRules(rules []Rule) *Parser {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return &Parser{rules: out}
}

// Extend returns a new Parser with the given rules appended after the
// existing table. Because matching is first-match-wins, extra rules only
// take effect for lines the existing table does not already claim unless
// they are placed ahead of a conflicting rule.
func (p *Parser) Extend(rules ...Rule) *Parser {
	combined := make([]Rule, 0, len(p.rules)+len(rules))
	combined = append(combined, p.rules...)
	combined = append(combined, rules...)
	return newWithRules(combined)
}

// Prepend returns a new Parser with the given rules inserted before the
// existing table, so they are tried first.
func (p *Parser) Prepend(rules ...Rule) *Parser {
	combined := make([]Rule, 0, len(p.rules)+len(rules))
	combined = append(combined, rules...)
	combined = append(combined, p.rules...)
	return newWithRules(combined)
}

// Exclude returns a new Parser with every rule whose Name is in names
// removed. If several rules share a Name, all of them are dropped.
func (p *Parser) Exclude(names ...string) *Parser {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	kept := make([]Rule, 0, len(p.rules))
	for _, r := range p.rules {
		if !skip[r.Name] {
			kept = append(kept, r)
		}
	}
	return newWithRules(kept)
}

// Filter returns a new Parser keeping only rules whose Name is in names.
func (p *Parser) Filter(names ...string) *Parser {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	kept := make([]Rule, 0, len(p.rules))
	for _, r := range p.rules {
		if keep[r.Name] {
			kept = append(kept, r)
		}
	}
	return newWithRules(kept)
}

// Parse splits the prefix off a raw log line and scans the rule table for
// the first matching rule. It returns ok=false when the prefix is malformed,
// no rule's body regex matches, or the matching rule's builder declines the
// line.
func (p *Parser) Parse(line string) (Event, bool) {
	ts, chain, body, ok := splitPrefix(line)
	if !ok {
		return Event{}, false
	}

	for _, rule := range p.rules {
		m := rule.Body.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		ev, ok := rule.Build(m)
		if !ok {
			return Event{}, false
		}
		ev.Kind = Kind(rule.Name)
		ev.Time = ts
		ev.ChainID = chain
		return ev, true
	}

	return Event{}, false
}
