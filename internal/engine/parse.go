package engine

import (
	"slices"
	"strings"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/term"
)

// parser builds a node tree from a term, resolving ids against the store
// while it goes. Not safe for concurrent use.
type parser struct {
	eng *Engine
	// expanding holds the alias ids currently being expanded.
	expanding []string
}

func (p *parser) parse(t string) (node, error) {
	t = strings.TrimSpace(term.Normalize(t))
	id, children := term.ParseID(t)
	prefix, isPrefix := term.PrefixOf(id)

	body := t
	if children != "" && (id == "" || isPrefix) {
		body = children
	}
	return p.parseMerge(body, prefix)
}

// parseMerge handles a|b|c. A namespace prefix qualifies every operand.
func (p *parser) parseMerge(t, prefix string) (node, error) {
	parts, err := p.split(t, '|')
	if err != nil {
		return nil, err
	}
	if prefix != "" {
		for i := range parts {
			parts[i] = term.Qualify(prefix, parts[i])
		}
		if len(parts) == 1 {
			return p.parse(parts[0])
		}
	}
	if len(parts) == 1 {
		return p.parseAttach(parts[0])
	}

	kids, err := p.linkList(parts, false)
	if err != nil {
		return nil, err
	}
	return newMerge(kids), nil
}

// parseAttach handles a+b and a;b.
func (p *parser) parseAttach(t string) (node, error) {
	parts, err := p.split(t, '+', ';')
	if err != nil {
		return nil, err
	}
	if len(parts) == 1 {
		return p.parseChain(parts[0])
	}
	kids, err := p.linkList(parts, true)
	if err != nil {
		return nil, err
	}
	return newAttach(kids), nil
}

// parseChain handles a:b and a#b.
func (p *parser) parseChain(t string) (node, error) {
	parts, err := p.split(t, ':', '#')
	if err != nil {
		return nil, err
	}
	if len(parts) == 1 {
		return p.parseTree(parts[0])
	}
	kids, err := p.linkList(parts, true)
	if err != nil {
		return nil, err
	}
	return newFilter(kids), nil
}

// parseTree handles id and id(c1,c2).
func (p *parser) parseTree(t string) (node, error) {
	id, children := term.ParseID(t)
	if id == "" && children == "" {
		return nil, NewParseError(t, "cannot parse term", nil)
	}
	if id == "" {
		return nil, NewParseError(t, "no id found", nil)
	}
	if children == "" {
		return p.atomic(id)
	}
	parts, err := p.split(children, ',')
	if err != nil {
		return nil, err
	}
	return p.newTree(id, parts)
}

// linkList parses each term. With firstAsRoot the namespace of the first
// node qualifies all following terms.
func (p *parser) linkList(terms []string, firstAsRoot bool) ([]node, error) {
	kids := make([]node, 0, len(terms))
	prefix := ""
	if firstAsRoot {
		first, err := p.parse(terms[0])
		if err != nil {
			return nil, err
		}
		prefix = prefixOf(first)
		if prefix == "" {
			return nil, NewParseError(terms[0], "prefix not known", nil)
		}
		kids = append(kids, first)
		terms = terms[1:]
	}
	for _, t := range terms {
		if prefix != "" {
			t = term.Qualify(prefix, t)
		}
		kid, err := p.parse(t)
		if err != nil {
			return nil, err
		}
		kids = append(kids, kid)
	}
	return kids, nil
}

func (p *parser) newTree(id string, terms []string) (node, error) {
	head, err := p.parse(id)
	if err != nil {
		return nil, err
	}
	t := newTree(head)

	shape := &catalog.Interface{Output: t.output}
	if a, ok := head.(*atomic); ok {
		shape.Aliases = a.iface.Aliases
	}
	aliases := shape.ChildAliases()
	for k, v := range p.aliasChildNames(id) {
		aliases[k] = v
	}
	terms = term.ConvertAliases(terms, aliases)

	linkID := prefixOf(t)
	if linkID == "" {
		return nil, NewParseError(id, "query "+id+" has no prefix", nil)
	}
	for _, ct := range terms {
		kid, err := p.parse("(" + ct + "):" + linkID)
		if err != nil {
			return nil, err
		}
		t.link(kid)
	}
	return t, nil
}

// aliasChildNames collects the child-name rewrites declared along the
// alias chain starting at id. An outer alias wins over the one it names.
func (p *parser) aliasChildNames(id string) map[string]string {
	out := map[string]string{}
	seen := map[string]bool{}
	for !seen[id] {
		seen[id] = true
		iface, err := p.eng.store.Interface(id)
		if err != nil || !iface.IsAlias() {
			break
		}
		for k, v := range iface.Aliases {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
		next, children := term.ParseID(strings.TrimSpace(iface.Term))
		if children != "" || next == "" {
			break
		}
		id = next
	}
	return out
}

// atomic resolves id to a compiled query. An alias is parsed in place of
// the id.
func (p *parser) atomic(id string) (node, error) {
	iface, err := p.eng.store.Interface(id)
	if err != nil {
		if catalog.IsNotFound(err) {
			return nil, NewMissingInterfaceError(id, err)
		}
		return nil, err
	}
	if !iface.IsAlias() {
		return newAtomic(iface), nil
	}

	if slices.Contains(p.expanding, id) {
		return nil, NewAliasResolutionError(id,
			"alias cycle "+strings.Join(append(slices.Clone(p.expanding), id), " -> "), nil)
	}
	p.expanding = append(p.expanding, id)
	defer func() { p.expanding = p.expanding[:len(p.expanding)-1] }()

	n, err := p.parse(iface.Term)
	if err != nil {
		if IsMissingInterfaceError(err) || IsParseError(err) {
			return nil, NewAliasResolutionError(id, "cannot expand term "+iface.Term, err)
		}
		return nil, err
	}
	return n, nil
}

func (p *parser) split(t string, seps ...byte) ([]string, error) {
	parts, err := term.Split(t, seps...)
	if err != nil {
		return nil, NewParseError(t, "cannot split term", err)
	}
	return parts, nil
}
