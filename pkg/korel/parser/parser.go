// Package parser turns korel's boundary syntax into the structures the
// rest of the module consumes: atom.Membership/atom.Relation literals for
// plain tells/asks, and sentence.LogSentence trees for rules.
//
// Grounded on bklooste/simag's kblogic.py parse_sent/make_logic_sent/
// make_function, which used a pyparsing grammar; no parser-combinator
// library appears anywhere in the retrieved pack (see DESIGN.md), so this
// is a hand-written recursive-descent scanner over the small fixed
// grammar, in the same style as other hand-rolled scanners of this kind.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cognicore/korel/pkg/korel/atom"
	"github.com/cognicore/korel/pkg/korel/id"
	"github.com/cognicore/korel/pkg/korel/internalerr"
	"github.com/cognicore/korel/pkg/korel/sentence"
)

// Batch is the parsed result of one tell() call, grouping everything the
// store needs to ingest in order: plain membership/relation facts, plus
// any rule sentences to save.
type Batch struct {
	Memberships []atom.Membership
	Relations   []atom.Relation
	Rules       []*sentence.LogSentence
}

// Query is the parsed result of one ask() call: a sentence to evaluate
// plus the positional variable order substitution args should follow.
type Query struct {
	Sentence *sentence.LogSentence
	VarOrder []string
}

// Parse parses one top-level statement in tell mode. A statement is
// either a bare atom ("professor[$Lucy,u=1]", "<friend[$John,u=1;$Lucy]>")
// or a quantified rule (":vars:x:(professor[x,u=1] |> person[x,u=1])").
func Parse(text string) (Batch, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Batch{}, internalerr.ErrEmptyInput
	}

	p := &parser{src: text}
	varOrder, body, err := p.stripQuantifier(text)
	if err != nil {
		return Batch{}, err
	}
	p.src = body
	p.pos = 0

	if len(varOrder) > 0 || strings.Contains(body, "|>") || strings.Contains(body, "=>") ||
		strings.Contains(body, "<=>") || strings.Contains(body, "&&") || strings.Contains(body, "||") {
		s, err := p.parseSentence(varOrder)
		if err != nil {
			return Batch{}, err
		}
		return Batch{Rules: []*sentence.LogSentence{s}}, nil
	}

	return p.parseFact()
}

// ParseQuery parses one ask() argument. Queries share the same grammar as
// tell statements but are not committed to the store until resolved.
func ParseQuery(text string) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, internalerr.ErrEmptyInput
	}
	p := &parser{src: text}
	varOrder, body, err := p.stripQuantifier(text)
	if err != nil {
		return Query{}, err
	}
	p.src = body
	p.pos = 0

	if len(varOrder) > 0 || strings.ContainsAny(body, "|&") {
		s, err := p.parseSentence(varOrder)
		if err != nil {
			return Query{}, err
		}
		return Query{Sentence: s, VarOrder: varOrder}, nil
	}

	batch, err := p.parseFact()
	if err != nil {
		return Query{}, err
	}
	switch {
	case len(batch.Memberships) == 1:
		return Query{Sentence: &sentence.LogSentence{Start: sentence.NewPredicate(batch.Memberships[0])}}, nil
	case len(batch.Relations) == 1:
		return Query{Sentence: &sentence.LogSentence{Start: sentence.NewRelationPredicate(batch.Relations[0])}}, nil
	default:
		return Query{}, fmt.Errorf("%w: expected a single atom", internalerr.ErrInvalidInput)
	}
}

type parser struct {
	src string
	pos int
}

// stripQuantifier recognizes a leading ":vars:v1,v2:" declaration and
// returns the declared variables plus the remaining text.
func (p *parser) stripQuantifier(text string) ([]string, string, error) {
	if !strings.HasPrefix(text, ":vars:") {
		return nil, text, nil
	}
	rest := text[len(":vars:"):]
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return nil, "", fmt.Errorf("%w: unterminated :vars: declaration", internalerr.ErrInvalidInput)
	}
	varList := rest[:idx]
	body := strings.TrimSpace(rest[idx+1:])
	body = strings.TrimPrefix(body, "(")
	body = strings.TrimSuffix(body, ")")
	var vars []string
	for _, v := range strings.Split(varList, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			vars = append(vars, v)
		}
	}
	return vars, strings.TrimSpace(body), nil
}

// parseFact parses a single grounded or free membership/relation atom and
// wraps it in a Batch.
func (p *parser) parseFact() (Batch, error) {
	text := strings.TrimSpace(p.src)
	if strings.HasPrefix(text, "<") {
		r, err := parseRelationLiteral(text)
		if err != nil {
			return Batch{}, err
		}
		return Batch{Relations: []atom.Relation{r}}, nil
	}
	m, err := parseMembershipLiteral(text)
	if err != nil {
		return Batch{}, err
	}
	return Batch{Memberships: []atom.Membership{m}}, nil
}

// parseMembershipLiteral parses "category[term,u OP val]".
func parseMembershipLiteral(text string) (atom.Membership, error) {
	open := strings.IndexByte(text, '[')
	close := strings.LastIndexByte(text, ']')
	if open < 0 || close < 0 || close < open {
		return atom.Membership{}, fmt.Errorf("%w: malformed membership atom %q", internalerr.ErrInvalidInput, text)
	}
	parent := strings.TrimSpace(text[:open])
	inner := text[open+1 : close]
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return atom.Membership{}, fmt.Errorf("%w: malformed membership atom %q", internalerr.ErrInvalidInput, text)
	}
	term := strings.TrimSpace(parts[0])
	op, val, err := parseUClause(strings.TrimSpace(parts[1]))
	if err != nil {
		return atom.Membership{}, err
	}
	m, err := atom.NewMembership(parent, term, val, op)
	if err != nil {
		return atom.Membership{}, err
	}
	m.Free = !strings.HasPrefix(term, "$")
	return m, nil
}

// parseRelationLiteral parses "<func[obj,u OP val;arg1;arg2...]>".
func parseRelationLiteral(text string) (atom.Relation, error) {
	if !strings.HasPrefix(text, "<") || !strings.HasSuffix(text, ">") {
		return atom.Relation{}, fmt.Errorf("%w: malformed relation atom %q", internalerr.ErrInvalidInput, text)
	}
	body := text[1 : len(text)-1]
	open := strings.IndexByte(body, '[')
	close := strings.LastIndexByte(body, ']')
	if open < 0 || close < 0 || close < open {
		return atom.Relation{}, fmt.Errorf("%w: malformed relation atom %q", internalerr.ErrInvalidInput, text)
	}
	fn := strings.TrimSpace(body[:open])
	inner := body[open+1 : close]
	fields := strings.Split(inner, ";")
	if len(fields) == 0 {
		return atom.Relation{}, fmt.Errorf("%w: relation %q has no arguments", internalerr.ErrInvalidInput, fn)
	}

	args := make([]atom.RelArg, 0, len(fields))
	head := strings.SplitN(fields[0], ",", 2)
	obj := atom.RelArg{Term: strings.TrimSpace(head[0])}
	if len(head) == 2 {
		op, val, err := parseUClause(strings.TrimSpace(head[1]))
		if err != nil {
			return atom.Relation{}, err
		}
		obj.HasValue, obj.Value, obj.Op = true, val, op
	}
	args = append(args, obj)
	for _, f := range fields[1:] {
		args = append(args, atom.RelArg{Term: strings.TrimSpace(f)})
	}
	return atom.NewRelation(fn, args)
}

// parseUClause parses "u OP val" or "u=val" into a comparator and value.
func parseUClause(s string) (atom.Comparator, float64, error) {
	if !strings.HasPrefix(s, "u") {
		return 0, 0, fmt.Errorf("%w: expected u-clause, got %q", internalerr.ErrInvalidInput, s)
	}
	rest := strings.TrimSpace(s[1:])
	if rest == "" {
		return 0, 0, fmt.Errorf("%w: empty u-clause", internalerr.ErrInvalidInput)
	}
	op, err := atom.ParseComparator(rest[:1])
	if err != nil {
		return 0, 0, err
	}
	val, err := strconv.ParseFloat(rest[1:], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid value in %q", internalerr.ErrInvalidInput, s)
	}
	return op, val, nil
}

// parseSentence parses a connective-joined sentence body. It supports the
// five boundary connectives with precedence && > || > {=>,<=>} > |>,
// matching kblogic.py's make_logic_sent nesting order (the indicative
// conditional is always outermost).
func (p *parser) parseSentence(varOrder []string) (*sentence.LogSentence, error) {
	body := strings.TrimSpace(p.src)
	body = strings.TrimPrefix(body, "(")
	body = strings.TrimSuffix(body, ")")

	root, err := splitTopLevel(body, "|>", sentence.ICond)
	if err != nil {
		return nil, err
	}
	s := &sentence.LogSentence{ID: id.New(), Start: root, VarOrder: varOrder, SourceText: p.src}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// connectives in the order they are split, loosest first: |> binds
// loosest, && tightest.
var precedence = []struct {
	token string
	kind  sentence.Connective
}{
	{"|>", sentence.ICond},
	{"<=>", sentence.Equiv},
	{"=>", sentence.Implies},
	{"||", sentence.Or},
	{"&&", sentence.And},
}

// splitTopLevel finds the lowest-precedence connective at depth 0 and
// recurses into both sides; if none of the connective tokens occur, the
// remaining text is parsed as a single predicate.
func splitTopLevel(body, token string, kind sentence.Connective) (*sentence.Particle, error) {
	idx, ok := findTopLevel(body, token)
	if !ok {
		return parseNextPrecedence(body, token)
	}
	left := strings.TrimSpace(body[:idx])
	right := strings.TrimSpace(body[idx+len(token):])
	lp, err := parseOperand(left)
	if err != nil {
		return nil, err
	}
	rp, err := parseOperand(right)
	if err != nil {
		return nil, err
	}
	return sentence.NewConnective(kind, lp, rp), nil
}

// parseNextPrecedence advances to the next connective in the precedence
// table after token, or parses a leaf predicate once the table is
// exhausted.
func parseNextPrecedence(body, token string) (*sentence.Particle, error) {
	for i, entry := range precedence {
		if entry.token == token && i+1 < len(precedence) {
			return splitTopLevel(body, precedence[i+1].token, precedence[i+1].kind)
		}
	}
	return parsePredicate(strings.TrimSpace(body))
}

// parseOperand parses one side of a connective, which may itself be a
// parenthesized sub-sentence or a conjunction of predicates.
func parseOperand(text string) (*sentence.Particle, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "(")
	text = strings.TrimSuffix(text, ")")
	return splitTopLevel(text, "<=>", sentence.Equiv)
}

// findTopLevel finds the first occurrence of token outside of []/()
// nesting, treating an entire "<func[...]>" relation literal as an
// atomic span so its internal '<'/'>' never look like operator chars.
func findTopLevel(body, token string) (int, bool) {
	depth := 0
	i := 0
	for i < len(body) {
		c := body[i]
		switch {
		case c == '(' || c == '[':
			depth++
			i++
			continue
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
			i++
			continue
		case c == '<' && !strings.HasPrefix(body[i:], "<=>"):
			i = skipRelationSpan(body, i)
			continue
		}
		if depth == 0 && i+len(token) <= len(body) && body[i:i+len(token)] == token {
			return i, true
		}
		i++
	}
	return 0, false
}

// skipRelationSpan returns the index just past the closing '>' of a
// relation literal starting at start, tolerating nested '['/']'.
func skipRelationSpan(body string, start int) int {
	depth := 0
	j := start + 1
	for j < len(body) {
		switch body[j] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '>':
			if depth == 0 {
				return j + 1
			}
		}
		j++
	}
	return len(body)
}

// parsePredicate parses a conjunction of one or more bare atoms
// ("bird[x,u=1] && hasWings[x,u=1]" already handled by splitTopLevel's
// recursion into &&; this handles the base case of a single atom, or a
// conjunction left unsplit because it shares the same depth-0 scan).
func parsePredicate(text string) (*sentence.Particle, error) {
	if idx, ok := findTopLevel(text, "&&"); ok {
		left, err := parsePredicate(strings.TrimSpace(text[:idx]))
		if err != nil {
			return nil, err
		}
		right, err := parsePredicate(strings.TrimSpace(text[idx+2:]))
		if err != nil {
			return nil, err
		}
		return sentence.NewConnective(sentence.And, left, right), nil
	}
	if strings.HasPrefix(text, "<") {
		r, err := parseRelationLiteral(text)
		if err != nil {
			return nil, err
		}
		return sentence.NewRelationPredicate(r), nil
	}
	m, err := parseMembershipLiteral(text)
	if err != nil {
		return nil, err
	}
	return sentence.NewPredicate(m), nil
}
