package policy

import (
	"fmt"
	"slices"
	"strings"

	fsmtrace "github.com/wippyai/fsm-trace"
)

// ViolationKind names a way a trace breaks its policy.
type ViolationKind string

const (
	ViolationEmptyTrace        ViolationKind = "empty_trace"
	ViolationStartMismatch     ViolationKind = "start_mismatch"
	ViolationUnknownTag        ViolationKind = "unknown_tag"
	ViolationIllegalTransition ViolationKind = "illegal_transition"
	ViolationNotAccepting      ViolationKind = "not_accepting"
)

// Violation is one policy failure. Index is the position in the trace of
// the offending tag, or -1 for an empty trace.
type Violation struct {
	Kind    ViolationKind
	From    string
	To      string
	Allowed []string
	Index   int
	Tag     fsmtrace.StateTag
}

func (v Violation) String() string {
	switch v.Kind {
	case ViolationEmptyTrace:
		return "trace holds no state tags"
	case ViolationStartMismatch:
		return fmt.Sprintf("first state %s does not match start state %s", v.To, v.From)
	case ViolationUnknownTag:
		return fmt.Sprintf("tag %s at index %d names no declared state", v.Tag, v.Index)
	case ViolationIllegalTransition:
		return fmt.Sprintf("illegal transition %s -> %s at index %d, allowed next states: [%s]",
			v.From, v.To, v.Index, strings.Join(v.Allowed, ", "))
	case ViolationNotAccepting:
		return fmt.Sprintf("final state %s is not in accept set [%s]", v.To, strings.Join(v.Allowed, ", "))
	}
	return string(v.Kind)
}

// Check evaluates tags against the policy and returns every violation in
// trace order; nil means the trace conforms. Transitions into or out of an
// undeclared tag are reported once, as unknown_tag.
func (p *Policy) Check(tags []fsmtrace.StateTag) []Violation {
	if len(tags) == 0 {
		return []Violation{{Kind: ViolationEmptyTrace, Index: -1}}
	}

	var out []Violation
	for i, t := range tags {
		if _, ok := p.byID[t]; !ok {
			out = append(out, Violation{Kind: ViolationUnknownTag, Index: i, Tag: t})
		}
	}

	if first, ok := p.byID[tags[0]]; ok && p.Start != "" && first.Name != p.Start {
		out = append(out, Violation{
			Kind:  ViolationStartMismatch,
			Index: 0,
			Tag:   tags[0],
			From:  p.Start,
			To:    first.Name,
		})
	}

	for i := 1; i < len(tags); i++ {
		prev, ok1 := p.byID[tags[i-1]]
		curr, ok2 := p.byID[tags[i]]
		if !ok1 || !ok2 {
			continue
		}
		if !slices.Contains(prev.Next, curr.Name) {
			out = append(out, Violation{
				Kind:    ViolationIllegalTransition,
				Index:   i,
				Tag:     tags[i],
				From:    prev.Name,
				To:      curr.Name,
				Allowed: slices.Clone(prev.Next),
			})
		}
	}

	lastIdx := len(tags) - 1
	if last, ok := p.byID[tags[lastIdx]]; ok && len(p.accept) > 0 && !p.accept[last.Name] {
		allowed := slices.Clone(p.Accept)
		slices.Sort(allowed)
		out = append(out, Violation{
			Kind:    ViolationNotAccepting,
			Index:   lastIdx,
			Tag:     tags[lastIdx],
			To:      last.Name,
			Allowed: allowed,
		})
	}

	slices.SortStableFunc(out, func(a, b Violation) int { return a.Index - b.Index })
	return out
}
