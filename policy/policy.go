// Package policy checks an extracted tag sequence against a finite-state
// machine description.
//
// A policy names each state with the numeric tag the firmware emits for it,
// the start state, the allowed transitions and the accepting states:
//
//	start  = "IDLE"
//	accept = ["DONE"]
//
//	state "IDLE" {
//	  id   = 1
//	  next = ["RUN"]
//	}
//
// Files ending in .json are read with the JSON variant of the same schema.
package policy

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/errors"
)

// State is one named FSM state.
type State struct {
	Name string
	Next []string
	ID   fsmtrace.StateTag
}

// Policy is a validated FSM description. It is immutable and safe for
// concurrent use.
type Policy struct {
	byName map[string]*State
	byID   map[fsmtrace.StateTag]*State
	accept map[string]bool
	Path   string
	// Start is empty when any first state is allowed.
	Start string
	// Accept is empty when any final state is allowed.
	Accept []string
	States []State
}

type fileRoot struct {
	Start  *string     `hcl:"start,optional"`
	Accept []string    `hcl:"accept,optional"`
	States []*hclState `hcl:"state,block"`
}

type hclState struct {
	Name string   `hcl:"name,label"`
	ID   int64    `hcl:"id"`
	Next []string `hcl:"next,optional"`
}

// Load reads and validates the policy file at path.
func Load(path string) (*Policy, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(path, "read policy", err)
	}
	return Parse(src, path)
}

// Parse decodes src as the policy file filename.
func Parse(src []byte, filename string) (*Policy, error) {
	parser := hclparse.NewParser()

	var (
		file  *hcl.File
		diags hcl.Diagnostics
	)
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		file, diags = parser.ParseJSON(src, filename)
	} else {
		file, diags = parser.ParseHCL(src, filename)
	}
	if diags.HasErrors() {
		return nil, errors.InvalidPolicy(filename, "parse", diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, errors.InvalidPolicy(filename, "decode", diags)
	}
	return build(filename, &root)
}

func build(filename string, root *fileRoot) (*Policy, error) {
	invalid := func(format string, args ...any) error {
		return errors.InvalidPolicy(filename, fmt.Sprintf(format, args...), nil)
	}

	if len(root.States) == 0 {
		return nil, invalid("no state blocks")
	}

	p := &Policy{
		Path:   filename,
		byName: make(map[string]*State, len(root.States)),
		byID:   make(map[fsmtrace.StateTag]*State, len(root.States)),
		accept: make(map[string]bool, len(root.Accept)),
		States: make([]State, 0, len(root.States)),
	}

	for _, s := range root.States {
		if s.ID <= 0 || s.ID > math.MaxUint32 {
			return nil, invalid("state %q: id %d outside 1..%d", s.Name, s.ID, uint32(math.MaxUint32))
		}
		p.States = append(p.States, State{Name: s.Name, ID: fsmtrace.StateTag(s.ID), Next: s.Next})
	}
	for i := range p.States {
		s := &p.States[i]
		if _, dup := p.byName[s.Name]; dup {
			return nil, invalid("duplicate state %q", s.Name)
		}
		if prev, dup := p.byID[s.ID]; dup {
			return nil, invalid("states %q and %q share id %d", prev.Name, s.Name, s.ID)
		}
		p.byName[s.Name] = s
		p.byID[s.ID] = s
	}

	for _, s := range p.States {
		for _, n := range s.Next {
			if _, ok := p.byName[n]; !ok {
				return nil, invalid("state %q: next names undeclared state %q", s.Name, n)
			}
		}
	}
	if root.Start != nil && *root.Start != "" {
		if _, ok := p.byName[*root.Start]; !ok {
			return nil, invalid("start names undeclared state %q", *root.Start)
		}
		p.Start = *root.Start
	}
	for _, a := range root.Accept {
		if _, ok := p.byName[a]; !ok {
			return nil, invalid("accept names undeclared state %q", a)
		}
		p.accept[a] = true
	}
	p.Accept = slices.Clone(root.Accept)
	return p, nil
}

// Lookup returns the state emitting tag.
func (p *Policy) Lookup(tag fsmtrace.StateTag) (State, bool) {
	s, ok := p.byID[tag]
	if !ok {
		return State{}, false
	}
	return *s, true
}

// Name returns the state name for tag, or the tag in hex when the policy
// does not declare it.
func (p *Policy) Name(tag fsmtrace.StateTag) string {
	if s, ok := p.byID[tag]; ok {
		return s.Name
	}
	return tag.String()
}

// Names maps a tag sequence to state names.
func (p *Policy) Names(tags []fsmtrace.StateTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = p.Name(t)
	}
	return out
}
