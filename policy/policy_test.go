package policy_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/errors"
	"github.com/wippyai/fsm-trace/policy"
)

const boot = `
start  = "IDLE"
accept = ["DONE", "HALT"]

state "IDLE" {
  id   = 1
  next = ["RUN"]
}

state "RUN" {
  id   = 2
  next = ["RUN", "DONE", "HALT"]
}

state "DONE" {
  id = 3
}

state "HALT" {
  id = 4
}
`

func mustParse(t *testing.T, src, name string) *policy.Policy {
	t.Helper()
	p, err := policy.Parse([]byte(src), name)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func TestParse(t *testing.T) {
	p := mustParse(t, boot, "boot.hcl")
	if p.Start != "IDLE" || len(p.States) != 4 || len(p.Accept) != 2 {
		t.Errorf("got start %q, %d states, accept %v", p.Start, len(p.States), p.Accept)
	}
	s, ok := p.Lookup(2)
	if !ok || s.Name != "RUN" || len(s.Next) != 3 {
		t.Errorf("Lookup(2) = %+v, %v", s, ok)
	}
	if got := p.Name(9); got != "0x00000009" {
		t.Errorf("Name(9) = %q", got)
	}
	if got := strings.Join(p.Names([]fsmtrace.StateTag{1, 2, 3}), " -> "); got != "IDLE -> RUN -> DONE" {
		t.Errorf("Names = %q", got)
	}
}

func TestParseJSON(t *testing.T) {
	src := `{
  "start": "A",
  "accept": ["B"],
  "state": {
    "A": {"id": 10, "next": ["B"]},
    "B": {"id": 11}
  }
}`
	p := mustParse(t, src, "fsm.json")
	if v := p.Check([]fsmtrace.StateTag{10, 11}); v != nil {
		t.Errorf("violations = %v", v)
	}
}

func TestCheck(t *testing.T) {
	p := mustParse(t, boot, "boot.hcl")

	tests := []struct {
		name  string
		tags  []fsmtrace.StateTag
		kinds []policy.ViolationKind
	}{
		{"conforming", []fsmtrace.StateTag{1, 2, 2, 3}, nil},
		{"conforming halt", []fsmtrace.StateTag{1, 2, 4}, nil},
		{"empty", nil, []policy.ViolationKind{policy.ViolationEmptyTrace}},
		{"wrong start", []fsmtrace.StateTag{2, 3}, []policy.ViolationKind{policy.ViolationStartMismatch}},
		{"illegal transition", []fsmtrace.StateTag{1, 3}, []policy.ViolationKind{policy.ViolationIllegalTransition}},
		{"not accepting", []fsmtrace.StateTag{1, 2}, []policy.ViolationKind{policy.ViolationNotAccepting}},
		{"sentinel", []fsmtrace.StateTag{1, 0, 2, 3}, []policy.ViolationKind{policy.ViolationUnknownTag}},
		{"several", []fsmtrace.StateTag{2, 1, 7}, []policy.ViolationKind{
			policy.ViolationStartMismatch,
			policy.ViolationIllegalTransition,
			policy.ViolationUnknownTag,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Check(tt.tags)
			if len(got) != len(tt.kinds) {
				t.Fatalf("got %v, want kinds %v", got, tt.kinds)
			}
			for i, k := range tt.kinds {
				if got[i].Kind != k {
					t.Errorf("violation %d = %s, want %s", i, got[i].Kind, k)
				}
			}
		})
	}
}

func TestViolationDetail(t *testing.T) {
	p := mustParse(t, boot, "boot.hcl")
	v := p.Check([]fsmtrace.StateTag{1, 3})
	if len(v) != 1 {
		t.Fatalf("violations = %v", v)
	}
	if v[0].From != "IDLE" || v[0].To != "DONE" || v[0].Index != 1 {
		t.Errorf("got %+v", v[0])
	}
	want := "illegal transition IDLE -> DONE at index 1, allowed next states: [RUN]"
	if v[0].String() != want {
		t.Errorf("String() = %q, want %q", v[0].String(), want)
	}
}

func TestNoStartOrAccept(t *testing.T) {
	p := mustParse(t, `
state "A" {
  id   = 1
  next = ["B"]
}
state "B" {
  id = 2
}`, "free.hcl")
	if v := p.Check([]fsmtrace.StateTag{2}); v != nil {
		t.Errorf("any start and end should be allowed, got %v", v)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `state "A" {`, "parse"},
		{"no states", `start = "A"`, "no state blocks"},
		{"missing id", `state "A" {}`, "decode"},
		{"sentinel id", `state "A" { id = 0 }`, "outside"},
		{"id too large", `state "A" { id = 4294967296 }`, "outside"},
		{"duplicate name", "state \"A\" { id = 1 }\nstate \"A\" { id = 2 }", "duplicate state"},
		{"duplicate id", "state \"A\" { id = 1 }\nstate \"B\" { id = 1 }", "share id"},
		{"bad next", "state \"A\" {\n  id   = 1\n  next = [\"Z\"]\n}", "undeclared state \"Z\""},
		{"bad start", "start = \"Z\"\nstate \"A\" { id = 1 }", "start names"},
		{"bad accept", "accept = [\"Z\"]\nstate \"A\" { id = 1 }", "accept names"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := policy.Parse([]byte(tt.src), "p.hcl")
			if errors.KindOf(err) != errors.KindInvalidPolicy {
				t.Fatalf("expected invalid_policy, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.hcl")
	if err := os.WriteFile(path, []byte(boot), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := policy.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Path != path {
		t.Errorf("path = %q", p.Path)
	}
	if _, err := policy.Load(path + ".missing"); errors.KindOf(err) != errors.KindIO {
		t.Errorf("expected io error, got %v", err)
	}
}
