package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/diag"
	"github.com/wippyai/fsm-trace/policy"
)

func testModel(t *testing.T, tags ...uint32) *inspectModel {
	t.Helper()
	pol, err := policy.Parse([]byte(bootPolicy), "boot.hcl")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tr := &trace{path: "fw.elf", report: diag.NewReport()}
	for i, tag := range tags {
		tr.records = append(tr.records, fsmtrace.RawRecord{Offset: int64(4 * i), Tag: fsmtrace.StateTag(tag)})
	}
	return newInspectModel(tr, pol)
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m *inspectModel, msgs ...tea.Msg) {
	for _, msg := range msgs {
		m.Update(msg)
	}
}

func TestInspectModelStates(t *testing.T) {
	m := testModel(t, 1, 0, 9)
	want := []string{"IDLE", "(sentinel)", "?"}
	for i, r := range m.rows {
		if r.state != want[i] {
			t.Errorf("row %d state = %q, want %q", i, r.state, want[i])
		}
	}
	if got := stateName(nil, 1); got != "-" {
		t.Errorf("stateName without policy = %q", got)
	}
}

func TestInspectModelMove(t *testing.T) {
	m := testModel(t, 1, 2, 3)

	tests := []struct {
		msg  tea.Msg
		want int
	}{
		{keys("j"), 1},
		{tea.KeyMsg{Type: tea.KeyDown}, 2},
		{keys("j"), 2},
		{keys("k"), 1},
		{keys("g"), 0},
		{tea.KeyMsg{Type: tea.KeyUp}, 0},
		{keys("G"), 2},
	}
	for i, tt := range tests {
		send(m, tt.msg)
		if m.selected != tt.want {
			t.Errorf("step %d: selected = %d, want %d", i, m.selected, tt.want)
		}
	}
}

func TestInspectModelPaging(t *testing.T) {
	m := testModel(t, 1, 2, 3, 2, 3)
	send(m, tea.WindowSizeMsg{Width: 80, Height: chromeLines + 2})
	if m.pageSize() != 2 {
		t.Fatalf("pageSize = %d, want 2", m.pageSize())
	}

	send(m, keys("G"))
	if m.selected != 4 || m.offset != 3 {
		t.Errorf("after G: selected %d offset %d", m.selected, m.offset)
	}
	view := m.View()
	if !strings.Contains(view, ">     4") {
		t.Errorf("view does not show the last page:\n%s", view)
	}

	send(m, tea.KeyMsg{Type: tea.KeyPgUp})
	if m.selected != 2 || m.offset != 2 {
		t.Errorf("after pgup: selected %d offset %d", m.selected, m.offset)
	}
}

func TestInspectModelFilter(t *testing.T) {
	m := testModel(t, 1, 2, 3)

	send(m, keys("/"))
	if !m.filter.Focused() {
		t.Fatal("filter not focused after /")
	}
	send(m, keys("run"), tea.KeyMsg{Type: tea.KeyEnter})
	if m.filter.Focused() {
		t.Error("enter should leave the filter")
	}
	if len(m.visible) != 1 || m.rows[m.visible[0]].state != "RUN" {
		t.Errorf("visible = %v", m.visible)
	}
	if !strings.Contains(m.View(), "1/3 records") {
		t.Errorf("view:\n%s", m.View())
	}

	send(m, tea.KeyMsg{Type: tea.KeyEsc})
	if len(m.visible) != 3 || m.filter.Value() != "" {
		t.Errorf("esc did not clear the filter: %v %q", m.visible, m.filter.Value())
	}
}

func TestInspectModelEmptyFilter(t *testing.T) {
	m := testModel(t, 1, 2)
	send(m, keys("/"), keys("zzz"), tea.KeyMsg{Type: tea.KeyEnter})
	if len(m.visible) != 0 {
		t.Fatalf("visible = %v", m.visible)
	}

	send(m, keys("j"), keys("G"), keys("k"))
	if m.selected != 0 || m.offset != 0 {
		t.Errorf("selected %d offset %d on empty list", m.selected, m.offset)
	}
	if !strings.Contains(m.View(), "no matching records") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestInspectModelQuit(t *testing.T) {
	m := testModel(t, 1)
	_, cmd := m.Update(keys("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}

	// q types into a focused filter instead of quitting.
	send(m, keys("/"))
	m.Update(keys("q"))
	if m.filter.Value() != "q" {
		t.Errorf("filter = %q", m.filter.Value())
	}
}
