package hypervisor

import "testing"

func TestModuleRegistryDispatch(t *testing.T) {
	mr := NewModuleRegistry()
	calls := 0
	mr.Register(&Module{
		Name: "echo",
		Commands: map[string]Command{
			"say": {1, 2, func(a []string) Reply { calls++; return OK(a[0]) }},
		},
	})

	r := mr.Dispatch("echo", "say", []string{"hi"})
	if r.Status != StatusOK || len(r.Lines) != 1 || r.Lines[0] != "hi" {
		t.Fatalf("unexpected reply: %+v", r)
	}
	if calls != 1 {
		t.Fatalf("expected handler called once, got %d", calls)
	}

	if r := mr.Dispatch("nope", "say", nil); r.Status != StatusUnknownModule {
		t.Fatalf("expected StatusUnknownModule, got %+v", r)
	}
	if r := mr.Dispatch("echo", "nope", nil); r.Status != StatusUnknownCommand {
		t.Fatalf("expected StatusUnknownCommand, got %+v", r)
	}
	if r := mr.Dispatch("echo", "say", nil); r.Status != StatusBadParamCount {
		t.Fatalf("expected StatusBadParamCount for too few args, got %+v", r)
	}
	if r := mr.Dispatch("echo", "say", []string{"a", "b", "c"}); r.Status != StatusBadParamCount {
		t.Fatalf("expected StatusBadParamCount for too many args, got %+v", r)
	}
}

func TestModuleRegistryNames(t *testing.T) {
	mr := NewModuleRegistry()
	mr.Register(&Module{Name: "bridge", Commands: map[string]Command{"create": {1, 1, func(a []string) Reply { return OK("") }}}})
	mr.Register(&Module{Name: "hypervisor", Commands: map[string]Command{"version": {0, 0, func(a []string) Reply { return OK("") }}}})

	names := mr.ModuleNames()
	if len(names) != 2 || names[0] != "bridge" || names[1] != "hypervisor" {
		t.Fatalf("expected registration order [bridge hypervisor], got %v", names)
	}

	cmds, ok := mr.CommandNames("bridge")
	if !ok || len(cmds) != 1 || cmds[0] != "create" {
		t.Fatalf("unexpected command names: %v ok=%v", cmds, ok)
	}
	if _, ok := mr.CommandNames("nope"); ok {
		t.Fatalf("expected ok=false for unknown module")
	}
}

func TestReplyEncode(t *testing.T) {
	r := OK("created br0")
	if got, want := r.Encode(), "100 created br0\r\n"; got != want {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}

	m := Multi(StatusInfo, "br0", "br1")
	if got, want := m.Encode(), "101-br0\r\n101 br1\r\n"; got != want {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}
}
