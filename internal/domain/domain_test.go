package domain

import (
	"strings"
	"testing"
)

func TestParseRoles(t *testing.T) {
	t.Parallel()

	players, err := ParseRoles("Alice: Responder\n\n  Bob :Analyst  \n")
	if err != nil {
		t.Fatalf("ParseRoles() error = %v", err)
	}
	want := []Player{
		{ID: "alice", Name: "Alice", Role: "Responder"},
		{ID: "bob", Name: "Bob", Role: "Analyst"},
	}
	if len(players) != len(want) {
		t.Fatalf("got %d players, want %d", len(players), len(want))
	}
	for i := range want {
		if players[i] != want[i] {
			t.Errorf("players[%d] = %+v, want %+v", i, players[i], want[i])
		}
	}
	if got := players[0].String(); got != "Alice (Responder)" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseRolesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "  \n", "no role assignments"},
		{"missing colon", "Alice Responder", "line 1"},
		{"empty role", "Alice:", "line 1"},
		{"empty name", ": Analyst", "line 1"},
		{"duplicate", "Alice: A\nalice: B", "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseRoles(tt.input)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("ParseRoles(%q) error = %v, want mention of %q", tt.input, err, tt.want)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Kind{"info": KindInfo, " FEED ": KindFeed, "Action": KindAction} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("shout"); err == nil {
		t.Error("ParseKind(shout) succeeded, want error")
	}
	if !KindFeed.IsWorldTruth() || KindInfo.IsWorldTruth() || KindAction.IsWorldTruth() {
		t.Error("only FEED is world truth")
	}
}

func TestInteractionString(t *testing.T) {
	t.Parallel()

	in := Interaction{Kind: KindAction, Player: Player{Name: "Alice", Role: "Responder"}, Content: "2h recon"}
	if got := in.String(); got != "ACTION from Alice (Responder): 2h recon" {
		t.Errorf("String() = %q", got)
	}
}

func TestQueueRemove(t *testing.T) {
	t.Parallel()

	q := Queue{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	out, removed, err := q.Remove(1)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if removed.ID != "b" || len(out) != 2 || out[0].ID != "a" || out[1].ID != "c" {
		t.Fatalf("Remove(1) = %v, %v", out, removed)
	}
	if q[1].ID != "b" {
		t.Error("Remove mutated the original queue")
	}

	for _, idx := range []int{-1, 3} {
		if _, _, err := q.Remove(idx); err == nil {
			t.Errorf("Remove(%d) succeeded, want error", idx)
		}
	}
}

func TestScenarioStateClone(t *testing.T) {
	t.Parallel()

	orig := ScenarioState{IsActive: true, Messages: []Message{{Role: RoleUser, Content: "seed"}}}
	clone := orig.Clone()
	clone.Messages[0].Content = "changed"
	if orig.Messages[0].Content != "seed" {
		t.Error("Clone shares memory with the original")
	}

	if (ScenarioState{}).Clone().Messages != nil {
		t.Error("Clone of nil messages should stay nil")
	}
}
