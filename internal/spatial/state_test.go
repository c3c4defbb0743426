package spatial

import "testing"

func TestStateApply(t *testing.T) {
	tests := []struct {
		name     string
		requests []State
		want     State
	}{
		{"none", nil, Unmodified},
		{"visible", []State{Visible}, Visible},
		{"modify after visible", []State{Visible, Modify}, Modify},
		{"visible after modify", []State{Modify, Visible}, Modify},
		{"unmodified never downgrades", []State{Modify, Unmodified}, Modify},
		{"delete wins", []State{Visible, Delete, Modify}, Delete},
		{"delete is terminal", []State{Delete, Unmodified, Visible, Modify}, Delete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Unmodified
			for _, r := range tt.requests {
				s = s.Apply(r)
			}
			if s != tt.want {
				t.Errorf("state = %v, want %v", s, tt.want)
			}
		})
	}
}

// Every sequence of requests ends at the maximum requested state
func TestStateApplyIsMax(t *testing.T) {
	all := []State{Unmodified, Visible, Modify, Delete}
	for _, a := range all {
		for _, b := range all {
			for _, c := range all {
				got := Unmodified.Apply(a).Apply(b).Apply(c)
				want := max(a, b, c)
				if got != want {
					t.Errorf("Apply(%v, %v, %v) = %v, want %v", a, b, c, got, want)
				}
			}
		}
	}
}

func TestStateAction(t *testing.T) {
	if got := Visible.Action(); got != "" {
		t.Errorf("Visible.Action() = %q, want empty", got)
	}
	if got := Modify.Action(); got != "modify" {
		t.Errorf("Modify.Action() = %q, want modify", got)
	}
	if got := Delete.Action(); got != "delete" {
		t.Errorf("Delete.Action() = %q, want delete", got)
	}
}
