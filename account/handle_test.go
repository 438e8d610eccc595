package account

import "testing"

func TestValidHandle(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"@alice", true},
		{"@Bob_42", true},
		{"@_", true},
		{"@1", true},
		{"alice", false},
		{"@", false},
		{"@@alice", false},
		{"@ali-ce", false},
		{"@ali ce", false},
		{"@alice\n", false},
		{"", false},
		{"@алиса", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ValidHandle(tt.input); got != tt.want {
				t.Errorf("ValidHandle(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHandleFromUsername(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"alice", "@alice"},
		{"@alice", "@alice"},
		{" alice ", "@alice"},
		{"", ""},
		{"@", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := HandleFromUsername(tt.input); got != tt.want {
				t.Errorf("HandleFromUsername(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	a := New("@alice")
	if a.ID.IsNil() {
		t.Fatal("expected ID to be set")
	}
	if a.Balance != 0 {
		t.Errorf("expected zero balance, got %d", a.Balance)
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}
