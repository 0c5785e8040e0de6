package model

import (
	"errors"
	"testing"
)

func TestParseChoice(t *testing.T) {
	tests := []struct {
		in      string
		want    ChoiceLabel
		wantErr bool
	}{
		{"A", ChoiceA, false},
		{" e ", ChoiceE, false},
		{"c", ChoiceC, false},
		{"F", "", true},
		{"", "", true},
		{"AB", "", true},
	}
	for _, tt := range tests {
		got, err := ParseChoice(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidChoice) {
				t.Errorf("ParseChoice(%q) err = %v, want ErrInvalidChoice", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseChoice(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestLabelAtIsPositional(t *testing.T) {
	for i, want := range []ChoiceLabel{"A", "B", "C", "D", "E"} {
		got, ok := LabelAt(i)
		if !ok || got != want {
			t.Errorf("LabelAt(%d) = %q, %v", i, got, ok)
		}
		if got.Index() != i {
			t.Errorf("%q.Index() = %d, want %d", got, got.Index(), i)
		}
	}
	if _, ok := LabelAt(5); ok {
		t.Error("LabelAt(5) should be out of range")
	}
	if _, ok := LabelAt(-1); ok {
		t.Error("LabelAt(-1) should be out of range")
	}
}

func TestLabeledChoices(t *testing.T) {
	q := Question{ID: 1, Choices: []string{"um", "dois", "três", "quatro", "cinco"}}
	got := q.LabeledChoices()
	if len(got) != ChoiceCount {
		t.Fatalf("got %d choices", len(got))
	}
	if got[0].Label != ChoiceA || got[0].Text != "um" || got[4].Label != ChoiceE || got[4].Text != "cinco" {
		t.Fatalf("unexpected labels: %+v", got)
	}
}
