package model

import (
	"errors"
	"strings"
)

// ChoiceCount is the fixed number of alternatives every question carries.
const ChoiceCount = 5

// ErrInvalidChoice is returned for anything outside A–E.
var ErrInvalidChoice = errors.New("choice must be one of A, B, C, D, E")

// ChoiceLabel is the positional letter of an alternative. The server never
// sends labels; they are derived from the index in alternativas.
type ChoiceLabel string

const (
	ChoiceA ChoiceLabel = "A"
	ChoiceB ChoiceLabel = "B"
	ChoiceC ChoiceLabel = "C"
	ChoiceD ChoiceLabel = "D"
	ChoiceE ChoiceLabel = "E"
)

var choiceLabels = [ChoiceCount]ChoiceLabel{ChoiceA, ChoiceB, ChoiceC, ChoiceD, ChoiceE}

// ChoiceLabels returns A through E in positional order.
func ChoiceLabels() []ChoiceLabel {
	out := make([]ChoiceLabel, ChoiceCount)
	copy(out, choiceLabels[:])
	return out
}

// LabelAt maps a positional index to its label.
func LabelAt(i int) (ChoiceLabel, bool) {
	if i < 0 || i >= ChoiceCount {
		return "", false
	}
	return choiceLabels[i], true
}

// ParseChoice accepts a label in any case, surrounded by whitespace.
func ParseChoice(s string) (ChoiceLabel, error) {
	c := ChoiceLabel(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrInvalidChoice
	}
	return c, nil
}

func (c ChoiceLabel) Valid() bool {
	return c.Index() >= 0
}

// Index is the positional index of the label, -1 when invalid.
func (c ChoiceLabel) Index() int {
	for i, l := range choiceLabels {
		if l == c {
			return i
		}
	}
	return -1
}
