package model

// Question is read-only for the client; the remote question bank owns it.
// Prompt and Choices carry HTML.
type Question struct {
	ID         int      `json:"id" validate:"gt=0"`
	Area       string   `json:"area_conhecimento"`
	Discipline string   `json:"disciplina"`
	Prompt     string   `json:"enunciado"`
	Choices    []string `json:"alternativas" validate:"len=5"`
}

// LabeledChoice pairs an alternative with its derived label.
type LabeledChoice struct {
	Label ChoiceLabel `json:"label"`
	Text  string      `json:"text"`
}

func (q Question) LabeledChoices() []LabeledChoice {
	out := make([]LabeledChoice, 0, len(q.Choices))
	for i, text := range q.Choices {
		label, ok := LabelAt(i)
		if !ok {
			break
		}
		out = append(out, LabeledChoice{Label: label, Text: text})
	}
	return out
}

func (q Question) KnowledgeArea() KnowledgeArea {
	return ParseKnowledgeArea(q.Area)
}
