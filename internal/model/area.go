package model

import "strings"

// KnowledgeArea is one of the four fixed groupings of the question bank.
// Tags the client does not know parse to AreaUnknown, which renders as
// "Área não identificada" in gray.
type KnowledgeArea int

const (
	AreaUnknown KnowledgeArea = iota
	AreaLanguages
	AreaHumanities
	AreaNaturalSciences
	AreaMathematics
)

// KnowledgeAreas lists the known areas in display order.
func KnowledgeAreas() []KnowledgeArea {
	return []KnowledgeArea{AreaLanguages, AreaHumanities, AreaNaturalSciences, AreaMathematics}
}

// ParseKnowledgeArea resolves the API slug. Unrecognised tags map to AreaUnknown.
func ParseKnowledgeArea(tag string) KnowledgeArea {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, a := range KnowledgeAreas() {
		if a.Slug() == tag {
			return a
		}
	}
	return AreaUnknown
}

// Slug is the identifier used on the wire.
func (a KnowledgeArea) Slug() string {
	switch a {
	case AreaLanguages:
		return "linguagens"
	case AreaHumanities:
		return "ciencias_humanas"
	case AreaNaturalSciences:
		return "ciencias_natureza"
	case AreaMathematics:
		return "matematica"
	case AreaUnknown:
		return ""
	}
	return ""
}

// Title is the human-readable area name.
func (a KnowledgeArea) Title() string {
	switch a {
	case AreaLanguages:
		return "Linguagens, Códigos e suas Tecnologias"
	case AreaHumanities:
		return "Ciências Humanas e suas Tecnologias"
	case AreaNaturalSciences:
		return "Ciências da Natureza e suas Tecnologias"
	case AreaMathematics:
		return "Matemática e suas Tecnologias"
	case AreaUnknown:
		return "Área não identificada"
	}
	return "Área não identificada"
}

// ANSIColor is the terminal accent for the area.
func (a KnowledgeArea) ANSIColor() string {
	switch a {
	case AreaLanguages:
		return "\033[34m" // blue
	case AreaHumanities:
		return "\033[32m" // green
	case AreaNaturalSciences:
		return "\033[35m" // purple
	case AreaMathematics:
		return "\033[33m" // orange-ish
	case AreaUnknown:
		return "\033[90m"
	}
	return "\033[90m"
}

func (a KnowledgeArea) MarshalText() ([]byte, error) {
	return []byte(a.Slug()), nil
}

func (a *KnowledgeArea) UnmarshalText(text []byte) error {
	*a = ParseKnowledgeArea(string(text))
	return nil
}
