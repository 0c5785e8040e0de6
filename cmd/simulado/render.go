package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/stemsi/simulado/internal/exam"
	"github.com/stemsi/simulado/internal/model"
	"golang.org/x/net/html"
)

const ansiReset = "\033[0m"

// promptText flattens the HTML statement into plain terminal text.
// Paragraph and line-break tags become newlines.
func promptText(src string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapse(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "br", "p", "div", "li":
				b.WriteByte('\n')
			}
		}
	}
}

// collapse trims each line and drops runs of blank lines.
func collapse(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// sideIndex renders the question grid: answered questions carry a dot and the
// current one is bracketed.
func sideIndex(v exam.View) string {
	var b strings.Builder
	for i, st := range v.Statuses {
		mark := " "
		if st == exam.StatusAnswered {
			mark = "•"
		}
		if i == v.Index {
			fmt.Fprintf(&b, "[%d%s]", i+1, mark)
		} else {
			fmt.Fprintf(&b, " %d%s ", i+1, mark)
		}
	}
	return b.String()
}

func renderView(w io.Writer, v exam.View, color bool) {
	switch v.State {
	case exam.StateLoading:
		fmt.Fprintln(w, "Carregando simulado...")
		return
	case exam.StateError:
		fmt.Fprintf(w, "! %s\n", v.Alert)
		fmt.Fprintln(w, "Digite r para tentar novamente ou q para sair.")
		return
	case exam.StateFinalizing:
		fmt.Fprintln(w, "Finalizando...")
		return
	case exam.StateFinalized:
		fmt.Fprintf(w, "Simulado finalizado. Resultado: %s\n", v.Redirect)
		return
	}

	fmt.Fprintf(w, "Simulado #%d", v.SessionID)
	if len(v.Areas) > 0 {
		fmt.Fprintf(w, " · %s", strings.Join(v.Areas, ", "))
	}
	fmt.Fprintf(w, "\nTempo %s · Respondidas %d/%d (%d%%)\n", v.Clock, v.Answered, v.Total, v.Percent)
	fmt.Fprintln(w, sideIndex(v))
	if v.Alert != "" {
		fmt.Fprintf(w, "! %s\n", v.Alert)
	}

	q := v.Question
	if q == nil {
		return
	}
	area := q.AreaTitle
	if color {
		area = model.ParseKnowledgeArea(q.Area).ANSIColor() + area + ansiReset
	}
	fmt.Fprintf(w, "\nQuestão %d de %d · %s · %s\n\n", q.Number, v.Total, area, q.Discipline)
	fmt.Fprintln(w, promptText(q.Prompt))
	fmt.Fprintln(w)
	for _, c := range q.Choices {
		mark := "( )"
		if c.Label == q.Selected {
			mark = "(x)"
		}
		fmt.Fprintf(w, "  %s %s) %s\n", mark, c.Label, promptText(c.Text))
	}
}

const helpText = `Comandos:
  n        próxima questão
  p        questão anterior
  j <n>    ir para a questão n
  a <A-E>  responder a questão atual
  v        mostrar a questão atual
  f        finalizar o simulado
  r        recarregar após erro
  q        sair`
