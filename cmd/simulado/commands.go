package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stemsi/simulado/internal/exam"
	"github.com/stemsi/simulado/internal/gateway"
	"github.com/stemsi/simulado/internal/model"
)

var errQuit = errors.New("quit")

// shell reads commands line by line and applies them to one controller.
type shell struct {
	ctrl  *exam.Controller
	in    *bufio.Scanner
	out   io.Writer
	color bool
}

// confirm asks on the terminal; only "s" or "sim" count as yes.
func (s *shell) confirm(_ context.Context, prompt string) (bool, error) {
	fmt.Fprintf(s.out, "%s [s/N] ", prompt)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return false, err
		}
		return false, io.EOF
	}
	switch strings.ToLower(strings.TrimSpace(s.in.Text())) {
	case "s", "sim":
		return true, nil
	}
	return false, nil
}

func (s *shell) show() {
	renderView(s.out, s.ctrl.View(), s.color)
}

// execute runs one command line. It returns errQuit when the session should
// end and a user-facing error for anything the student should see.
func (s *shell) execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "q", "sair":
		return errQuit
	case "h", "?", "ajuda":
		fmt.Fprintln(s.out, helpText)
		return nil
	case "v":
	case "n":
		err = s.ctrl.Next()
	case "p":
		err = s.ctrl.Previous()
	case "j":
		if len(args) != 1 {
			return errors.New("uso: j <número da questão>")
		}
		n, perr := strconv.Atoi(args[0])
		if perr != nil {
			return errors.New("número de questão inválido")
		}
		err = s.ctrl.JumpTo(n - 1)
	case "a":
		if len(args) != 1 {
			return errors.New("uso: a <A-E>")
		}
		choice, perr := model.ParseChoice(args[0])
		if perr != nil {
			return errors.New("alternativa deve ser A, B, C, D ou E")
		}
		err = s.ctrl.SelectCurrent(choice)
	case "f":
		var redirect string
		redirect, err = s.ctrl.Finalize(ctx, exam.ConfirmFunc(s.confirm))
		if errors.Is(err, exam.ErrNotConfirmed) {
			fmt.Fprintln(s.out, "Finalização cancelada.")
			return nil
		}
		if err == nil {
			fmt.Fprintf(s.out, "Simulado finalizado. Resultado: %s\n", redirect)
			return errQuit
		}
	case "r":
		err = s.ctrl.Retry(ctx)
	default:
		return fmt.Errorf("comando desconhecido %q (h para ajuda)", cmd)
	}

	if err != nil {
		return userError(s.ctrl, err)
	}
	s.show()
	return nil
}

// userError picks the line to print for a failed command.
func userError(ctrl *exam.Controller, err error) error {
	switch {
	case gateway.Kind(err) != nil, errors.Is(err, exam.ErrNoQuestions):
		if alert := ctrl.View().Alert; alert != "" {
			return errors.New(alert)
		}
		return errors.New(gateway.UserMessage(err, model.MsgConnectionError))
	case errors.Is(err, exam.ErrNotActive):
		return errors.New("o simulado não está em andamento")
	case errors.Is(err, exam.ErrAlreadyFinalized):
		return errors.New("o simulado já foi finalizado")
	case errors.Is(err, exam.ErrNotFailed):
		return errors.New("nada para recarregar")
	case errors.Is(err, exam.ErrUnknownQuestion):
		return errors.New("questão não pertence a este simulado")
	}
	return err
}

// run is the read-eval loop. It stops on q, a successful finalize or EOF.
func (s *shell) run(ctx context.Context) error {
	s.show()
	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			return s.in.Err()
		}
		err := s.execute(ctx, s.in.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "! %s\n", err)
		}
	}
}
