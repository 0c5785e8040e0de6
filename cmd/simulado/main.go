// Command simulado takes a simulado from the terminal against the remote API.
//
//	simulado -session 42 -user aluno
//	simulado -session 42 -token "$TOKEN"
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/config"
	"github.com/stemsi/simulado/internal/exam"
	"github.com/stemsi/simulado/internal/gateway"
	"github.com/stemsi/simulado/internal/logger"
	"github.com/stemsi/simulado/internal/model"
	"golang.org/x/term"
)

func main() {
	cfg := config.Load()
	api := flag.String("api", cfg.APIBaseURL, "remote API base URL")
	sessionID := flag.Int("session", 0, "simulado id")
	user := flag.String("user", "", "username (password is prompted)")
	token := flag.String("token", "", "bearer token (prompted when neither -token nor -user is set)")
	verbose := flag.Bool("v", false, "log gateway traffic to stderr")
	flag.Parse()

	if *sessionID <= 0 {
		fmt.Fprintln(os.Stderr, "uso: simulado -session <id> [-user <nome> | -token <token>]")
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(os.Stderr, level, "pretty")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := bufio.NewScanner(os.Stdin)
	client := gateway.New(gateway.Config{BaseURL: *api, Timeout: cfg.APITimeout}, log)

	p, err := authenticate(ctx, client, in, os.Stdout, *user, *token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "! %s\n", gateway.UserMessage(err, err.Error()))
		os.Exit(1)
	}

	if err := run(ctx, client.For(p), *sessionID, in, os.Stdout, log); err != nil {
		fmt.Fprintf(os.Stderr, "! %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, gw exam.Gateway, sessionID int, in *bufio.Scanner, out io.Writer, log zerolog.Logger) error {
	ctrl := exam.NewController(sessionID, gw, exam.Options{
		Log:  log,
		Sink: exam.NewLogSink(log),
	})
	defer ctrl.Close()

	// A failed load is rendered as the alert; the student may retry with r.
	if err := ctrl.Load(ctx); err != nil {
		log.Debug().Err(err).Msg("Initial load failed")
	}

	sh := &shell{ctrl: ctrl, in: in, out: out, color: isTerminal(out)}
	if err := sh.run(ctx); err != nil {
		return err
	}
	// Let in-flight saves land before exiting.
	ctrl.WaitSaves()
	return nil
}

// authenticate resolves the student either by logging in or by checking a
// token with the remote API.
func authenticate(ctx context.Context, client *gateway.Client, in *bufio.Scanner, out io.Writer, user, token string) (model.Principal, error) {
	if user != "" {
		password, err := readSecret(in, out, "Senha: ")
		if err != nil {
			return model.Principal{}, err
		}
		res, err := client.Login(ctx, user, password)
		if err != nil {
			return model.Principal{}, err
		}
		return res.Principal(), nil
	}

	if token == "" {
		var err error
		if token, err = readSecret(in, out, "Token: "); err != nil {
			return model.Principal{}, err
		}
	}
	return client.For(model.Principal{Token: token}).VerifyToken(ctx)
}

// readSecret reads without echo from a terminal, or a plain line otherwise.
func readSecret(in *bufio.Scanner, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(prompt, ": "), err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	if !in.Scan() {
		if err := in.Err(); err != nil {
			return "", err
		}
		return "", errors.New("entrada encerrada")
	}
	return strings.TrimSpace(in.Text()), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
