package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/client"
	"golang.org/x/term"
)

// Environment variables read by client commands.
const (
	envServer = "SWITCHYARD_SERVER"
	envToken  = "SWITCHYARD_TOKEN"
)

const defaultServer = "http://localhost:5001"

// remote holds the connection flags shared by client commands.
type remote struct {
	server string
	token  string
}

func (r *remote) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.server, "server", "", "Switchyard server URL (default $"+envServer+" or "+defaultServer+")")
	cmd.Flags().StringVar(&r.token, "token", "", "bearer token (default $"+envToken+")")
}

// client returns an API client. Authenticated commands fail early without a
// token.
func (r *remote) client(needToken bool) (*client.Client, error) {
	server := firstNonEmpty(r.server, os.Getenv(envServer), defaultServer)
	token := firstNonEmpty(r.token, os.Getenv(envToken))
	if needToken && token == "" {
		return nil, fmt.Errorf("no token: run `sy login` and export %s, or pass --token", envToken)
	}
	return client.New(server, token), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// readPassword reads a password without echo when stdin is a terminal, or a
// single line otherwise.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", fmt.Errorf("read password: no input")
	}
	return strings.TrimRight(scanner.Text(), "\r"), nil
}

func newRegisterCmd() *cobra.Command {
	var (
		r     remote
		name  string
		email string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, &r, name, email)
		},
	}

	r.addFlags(cmd)
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	return cmd
}

func runRegister(cmd *cobra.Command, r *remote, name, email string) error {
	c, err := r.client(false)
	if err != nil {
		return err
	}
	password, err := readPassword(cmd, "Password: ")
	if err != nil {
		return err
	}
	s, err := c.Register(cmd.Context(), name, email, password)
	if err != nil {
		return err
	}
	printSession(cmd, s)
	return nil
}

func newLoginCmd() *cobra.Command {
	var (
		r     remote
		email string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a bearer token",
		Long:  "Prompts for the password and prints a token to export as " + envToken + ".",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, &r, email)
		},
	}

	r.addFlags(cmd)
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.MarkFlagRequired("email")
	return cmd
}

func runLogin(cmd *cobra.Command, r *remote, email string) error {
	c, err := r.client(false)
	if err != nil {
		return err
	}
	password, err := readPassword(cmd, "Password: ")
	if err != nil {
		return err
	}
	s, err := c.Login(cmd.Context(), email, password)
	if err != nil {
		return err
	}
	printSession(cmd, s)
	return nil
}

func printSession(cmd *cobra.Command, s *client.Session) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Logged in as %s <%s>\n", s.User.Name, s.User.Email)
	fmt.Fprintf(out, "Token expires %s\n\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "export %s=%s\n", envToken, s.Token)
}
