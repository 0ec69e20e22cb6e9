package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator for login credentials
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	// readSecret reads a line without echo. Nil falls back to a plain read.
	readSecret func() ([]byte, error)
}

// NewPrompter returns a prompter on stdin/stdout, hiding the password when
// stdin is a terminal.
func NewPrompter() *Prompter {
	p := &Prompter{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		p.readSecret = func() ([]byte, error) { return term.ReadPassword(fd) }
	}
	return p
}

// NewPrompterFrom returns a prompter reading plain lines from in
func NewPrompterFrom(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Credentials asks for the username and password
func (p *Prompter) Credentials() (string, string, error) {
	fmt.Fprint(p.out, "DaWanda user: ")
	user, err := p.readLine()
	if err != nil {
		return "", "", fmt.Errorf("failed to read username: %w", err)
	}

	fmt.Fprint(p.out, "DaWanda password (not shown): ")
	var password string
	if p.readSecret != nil {
		secret, err := p.readSecret()
		fmt.Fprintln(p.out)
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = string(secret)
	} else {
		password, err = p.readLine()
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
	}

	return user, password, nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
