package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptSecret reads a password without echo when stdin is a terminal,
// falling back to a plain line read for piped input.
func promptSecret(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", label, err)
		}
		return string(secret), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", label, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// terminalPrompter implements lbm.RepairPrompter by asking the operator
// for the raw hosting key on stderr.
type terminalPrompter struct{}

func (terminalPrompter) PromptRawKey(reason string) (string, error) {
	fmt.Fprintf(os.Stderr, "Stored token was rejected (%s).\n", reason)
	return promptSecret("hosting key")
}
