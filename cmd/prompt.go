package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

func prompt(label string, sensitive bool) (string, error) {
	return promptWithOutput(label, sensitive, os.Stderr)
}

func promptWithOutput(label string, sensitive bool, output *os.File) (string, error) {
	fmt.Fprintf(output, "%s: ", label)
	defer fmt.Fprintf(output, "\n")

	if sensitive {
		input, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(input)), nil
	}
	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func keyringPrompt(label string) (string, error) {
	return promptWithOutput(label, true, os.Stderr)
}
