// Package prompt asks yes/no questions on the terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

type Confirmer struct {
	In            io.Reader
	Out           io.Writer
	IsInteractive func() bool
}

func DefaultConfirmer() Confirmer {
	return Confirmer{
		In:  os.Stdin,
		Out: os.Stderr,
		IsInteractive: func() bool {
			info, err := os.Stdin.Stat()
			if err != nil {
				return false
			}
			return info.Mode()&os.ModeCharDevice != 0
		},
	}
}

// Confirm asks question and reports a "y" or "yes" answer. With force it
// answers yes without asking; without a terminal it fails.
func (c Confirmer) Confirm(question string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	if c.IsInteractive == nil || !c.IsInteractive() {
		return false, fmt.Errorf("cannot ask %q without a terminal: pass --yes", question)
	}
	if c.Out != nil {
		fmt.Fprintf(c.Out, "%s (y/n): ", question)
	}
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// ConfirmAbandon adapts Confirm to the parent-switch question. It answers
// synchronously.
func (c Confirmer) ConfirmAbandon(force bool, errOut func(error)) func(message string, proceed func(bool)) {
	return func(message string, proceed func(bool)) {
		ok, err := c.Confirm(message, force)
		if err != nil && errOut != nil {
			errOut(err)
		}
		proceed(ok)
	}
}
