// Package auth stores the Postgres password in the OS keychain.
package auth

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	serviceName = "arcat"
	account     = "database-password"
	envVar      = "ARCAT_DB_PASSWORD"
)

// Source names where a password came from.
type Source string

const (
	SourceNone     Source = ""
	SourceKeychain Source = "Keychain"
	SourceEnv      Source = "Environment Variable"
)

var (
	keyringGet    = keyring.Get
	keyringSet    = keyring.Set
	keyringDelete = keyring.Delete
	getenv        = os.Getenv
	readPassword  = term.ReadPassword
	stdinFd       = func() int { return int(os.Stdin.Fd()) }
)

// Password returns the stored password, trying the keychain first and
// then, when allowEnv is set, ARCAT_DB_PASSWORD.
func Password(allowEnv bool) (string, Source) {
	if v, err := keyringGet(serviceName, account); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), SourceKeychain
	}
	if allowEnv {
		if v := strings.TrimSpace(getenv(envVar)); v != "" {
			return v, SourceEnv
		}
	}
	return "", SourceNone
}

func SavePassword(pw string) error {
	pw = strings.TrimSpace(pw)
	if pw == "" {
		return errors.New("password is empty")
	}
	return keyringSet(serviceName, account, pw)
}

// DeletePassword removes the keychain entry; a missing entry is not an error.
func DeletePassword() error {
	if err := keyringDelete(serviceName, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// Stored reports whether the keychain holds a password.
func Stored() bool {
	v, err := keyringGet(serviceName, account)
	return err == nil && v != ""
}

// PromptPassword reads a password from the terminal without echo.
func PromptPassword(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	b, err := readPassword(stdinFd())
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
