package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

var (
	ErrEmpty    = errors.New("passphrase: keystore passphrase cannot be empty")
	ErrMismatch = errors.New("passphrase: passphrases do not match")
	ErrNoInput  = errors.New("passphrase: keystore passphrase required and no terminal available")
)

// Source resolves a keystore passphrase once, from an environment variable
// when set or else from a terminal prompt, and caches the result.
type Source struct {
	envVar  string
	confirm bool

	lookupEnv func(string) (string, bool)
	readTerm  func(prompt string) (string, error)
	prompts   io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource reads the passphrase from envVar, falling back to the terminal.
func NewSource(envVar string) *Source {
	s := &Source{
		envVar:    strings.TrimSpace(envVar),
		lookupEnv: os.LookupEnv,
		prompts:   os.Stderr,
	}
	s.readTerm = s.promptTerminal
	return s
}

// NewConfirmedSource is NewSource for new keystores: an interactive
// passphrase is asked for twice and both entries must match.
func NewConfirmedSource(envVar string) *Source {
	s := NewSource(envVar)
	s.confirm = true
	return s
}

func (s *Source) promptTerminal(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if s.envVar != "" {
			return "", fmt.Errorf("%w; set %s", ErrNoInput, s.envVar)
		}
		return "", ErrNoInput
	}
	fmt.Fprint(s.prompts, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(s.prompts)
	if err != nil {
		return "", fmt.Errorf("passphrase: read terminal: %w", err)
	}
	return string(raw), nil
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := s.lookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%w: %s is set but blank", ErrEmpty, s.envVar)
			}
			return value, nil
		}
	}
	value, err := s.readTerm("Enter keystore passphrase: ")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(value) == "" {
		return "", ErrEmpty
	}
	if s.confirm {
		again, err := s.readTerm("Repeat keystore passphrase: ")
		if err != nil {
			return "", err
		}
		if again != value {
			return "", ErrMismatch
		}
	}
	return value, nil
}

// Get returns the passphrase, resolving it on the first call.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}
