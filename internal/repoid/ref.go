// Package repoid provides the repository selector type used across the
// codebase: a repository name with an optional owner ("name" or
// "owner/name"). It consolidates the forge's naming rules so config
// validation, CLI flags and the forge client agree on what is valid.
//
// This is a leaf package with zero external dependencies beyond stdlib.
package repoid

import (
	"encoding"
	"fmt"
	"strings"
)

// Forge naming limits.
const (
	maxNameLength  = 100
	maxOwnerLength = 39
)

// Ref identifies a remote repository. The owner is optional: an empty owner
// means "the authenticated account", resolved by the forge client at run
// time. The zero value (Ref{}) represents an absent selector.
type Ref struct {
	owner string
	name  string
}

// New parses and validates a raw selector. Accepted forms are "name" and
// "owner/name". Surrounding whitespace and a trailing ".git" are stripped.
func New(raw string) (Ref, error) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), ".git")
	if s == "" {
		return Ref{}, fmt.Errorf("repoid: empty repository selector")
	}

	owner, name, hasOwner := strings.Cut(s, "/")
	if !hasOwner {
		name, owner = owner, ""
	}

	if hasOwner {
		if err := validateOwner(owner); err != nil {
			return Ref{}, fmt.Errorf("repoid: %q: %w", raw, err)
		}
	}

	if err := validateName(name); err != nil {
		return Ref{}, fmt.Errorf("repoid: %q: %w", raw, err)
	}

	return Ref{owner: owner, name: name}, nil
}

// MustNew is like New but panics on invalid input.
// Use only in tests and initialization code where the value is known-good.
func MustNew(raw string) Ref {
	ref, err := New(raw)
	if err != nil {
		panic(err)
	}

	return ref
}

// FromDirName derives a repository name from a local directory name,
// replacing every character the forge rejects with '-'. Returns the zero
// Ref if nothing usable remains.
func FromDirName(dir string) Ref {
	var b strings.Builder

	for _, r := range dir {
		if isNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}

	name := strings.Trim(b.String(), "-")
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}

	if validateName(name) != nil {
		return Ref{}
	}

	return Ref{name: name}
}

// Owner returns the owner login, or "" when the selector has none.
func (r Ref) Owner() string {
	return r.owner
}

// Name returns the repository name.
func (r Ref) Name() string {
	return r.name
}

// HasOwner reports whether an explicit owner was given.
func (r Ref) HasOwner() bool {
	return r.owner != ""
}

// IsZero reports whether this is the zero-value Ref.
func (r Ref) IsZero() bool {
	return r.name == ""
}

// WithOwner returns a copy of r with the owner replaced.
func (r Ref) WithOwner(owner string) Ref {
	return Ref{owner: owner, name: r.name}
}

// String returns "owner/name", or just "name" when there is no owner.
func (r Ref) String() string {
	if r.owner == "" {
		return r.name
	}

	return r.owner + "/" + r.name
}

// MarshalText implements encoding.TextMarshaler.
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields the
// zero Ref so an unset config key stays unset.
func (r *Ref) UnmarshalText(text []byte) error {
	if strings.TrimSpace(string(text)) == "" {
		*r = Ref{}
		return nil
	}

	parsed, err := New(string(text))
	if err != nil {
		return err
	}

	*r = parsed

	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("repository name is empty")
	}

	if len(name) > maxNameLength {
		return fmt.Errorf("repository name longer than %d characters", maxNameLength)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("repository name %q is reserved", name)
	}

	for _, r := range name {
		if !isNameRune(r) {
			return fmt.Errorf("repository name contains invalid character %q", r)
		}
	}

	return nil
}

func validateOwner(owner string) error {
	if owner == "" {
		return fmt.Errorf("owner is empty")
	}

	if len(owner) > maxOwnerLength {
		return fmt.Errorf("owner longer than %d characters", maxOwnerLength)
	}

	if strings.HasPrefix(owner, "-") || strings.HasSuffix(owner, "-") {
		return fmt.Errorf("owner %q must not start or end with '-'", owner)
	}

	for _, r := range owner {
		if !isASCIIAlnum(r) && r != '-' {
			return fmt.Errorf("owner contains invalid character %q", r)
		}
	}

	return nil
}

func isNameRune(r rune) bool {
	return isASCIIAlnum(r) || r == '-' || r == '_' || r == '.'
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Compile-time interface assertions.
var (
	_ encoding.TextMarshaler   = Ref{}
	_ encoding.TextUnmarshaler = (*Ref)(nil)
	_ fmt.Stringer             = Ref{}
)
