// Package address implements the colon-separated path syntax that identifies
// projects and tasks, e.g. ":sub:helloWorld". The root project is ":".
package address

import (
	"fmt"
	"regexp"
	"strings"
)

// Separator joins address elements.
const Separator = ":"

// elementRegex validates a single address element.
var elementRegex = regexp.MustCompile(`^[A-Za-z0-9_.@-]+$`)

// Address is an absolute path of named elements below the root project.
// The zero value is the root address.
type Address struct {
	elements []string
}

// Root is the address of the root project.
var Root = Address{}

// Parse parses an absolute address string. The string must start with the
// separator; ":" alone denotes the root.
func Parse(raw string) (Address, error) {
	if raw == "" {
		return Address{}, fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(raw, Separator) {
		return Address{}, fmt.Errorf("address %q is not absolute, must start with %q", raw, Separator)
	}
	if raw == Separator {
		return Root, nil
	}

	parts := strings.Split(raw[1:], Separator)
	elements := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return Address{}, fmt.Errorf("address %q contains an empty element", raw)
		}
		if !elementRegex.MatchString(part) {
			return Address{}, fmt.Errorf("address %q contains invalid element %q", raw, part)
		}
		elements = append(elements, part)
	}
	return Address{elements: elements}, nil
}

// MustParse parses an address and panics on error. For constants and tests.
func MustParse(raw string) Address {
	addr, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return addr
}

// ValidName reports whether name is usable as a single address element.
func ValidName(name string) bool {
	return elementRegex.MatchString(name)
}

// String serializes the address into its canonical form.
func (a Address) String() string {
	if len(a.elements) == 0 {
		return Separator
	}
	return Separator + strings.Join(a.elements, Separator)
}

// Append returns a new address with name appended as the last element.
func (a Address) Append(name string) Address {
	elements := make([]string, len(a.elements), len(a.elements)+1)
	copy(elements, a.elements)
	return Address{elements: append(elements, name)}
}

// Parent returns the address with the last element removed. Calling Parent
// on the root returns the root.
func (a Address) Parent() Address {
	if len(a.elements) == 0 {
		return Root
	}
	return Address{elements: a.elements[:len(a.elements)-1]}
}

// Name returns the last element, or "" for the root.
func (a Address) Name() string {
	if len(a.elements) == 0 {
		return ""
	}
	return a.elements[len(a.elements)-1]
}

// Elements returns a copy of the element path.
func (a Address) Elements() []string {
	out := make([]string, len(a.elements))
	copy(out, a.elements)
	return out
}

// IsRoot reports whether the address denotes the root project.
func (a Address) IsRoot() bool {
	return len(a.elements) == 0
}

// Equal reports element-wise equality.
func (a Address) Equal(other Address) bool {
	if len(a.elements) != len(other.elements) {
		return false
	}
	for i, el := range a.elements {
		if other.elements[i] != el {
			return false
		}
	}
	return true
}
