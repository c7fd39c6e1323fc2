// Package naming defines how simulated components are named.
//
// Names are hierarchical. Elements are separated by dots, start with a
// capital letter, and carry their index in square brackets, as in
// "Sim.NUCA[3]".
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NamedBase is a base implementation of Named.
type NamedBase struct {
	name string
}

// Name returns the name.
func (b NamedBase) Name() string {
	return b.name
}

// MakeNamedBase creates a NamedBase. It panics if the name is not valid.
func MakeNamedBase(name string) NamedBase {
	NameMustBeValid(name)
	return NamedBase{name: name}
}

var elementPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*(\[[0-9]+\])*$`)

// NameMustBeValid panics if the name does not follow the naming convention.
func NameMustBeValid(name string) {
	for _, elem := range strings.Split(name, ".") {
		if !elementPattern.MatchString(elem) {
			panic(fmt.Sprintf("name %q is not valid: bad element %q",
				name, elem))
		}
	}
}

// BuildName joins a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex joins a parent name and an indexed element name.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
