package models

import "fmt"

// Symbol is one declaration found in a source file.
type Symbol struct {
	Kind string
	Name string
}

// String renders the symbol as "kind: name", the form stored in cache entries.
func (s Symbol) String() string {
	return fmt.Sprintf("%s: %s", s.Kind, s.Name)
}
