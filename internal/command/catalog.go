// ABOUTME: Command catalog: named descriptors with typed params and a perform func.
// ABOUTME: Renders LLM-facing command docs from the registered descriptors.

package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrCommandCollision indicates two descriptors were registered under the
// same name.
var ErrCommandCollision = errors.New("command name collision")

// Param declares one parameter a command accepts. Params are ordered; the
// dispatcher builds the argument list in declaration order.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// PerformFunc executes a command. args holds one value per declared param,
// in declaration order, with nil for params the caller omitted. The
// returned string is the completion message for the action log.
type PerformFunc func(ctx context.Context, args []any) (string, error)

// Descriptor describes one command in the catalog.
type Descriptor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
	Perform     PerformFunc
}

// Catalog holds the fixed set of commands registered at startup.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]Descriptor
	order  []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]Descriptor)}
}

// Register adds a descriptor, failing on a duplicate name.
func (c *Catalog) Register(d Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrCommandCollision, d.Name)
	}
	c.byName[d.Name] = d
	c.order = append(c.order, d.Name)
	return nil
}

// Get returns the descriptor for a name.
func (c *Catalog) Get(name string) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.byName[name]
	return d, ok
}

// List returns all descriptors in registration order, without the perform
// funcs' surrounding context.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Descriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// typeTranslations maps domain-specific param types to the primitive names
// shown in command docs.
var typeTranslations = map[string]string{
	"float":     "number",
	"int":       "number",
	"BlockName": "string",
	"ItemName":  "string",
	"boolean":   "bool",
}

// Docs renders the human/LLM-readable command documentation used to fill
// the $COMMAND_DOCS prompt placeholder.
func (c *Catalog) Docs() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.order) == 0 {
		return "No available commands. You can only respond in text."
	}

	var b strings.Builder
	for _, name := range c.order {
		d := c.byName[name]
		b.WriteString("\n" + d.Name + ": " + d.Description)
		b.WriteString("\n\tParams:")
		if len(d.Params) == 0 {
			b.WriteString(" No parameters required.")
			continue
		}
		for _, p := range d.Params {
			typ := p.Type
			if translated, ok := typeTranslations[typ]; ok {
				typ = translated
			}
			fmt.Fprintf(&b, "\n- %s: (%s) %s", p.Name, typ, p.Description)
		}
	}
	return b.String()
}
