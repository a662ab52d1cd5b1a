// ABOUTME: Built-in command catalog entries for fleet monitoring and control.
// ABOUTME: Mirrors the dashboard command set the monitor prompter can invoke.

package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/minefleet/fleet-hub/internal/registry"
)

// Env gives built-in commands access to the live fleet. The hub implements
// this against its channel bindings.
type Env interface {
	Records() []registry.Record
	MessageAgent(name, message string) error
	StartAgent(name string) error
	StopAgent(name string) error
}

// RegisterBuiltins adds the standard fleet commands to the catalog.
func RegisterBuiltins(c *Catalog, env Env) error {
	descriptors := []Descriptor{
		{
			Name:        "!overviewOfBots",
			Description: "return a summary of the overall status of all the bots.",
			Params:      nil,
			Perform: func(ctx context.Context, args []any) (string, error) {
				return overview(env.Records()), nil
			},
		},
		{
			Name:        "!sendMessage",
			Description: "send a chat message to a named bot.",
			Params: []Param{
				{Name: "agent_name", Type: "string", Description: "name of the bot to message"},
				{Name: "message", Type: "string", Description: "the message to deliver"},
			},
			Perform: func(ctx context.Context, args []any) (string, error) {
				name, ok := args[0].(string)
				if !ok {
					return "", fmt.Errorf("agent_name must be a string")
				}
				message, _ := args[1].(string)
				if err := env.MessageAgent(name, message); err != nil {
					return "", err
				}
				return fmt.Sprintf("message sent to %s", name), nil
			},
		},
		{
			Name:        "!startAgent",
			Description: "start a stopped bot by name.",
			Params: []Param{
				{Name: "agent_name", Type: "string", Description: "name of the bot to start"},
			},
			Perform: func(ctx context.Context, args []any) (string, error) {
				name, ok := args[0].(string)
				if !ok {
					return "", fmt.Errorf("agent_name must be a string")
				}
				if err := env.StartAgent(name); err != nil {
					return "", err
				}
				return fmt.Sprintf("start signal sent to %s", name), nil
			},
		},
		{
			Name:        "!stopAgent",
			Description: "stop a running bot by name.",
			Params: []Param{
				{Name: "agent_name", Type: "string", Description: "name of the bot to stop"},
			},
			Perform: func(ctx context.Context, args []any) (string, error) {
				name, ok := args[0].(string)
				if !ok {
					return "", fmt.Errorf("agent_name must be a string")
				}
				if err := env.StopAgent(name); err != nil {
					return "", err
				}
				return fmt.Sprintf("stop signal sent to %s", name), nil
			},
		},
	}

	for _, d := range descriptors {
		if err := c.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func overview(records []registry.Record) string {
	if len(records) == 0 {
		return "no bots registered"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d bots registered", len(records))
	for _, r := range records {
		fmt.Fprintf(&b, "; %s: %s", r.Name, r.Status)
		if r.Snapshot != nil && r.Snapshot.Status != "unavailable" {
			fmt.Fprintf(&b, " (health %.0f/%.0f, %s)", r.Snapshot.Health, r.Snapshot.MaxHealth, r.Snapshot.Dimension)
		}
	}
	return b.String()
}
