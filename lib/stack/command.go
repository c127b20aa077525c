package stack

import (
	"fmt"
	"strings"
)

// Command is a structured startup invocation. Modeling the command as
// {interpreter, script, args} instead of one interpolated shell string
// keeps quoting deterministic.
type Command struct {
	Interpreter string   `json:"interpreter,omitempty"`
	Script      string   `json:"script,omitempty"`
	Args        []Arg    `json:"args,omitempty"`
	Pre         []string `json:"pre,omitempty"`
	Timed       bool     `json:"timed,omitempty"`

	// Shell is a compatibility escape hatch for opaque command strings;
	// it is normalized into `sh -c`. Mutually exclusive with the
	// structured fields.
	Shell string `json:"shell,omitempty"`
}

// Arg is one flag with an optional value.
type Arg struct {
	Flag  string `json:"flag"`
	Value string `json:"value,omitempty"`
}

// Argv renders the container command.
//
// A command with pre-commands, a shell string, or timing is rendered as
// ["sh", "-c", <line>]; a plain structured command is rendered directly
// as its argv with no shell in between.
func (c *Command) Argv() ([]string, error) {
	if c == nil {
		return nil, nil
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	if c.Shell != "" {
		return []string{"sh", "-c", c.Shell}, nil
	}

	argv := []string{c.Interpreter, c.Script}
	for _, a := range c.Args {
		argv = append(argv, a.Flag)
		if a.Value != "" {
			argv = append(argv, a.Value)
		}
	}

	if len(c.Pre) == 0 && !c.Timed {
		return argv, nil
	}

	// Shell form: pre-commands joined with && ahead of the invocation.
	quoted := make([]string, len(argv))
	for i, tok := range argv {
		quoted[i] = shellQuote(tok)
	}
	line := strings.Join(quoted, " ")
	if c.Timed {
		line = "time " + line
	}
	if len(c.Pre) > 0 {
		line = strings.Join(append(append([]string{}, c.Pre...), line), " && ")
	}
	return []string{"sh", "-c", line}, nil
}

// shellQuote single-quotes a token when it contains shell metacharacters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'\\$&|;<>()*?[]#~%!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (c *Command) validate() error {
	if c.Shell != "" {
		if c.Interpreter != "" || c.Script != "" || len(c.Args) > 0 || len(c.Pre) > 0 || c.Timed {
			return fmt.Errorf("command: shell is mutually exclusive with structured fields")
		}
		return nil
	}
	if c.Interpreter == "" {
		return fmt.Errorf("command: interpreter is required")
	}
	if c.Script == "" {
		return fmt.Errorf("command: script is required")
	}
	for i, a := range c.Args {
		if a.Flag == "" {
			return fmt.Errorf("command: args[%d]: flag is required", i)
		}
		if strings.ContainsAny(a.Flag, " \t\"'") || strings.ContainsAny(a.Value, "\"'") {
			return fmt.Errorf("command: args[%d]: flags and values must not require quoting", i)
		}
	}
	return nil
}
