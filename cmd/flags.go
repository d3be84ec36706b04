package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// choiceValue is a string flag restricted to a fixed set of values.
type choiceValue struct {
	value   string
	choices []string
}

var _ pflag.Value = (*choiceValue)(nil)

func newChoiceValue(def string, choices ...string) *choiceValue {
	return &choiceValue{value: def, choices: choices}
}

func (c *choiceValue) String() string {
	return c.value
}

func (c *choiceValue) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, choice := range c.choices {
		if s == choice {
			c.value = s
			return nil
		}
	}
	return fmt.Errorf("must be one of %s", strings.Join(c.choices, "|"))
}

func (c *choiceValue) Type() string {
	return strings.Join(c.choices, "|")
}

// mustBind binds a viper key to a flag. The flag is always registered by
// the caller, so a failure is a programming error.
func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding %s: %v", key, err))
	}
}

// addWorkspaceFlags registers the scanner filters shared by serve and tree.
func addWorkspaceFlags(flags *pflag.FlagSet) {
	flags.StringSlice("include", nil, "only list files matching these globs (e.g. '*.py')")
	flags.StringSlice("exclude-dir", nil, "directory names to omit (replaces the configured list)")
	flags.Bool("gitignore", false, "honour the root .gitignore")
	flags.Bool("follow-symlinks", false, "descend into symlinked directories")
	flags.Int("max-depth", 0, "stop descending below this depth (0 = unlimited)")
}

// bindWorkspaceFlags binds the flags of addWorkspaceFlags. It runs when a
// command starts so that only the running command's flags are bound.
func bindWorkspaceFlags(flags *pflag.FlagSet) {
	mustBind("workspace.include", flags.Lookup("include"))
	mustBind("workspace.exclude_dirs", flags.Lookup("exclude-dir"))
	mustBind("workspace.respect_gitignore", flags.Lookup("gitignore"))
	mustBind("workspace.follow_symlinks", flags.Lookup("follow-symlinks"))
	mustBind("workspace.max_depth", flags.Lookup("max-depth"))
}
