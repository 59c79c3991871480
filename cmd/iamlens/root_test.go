package main

import "testing"

func TestRootCommand_RegistersCommands(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"serve", "collect", "export"} {
		if cmd, _, err := rootCmd.Find([]string{name}); err != nil || cmd == nil || cmd.Name() != name {
			t.Fatalf("%s command not registered: cmd=%v err=%v", name, cmd, err)
		}
	}
}
