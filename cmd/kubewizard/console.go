package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kubewizard/kubewizard/internal/memory"
)

// consoleUser keys the console session's conversation memory.
const consoleUser = "console"

const consoleHelp = `commands:
  /history   show the stored conversation
  /clear     forget the stored conversation
  /help      show this help
  /exit      quit`

// runConsole is the interactive loop: slash commands are handled locally,
// everything else goes to the agent.
func runConsole(ctx context.Context, rt *runtime) error {
	fmt.Println("kubewizard console. /help for commands, /exit to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runSlashCommand(ctx, rt, line); quit {
				return nil
			}
			continue
		}

		history, err := rt.store.Read(ctx, consoleUser, 0)
		if err != nil {
			rt.log.Error().Err(err).Msg("read memory failed")
			continue
		}
		res, err := rt.agent.Run(ctx, line, history)
		if err != nil {
			rt.log.Error().Err(err).Msg("run failed")
			continue
		}
		for _, step := range res.Trace {
			if step.Capability != "" {
				fmt.Printf("  [%s] %s\n", step.Capability, step.Input)
			}
		}
		fmt.Printf("kubewizard> %s\n", res.Output)

		if err := rt.store.Append(ctx, consoleUser, memory.RoleUser, line); err != nil {
			rt.log.Warn().Err(err).Msg("persist user turn failed")
		}
		if err := rt.store.Append(ctx, consoleUser, memory.RoleAssistant, res.Output); err != nil {
			rt.log.Warn().Err(err).Msg("persist reply failed")
		}
	}
}

func runSlashCommand(ctx context.Context, rt *runtime, line string) (quit bool) {
	switch line {
	case "/exit", "/quit":
		return true
	case "/help":
		fmt.Println(consoleHelp)
	case "/clear":
		if err := rt.store.Clear(ctx, consoleUser); err != nil {
			rt.log.Error().Err(err).Msg("clear memory failed")
			break
		}
		fmt.Println("conversation cleared")
	case "/history":
		history, err := rt.store.Read(ctx, consoleUser, 0)
		if err != nil {
			rt.log.Error().Err(err).Msg("read memory failed")
			break
		}
		if len(history) == 0 {
			fmt.Println("no stored conversation")
			break
		}
		for _, m := range history {
			fmt.Printf("%s: %s\n", m.Role, m.Content)
		}
	default:
		fmt.Printf("unknown command %s\n%s\n", line, consoleHelp)
	}
	return false
}
