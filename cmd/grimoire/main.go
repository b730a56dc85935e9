// Command grimoire loads and runs compiled Grimoire bytecode (.gvc)
// artifacts. The compiler front-end that produces those artifacts is out
// of scope here (spec.md §1); this driver only ever reads bytecode, never
// source.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	"github.com/Zenohate/grimoire/pkg/bytecode"
	"github.com/Zenohate/grimoire/pkg/vm"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "grimoire",
		Usage:   "run and inspect compiled Grimoire bytecode (.gvc) artifacts",
		Version: version,
		Commands: []*cli.Command{
			runCommand(),
			disasmCommand(),
			debugCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func loadBytecodeFile(path string) (*bytecode.Bytecode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bytecode.Decode(f)
}

// stdioLibrary is the one primitive library the CLI registers on the
// host's behalf, giving otherwise host-less scripts a console. A real
// embedder registers its own libraries instead (spec.md §6 add_library).
func stdioLibrary() *vm.Library {
	lib := vm.NewLibrary("io")
	lib.Register("print", func(call vm.Call) error {
		fmt.Print(call.GetString(0))
		return nil
	})
	lib.Register("println", func(call vm.Call) error {
		fmt.Println(call.GetString(0))
		return nil
	})
	return lib
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "load a .gvc artifact and run it to completion",
		ArgsUsage: "<file.gvc>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return cli.Exit("no file specified", 1)
			}
			bc, err := loadBytecodeFile(c.Args().First())
			if err != nil {
				return err
			}

			machine := vm.New()
			machine.AddLibrary(stdioLibrary())
			if err := machine.Load(bc); err != nil {
				return err
			}
			machine.Spawn()

			for machine.HasCoroutines() {
				if err := machine.Process(); err != nil {
					return err
				}
			}

			if machine.IsPanicking() {
				fmt.Fprintln(os.Stderr, color.RedString("panic: %s", machine.PanicError().Error()))
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func disasmCommand() *cli.Command {
	return &cli.Command{
		Name:      "disasm",
		Usage:     "print a human-readable disassembly of a .gvc artifact",
		ArgsUsage: "<file.gvc>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return cli.Exit("no file specified", 1)
			}
			bc, err := loadBytecodeFile(c.Args().First())
			if err != nil {
				return err
			}
			printDisassembly(bc)
			return nil
		},
	}
}

func printDisassembly(bc *bytecode.Bytecode) {
	opName := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Println("Constants:")
	for i, v := range bc.IConsts {
		fmt.Printf("  i[%d] = %d\n", i, v)
	}
	for i, v := range bc.FConsts {
		fmt.Printf("  f[%d] = %g\n", i, v)
	}
	for i, v := range bc.SConsts {
		fmt.Printf("  s[%d] = %q\n", i, v)
	}

	if len(bc.Globals) > 0 {
		fmt.Println("\nGlobals:")
		for _, g := range bc.Globals {
			fmt.Printf("  %s: %s (index %d, mask 0x%02x)\n", g.Name, g.Kind, g.Index, g.TypeMask)
		}
	}

	fmt.Println("\nInstructions:")
	for pc := range bc.Opcodes {
		instr, _ := bc.Decoded(pc)
		switch {
		case bytecode.IsSignedOperand(instr.Op):
			fmt.Printf("  %4d: %-20s %+d\n", pc, opName(instr.Op), instr.Operand)
		case instr.V1 != 0 || instr.V2 != 0:
			fmt.Printf("  %4d: %-20s v1=%d v2=%d\n", pc, opName(instr.Op), instr.V1, instr.V2)
		default:
			fmt.Printf("  %4d: %-20s %d\n", pc, opName(instr.Op), instr.Operand)
		}
	}
}

func debugCommand() *cli.Command {
	return &cli.Command{
		Name:      "debug",
		Usage:     "step through a .gvc artifact one scheduling round at a time",
		ArgsUsage: "<file.gvc>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return cli.Exit("no file specified", 1)
			}
			bc, err := loadBytecodeFile(c.Args().First())
			if err != nil {
				return err
			}
			return runDebugger(bc)
		},
	}
}

// runDebugger is a round-granularity REPL: the VM's only externally
// visible step boundary is one process() round (spec.md §5), so "step"
// here advances every ready coroutine to its next suspension point rather
// than a single instruction.
func runDebugger(bc *bytecode.Bytecode) error {
	machine := vm.New()
	machine.AddLibrary(stdioLibrary())
	if err := machine.Load(bc); err != nil {
		return err
	}
	machine.Spawn()

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	fmt.Println("grimoire step debugger — commands: step, continue, rounds, quit")
	for machine.HasCoroutines() {
		input, err := term.Prompt("(grimoire) ")
		if err != nil {
			break
		}
		term.AppendHistory(input)

		switch input {
		case "step", "s":
			if err := machine.Process(); err != nil {
				return err
			}
			fmt.Printf("round %d complete\n", machine.Rounds())
		case "continue", "c":
			for machine.HasCoroutines() {
				if err := machine.Process(); err != nil {
					return err
				}
			}
		case "rounds", "r":
			fmt.Println(machine.Rounds())
		case "quit", "q":
			return nil
		default:
			fmt.Println("commands: step, continue, rounds, quit")
		}
	}

	if machine.IsPanicking() {
		fmt.Println(color.RedString("panic: %s", machine.PanicError().Error()))
	}
	return nil
}
