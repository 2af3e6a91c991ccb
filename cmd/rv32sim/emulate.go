package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rv32sim/emu"
)

func (a *app) newEmulateCmd() *cobra.Command {
	var (
		prog            programFlags
		maxInstructions uint64
	)

	cmd := &cobra.Command{
		Use:   "emulate <program>",
		Short: "Run a program on the functional reference emulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := prog.load(args[0])
			if err != nil {
				return err
			}

			e := emu.NewEmulator(
				emu.WithStdout(a.stdout),
				emu.WithMemory(emu.NewMemoryOfSize(prog.memSize)),
				emu.WithMaxInstructions(maxInstructions),
			)
			if err := program.LoadInto(e.Memory()); err != nil {
				return err
			}
			e.RegFile().PC = program.EntryPoint

			exitCode, runErr := e.Run()

			a.logger.WithField("exit_code", exitCode).Info("Emulation finished")
			_, err = fmt.Fprintf(a.stdout, "instructions: %d\n", e.InstructionCount())
			if runErr != nil {
				return runErr
			}
			return err
		},
	}

	prog.register(cmd)
	cmd.Flags().Uint64Var(&maxInstructions, "max-instructions", 0,
		"stop after this many instructions (0 = unlimited)")

	return cmd
}
