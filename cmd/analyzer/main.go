package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/oisee/ikos/pkg/checker"
	"github.com/oisee/ikos/pkg/config"
	"github.com/oisee/ikos/pkg/interproc"
	"github.com/oisee/ikos/pkg/results"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ikos",
		Short: "Abstract-interpretation static analyzer core",
	}

	var (
		precisionStr  string
		domainStr     string
		mergeCtx      bool
		hwAddrStr     string
		entryPoints   []string
		wideningDelay int
		narrowingCap  int
		explain       bool
	)

	analyzeCmd := &cobra.Command{
		Use:   "analyze [program.json]",
		Short: "Run the interprocedural passes over an AR program and report findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args[0])
			if err != nil {
				return err
			}

			precision, err := config.ParsePrecision(precisionStr)
			if err != nil {
				return err
			}
			domain, err := config.ParseDomain(domainStr)
			if err != nil {
				return err
			}
			hwAddrs, err := config.ParseHardwareAddresses(hwAddrStr)
			if err != nil {
				return err
			}

			cfg := config.Default()
			cfg.Precision = precision
			cfg.Domain = domain
			cfg.MergeCallContexts = mergeCtx
			cfg.HardwareAddresses = hwAddrs
			cfg.WideningDelay = wideningDelay
			cfg.NarrowingCap = narrowingCap
			if len(entryPoints) > 0 {
				cfg.EntryPoints = entryPoints
				prog.EntryPoints = entryPoints
			}

			fmt.Printf("ikos analyzer\n")
			fmt.Printf("  functions:  %d\n", len(prog.Funcs))
			fmt.Printf("  precision:  %s\n", precision)
			fmt.Printf("  domain:     %s\n", domain)
			fmt.Printf("  merge ctx:  %v\n", cfg.MergeCallContexts)
			fmt.Println()

			report := interproc.Analyze(cfg.InterprocOptions(prog))

			results.WriteReport(os.Stdout, report.Findings.Findings())

			counts := report.Findings.CountBySeverity()
			fmt.Printf("\n%d findings (%d errors, %d warnings, %d unreachable)\n",
				report.Findings.Len(), counts[checker.Error], counts[checker.Warning], counts[checker.Unreachable])

			if explain {
				fmt.Println()
				results.WriteDiagnostics(os.Stdout, report.Diagnostics.Entries())
			}

			if counts[checker.Error] > 0 {
				return errors.Errorf("%d findings proved unsafe", counts[checker.Error])
			}
			return nil
		},
	}
	analyzeCmd.Flags().StringVar(&precisionStr, "precision", "memory", "Analysis precision: integer, pointer, or memory")
	analyzeCmd.Flags().StringVar(&domainStr, "domain", "interval", "Numerical domain: interval, dbm, packed-dbm, or gauge")
	analyzeCmd.Flags().BoolVar(&mergeCtx, "merge-call-contexts", true, "Join all calling contexts per callee before checking")
	analyzeCmd.Flags().StringVar(&hwAddrStr, "hardware-addresses", "", "Comma-separated allowlist of fixed address ranges, e.g. 0x1000-0x1FFF")
	analyzeCmd.Flags().StringSliceVar(&entryPoints, "entry-points", nil, "Functions treated as program entries (overrides the AR file's own list)")
	analyzeCmd.Flags().IntVar(&wideningDelay, "widening-delay", 3, "Iterations before widening kicks in")
	analyzeCmd.Flags().IntVar(&narrowingCap, "narrowing-cap", 2, "Bounded iteration cap for narrowing (0 = unbounded)")
	analyzeCmd.Flags().BoolVar(&explain, "explain", false, "Also print the unsoundness diagnostics stream")

	validateCmd := &cobra.Command{
		Use:   "validate [program.json]",
		Short: "Load an AR program and report its shape without analyzing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args[0])
			if err != nil {
				return err
			}
			blocks, stmts := 0, 0
			for _, fn := range prog.Funcs {
				blocks += len(fn.Blocks)
				for _, blk := range fn.Blocks {
					stmts += len(blk.Statements)
				}
			}
			fmt.Printf("%d functions, %d basic blocks, %d statements, %d entry points\n",
				len(prog.Funcs), blocks, stmts, len(prog.EntryPoints))
			return nil
		},
	}

	rootCmd.AddCommand(analyzeCmd, validateCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
