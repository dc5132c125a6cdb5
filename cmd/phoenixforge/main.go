package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/phoenixforge/internal/auditdb"
	"github.com/sigreer/phoenixforge/internal/config"
	"github.com/sigreer/phoenixforge/internal/content"
	"github.com/sigreer/phoenixforge/internal/fat32"
	"github.com/sigreer/phoenixforge/internal/report"
	"github.com/sigreer/phoenixforge/internal/version"
	"github.com/sigreer/phoenixforge/internal/workflow"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "phoenixforge",
	Short: "Boot-media forge for driver-injected, self-verifying installer USBs",
	Long: `phoenixforge builds bootable USB installers for Windows, Linux, and
macOS, layering in driver overlays, custom bootloaders, kext bundles,
and legacy-installer patches, and records every destructive step as a
signed, self-verifying report bundle.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the phoenixforge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version)
	},
}

func newEngine() (*workflow.Engine, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	var db *auditdb.DB
	if cfg.AuditDB.Path != "" {
		db, err = auditdb.New(cfg.AuditDB.Path)
		if err != nil {
			return nil, err
		}
	}
	return workflow.NewEngine(cfg, db), nil
}

func runOptionsFromFlags(cmd *cobra.Command) workflow.RunOptions {
	force, _ := cmd.Flags().GetBool("force")
	token, _ := cmd.Flags().GetString("confirm")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	reportBase, _ := cmd.Flags().GetString("report-base")
	return workflow.RunOptions{
		Force:             force,
		ConfirmationToken: token,
		DryRun:            dryRun,
		ReportBase:        reportBase,
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("force", false, "acknowledge destructive action (required alongside --confirm)")
	cmd.Flags().String("confirm", "", "confirmation token, must start with PHX-")
	cmd.Flags().Bool("dry-run", false, "validate and report without writing to any target")
	cmd.Flags().String("report-base", ".", "directory under which reports/<run_id>/ is written")
}

var runCmd = &cobra.Command{
	Use:   "run <workflow-file>",
	Short: "Run a single workflow definition",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		def, err := content.LoadWorkflowDefinition(args[0])
		if err != nil {
			fail(err)
		}
		engine, err := newEngine()
		if err != nil {
			fail(err)
		}
		result, err := engine.RunDefinition(def, runOptionsFromFlags(cmd))
		if err != nil {
			fail(err)
		}
		fmt.Printf("workflow %s completed: %d step(s), report at %s\n", def.Name, len(result.Steps), result.Parent.Root)
	},
}

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Run a distribution pack of workflow definitions",
}

var packRunCmd = &cobra.Command{
	Use:   "run <manifest-file>",
	Short: "Run every workflow referenced by a pack manifest",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		engine, err := newEngine()
		if err != nil {
			fail(err)
		}
		result, err := engine.RunPack(args[0], runOptionsFromFlags(cmd), engine.Config.SigningKey())
		if err != nil {
			fail(err)
		}
		fmt.Printf("pack completed: %d step(s) across its workflows, report at %s\n", len(result.Steps), result.Parent.Root)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect and verify report bundles",
}

var reportVerifyCmd = &cobra.Command{
	Use:   "verify <report-root>",
	Short: "Verify a report bundle's manifest and optional signature",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fail(err)
		}
		result, err := report.Verify(args[0], cfg.SigningKey())
		if err != nil {
			fail(err)
		}
		if !result.OK {
			fmt.Fprintf(os.Stderr, "verification FAILED: %v\n", result.Mismatches)
			os.Exit(1)
		}
		fmt.Printf("verification OK: %d entries checked\n", result.EntriesChecked)
	},
}

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Low-level volume formatting utilities",
}

var formatFat32Cmd = &cobra.Command{
	Use:   "fat32 <device-path>",
	Short: "Format a raw volume as FAT32",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		size, _ := cmd.Flags().GetInt64("size")
		label, _ := cmd.Flags().GetString("label")
		if size <= 0 {
			fail(fmt.Errorf("--size must be a positive byte count"))
		}
		layout, err := fat32.Format(args[0], uint64(size), label)
		if err != nil {
			fail(err)
		}
		fmt.Printf("formatted %s: %d sectors, %d sectors/cluster, %d sectors/FAT\n",
			args[0], layout.TotalSectors, layout.SectorsPerCluster, layout.SectorsPerFAT)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/phoenixforge/config.yaml)")

	addRunFlags(runCmd)
	addRunFlags(packRunCmd)

	formatFat32Cmd.Flags().Int64("size", 0, "total device size in bytes (required)")
	formatFat32Cmd.Flags().String("label", "", "volume label, uppercased and padded to 11 bytes")

	packCmd.AddCommand(packRunCmd)
	reportCmd.AddCommand(reportVerifyCmd)
	formatCmd.AddCommand(formatFat32Cmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(formatCmd)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
