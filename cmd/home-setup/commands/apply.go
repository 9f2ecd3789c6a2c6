package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"home-setup/internal/application"
	"home-setup/internal/infra/floorplan"
)

// apply -f <answers.yaml>: run the whole wizard from a file and submit it.
func applyCmd() *cobra.Command {
	var answersPath string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Fill the setup wizard from an answers file and submit it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(answersPath)
			if err != nil {
				return fmt.Errorf("reading answers: %w", err)
			}
			var answers application.Answers
			if err := yaml.Unmarshal(data, &answers); err != nil {
				return fmt.Errorf("parsing answers: %w", err)
			}

			wizard, _ := newWizard(ctx)

			// Floorplan paths are relative to the answers file.
			base := filepath.Dir(answersPath)
			load := func(ref string) (application.FloorplanFile, error) {
				if !filepath.IsAbs(ref) {
					ref = filepath.Join(base, ref)
				}
				return floorplan.FromPath(ref)
			}

			if err := wizard.Fill(ctx, answers, load); err != nil {
				return err
			}

			snap := wizard.Snapshot()
			if dryRun {
				out, err := yaml.Marshal(snap)
				if err != nil {
					return err
				}
				fmt.Print(string(out))
				return nil
			}

			receipt, err := wizard.Submit(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("setup submitted: %d devices, plan %s", len(snap.Devices), snap.PaymentType)
			if receipt.ID != 0 {
				fmt.Printf(", id %d", receipt.ID)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVarP(&answersPath, "file", "f", "", "answers YAML file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and print the wizard state without submitting")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
