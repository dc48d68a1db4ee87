package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/spf13/cobra"
)

var templateOut string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the blank import workbook",
	Long: `Template writes the import workbook: a Farmers sheet, a Farms sheet and a
Validation Lists sheet whose dropdowns carry the current directory.

Example:
  farmerctl template -o farmers.xlsx
  farmerctl template -o - > farmers.xlsx`,
	RunE: runTemplate,
}

func init() {
	templateCmd.Flags().StringVarP(&templateOut, "output", "o", "farmer-import-template.xlsx", `output file, or "-" for stdout`)
}

func runTemplate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, closeStore, err := openBackend(ctx, false)
	if err != nil {
		return err
	}
	defer closeStore()

	refs, err := st.LoadReferenceData(ctx)
	if err != nil {
		return err
	}

	if templateOut == "-" {
		return core.WriteTemplate(cmd.OutOrStdout(), refs)
	}

	f, err := os.Create(templateOut)
	if err != nil {
		return err
	}
	if err := core.WriteTemplate(f, refs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", templateOut)
	return nil
}
