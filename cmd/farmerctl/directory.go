package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/spf13/cobra"
)

var orgKind string

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "List and extend the district and organization directory",
}

var directoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List districts and organizations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openBackend(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeStore()

		refs, err := st.LoadReferenceData(cmd.Context())
		if err != nil {
			return err
		}
		return writeDirectory(cmd.OutOrStdout(), refs)
	},
}

var addDistrictCmd = &cobra.Command{
	Use:   "add-district NAME",
	Short: "Add a district, or show the existing one with that name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := directoryName(args[0])
		if err != nil {
			return err
		}
		st, closeStore, err := openBackend(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeStore()

		ref, err := st.AddDistrict(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ref.ID, ref.Name)
		return nil
	},
}

var addOrganizationCmd = &cobra.Command{
	Use:   "add-organization NAME",
	Short: "Add an organization, or show the existing one with that name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := directoryName(args[0])
		if err != nil {
			return err
		}
		st, closeStore, err := openBackend(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeStore()

		ref, err := st.AddOrganization(cmd.Context(), name, orgKind)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ref.ID, ref.Name)
		return nil
	},
}

func init() {
	addOrganizationCmd.Flags().StringVar(&orgKind, "kind", "cooperative", "organization kind, e.g. cooperative, supplier, buyer")

	directoryCmd.AddCommand(directoryListCmd)
	directoryCmd.AddCommand(addDistrictCmd)
	directoryCmd.AddCommand(addOrganizationCmd)
}

func directoryName(arg string) (string, error) {
	name := strings.TrimSpace(arg)
	if name == "" {
		return "", fmt.Errorf("name must not be empty")
	}
	return name, nil
}

func writeDirectory(out io.Writer, refs core.ReferenceData) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tID\tNAME")
	for _, d := range refs.Districts {
		fmt.Fprintf(tw, "district\t%s\t%s\n", d.ID, d.Name)
	}
	for _, o := range refs.Organizations {
		fmt.Fprintf(tw, "organization\t%s\t%s\n", o.ID, o.Name)
	}
	return tw.Flush()
}
