package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/gogpu/animnode/binding"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports [asset]",
	Short: "List the ports an asset exposes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path, err := assetArg(cfg, args)
		if err != nil {
			return err
		}
		all, _ := cmd.Flags().GetBool("all")

		s, err := openSession(cmd.Context(), cfg, path, nil)
		if err != nil {
			return err
		}
		defer s.close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTYPE\tDISPLAY NAME")
		for _, p := range s.host.Ports() {
			if !all && binding.IsReserved(p.Name) {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.TypeTag, p.DisplayName)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)

	portsCmd.Flags().BoolP("all", "a", false, "include the reserved ports")
}
