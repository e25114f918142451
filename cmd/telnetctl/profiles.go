package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "list host profiles and devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		catalog, err := cfg.Catalog()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROFILE\tUSERNAME\tPASSWORD\tPROMPT")
		for _, name := range catalog.Names() {
			p, err := catalog.Lookup(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%q\t%q\t%s\n", p.Name, p.UsernamePrompt, p.PasswordPrompt, p.PromptRegex)
		}

		if len(cfg.Devices) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "DEVICE\tHOST\tPROFILE\tUSER")
			for _, d := range cfg.Devices {
				profileName := d.Profile
				if profileName == "" {
					profileName = catalog.ForHost(d.Host)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Host, profileName, d.User)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
