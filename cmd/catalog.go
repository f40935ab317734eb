package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var catalogFilter string

var catalogCmd = &cobra.Command{
	Use:         "catalog",
	Short:       "Inspect the embedded category catalogs",
	Annotations: withMode(modeOffline),
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available catalog languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Language", "Categories", "Prompt"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		prompts := make(map[string]bool)
		for _, l := range appInstance.Prompts.Languages() {
			prompts[l] = true
		}
		for _, lang := range appInstance.Catalogs.Languages() {
			cat, err := appInstance.Catalogs.Get(lang)
			if err != nil {
				return err
			}
			table.Append([]string{lang, strconv.Itoa(cat.Len()), yesNo(prompts[lang])})
		}
		table.Render()
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <language>",
	Short: "List the categories of one catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cat, err := appInstance.Catalogs.Get(strings.ToLower(args[0]))
		if err != nil {
			return err
		}

		entries := cat.Categories(catalogFilter)
		if len(entries) == 0 {
			fmt.Println("No categories found.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Name", "URL"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, e := range entries {
			table.Append([]string{e.ID, e.Name, e.URL})
		}
		table.Render()
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	catalogShowCmd.Flags().StringVarP(&catalogFilter, "filter", "f", "", "only show categories whose name contains this text")
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	rootCmd.AddCommand(catalogCmd)
}
