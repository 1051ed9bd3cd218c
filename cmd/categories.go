package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gokturkhatay/smartinbox/internal/classify"
)

func newCategoriesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the inbox category taxonomy",
		Long: `Print every inbox category with its description, display color and the
number of exemplar phrases backing it. The primary category carries no
exemplars; it is the fallback when no topical category scores high enough.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				type categoryInfo struct {
					Name        string `json:"name"`
					Description string `json:"description"`
					Color       string `json:"color"`
					Exemplars   int    `json:"exemplars"`
					Fallback    bool   `json:"fallback,omitempty"`
				}
				list := make([]categoryInfo, 0, len(classify.AllCategories()))
				for _, c := range classify.AllCategories() {
					list = append(list, categoryInfo{
						Name:        c.String(),
						Description: c.Description(),
						Color:       c.Color(),
						Exemplars:   len(c.Exemplars()),
						Fallback:    !c.Scored(),
					})
				}
				return printJSON(cmd.OutOrStdout(), list)
			}

			w := cmd.OutOrStdout()
			for _, c := range classify.AllCategories() {
				suffix := fmt.Sprintf("%d exemplars", len(c.Exemplars()))
				if !c.Scored() {
					suffix = "fallback"
				}
				fmt.Fprintf(w, "%-12s %s  (%s, %s)\n", c, c.Description(), c.Color(), suffix)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the taxonomy as JSON")
	return cmd
}
