package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/typedrest/typedrest/pkg/descriptor"
	"github.com/typedrest/typedrest/pkg/openapi"
)

var describeSpec string

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "List the operations an OpenAPI document declares",
	RunE: func(cmd *cobra.Command, args []string) error {
		descs, err := openapi.Load(describeSpec, nil)
		if err != nil {
			return err
		}

		for _, d := range descs {
			fmt.Printf("%-24s %-7s %s\n", d.Name, d.Method, d.Path)
			for _, p := range d.Params {
				required := ""
				if p.Required || p.Kind == descriptor.KindPath {
					required = " (required)"
				}
				fmt.Printf("    %-8s %s: %s%s\n", p.Kind, p.Name, p.Type, required)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVar(&describeSpec, "spec", "openapi.yaml", "OpenAPI document to inspect")
}
