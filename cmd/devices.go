package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available input devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		fmt.Println("Input devices:")
		for i, dev := range svc.InputDevices() {
			marker := ""
			if dev.IsDefault {
				marker = " (default)"
			}
			fmt.Printf("  %d. %s%s\n", i+1, dev.Name, marker)
		}
		return nil
	},
}
