package main

import (
	"fmt"

	"mcard-go/internal/app"

	"github.com/spf13/cobra"
)

// handle command
var handleCmd = &cobra.Command{
	Use:   "handle",
	Short: "Manage handles (mutable names for cards)",
}

var handleUpdateCmd = &cobra.Command{
	Use:   "update NAME PATH",
	Short: "Store PATH and point NAME at it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		algorithm, _ := cmd.Flags().GetString("algorithm")
		return withApp("handle update", func(a *app.App) error {
			digest, err := a.UpdateHandleFromFile(cmd.Context(), args[0], args[1], algorithm)
			if err != nil {
				return err
			}
			fmt.Println(digest)
			return nil
		})
	},
}

var handleResolveCmd = &cobra.Command{
	Use:   "resolve NAME",
	Short: "Print the digest NAME points at",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("handle resolve", func(a *app.App) error {
			digest, err := a.Service().ResolveHandle(args[0])
			if err != nil {
				return err
			}
			if digest == "" {
				return fmt.Errorf("handle %s not found", args[0])
			}
			fmt.Println(digest)
			return nil
		})
	},
}

var handleGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Print the content of the card NAME points at",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asText, _ := cmd.Flags().GetBool("text")
		info, _ := cmd.Flags().GetBool("info")
		return withApp("handle get", func(a *app.App) error {
			c, err := a.Service().GetByHandle(args[0])
			if err != nil {
				return err
			}
			if c == nil {
				return fmt.Errorf("no card for handle %s", args[0])
			}
			return printCard(c, asText, info)
		})
	},
}

var handleHistoryCmd = &cobra.Command{
	Use:   "history NAME",
	Short: "Show the digests NAME pointed at before, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("handle history", func(a *app.App) error {
			history, err := a.Service().HandleHistory(args[0])
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Println("No history.")
				return nil
			}
			for _, h := range history {
				fmt.Printf("%s  %s\n", h.ChangedAt.Format("2006-01-02 15:04:05.000000"), h.PreviousDigest)
			}
			return nil
		})
	},
}

var handleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List handles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("handle list", func(a *app.App) error {
			handles, err := a.Service().Handles()
			if err != nil {
				return err
			}
			if len(handles) == 0 {
				fmt.Println("No handles.")
				return nil
			}
			for _, h := range handles {
				fmt.Printf("%-32s  %s  %s\n", h.Name, h.CurrentDigest, h.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		})
	},
}

var handleRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a handle and its history; cards are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("handle remove", func(a *app.App) error {
			removed, err := a.Service().RemoveHandle(args[0])
			if err != nil {
				return err
			}
			if !removed {
				fmt.Println("No such handle.")
				return nil
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		})
	},
}

func init() {
	handleCmd.AddCommand(handleUpdateCmd)
	handleUpdateCmd.Flags().StringP("algorithm", "a", "", "Hash algorithm (default from config)")
	handleCmd.AddCommand(handleResolveCmd)
	handleCmd.AddCommand(handleGetCmd)
	handleGetCmd.Flags().Bool("text", false, "Print content as UTF-8 text")
	handleGetCmd.Flags().Bool("info", false, "Print card metadata instead of content")
	handleCmd.AddCommand(handleHistoryCmd)
	handleCmd.AddCommand(handleListCmd)
	handleCmd.AddCommand(handleRemoveCmd)
	rootCmd.AddCommand(handleCmd)
}
