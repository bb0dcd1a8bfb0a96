package main

import (
	"fmt"
	"os"

	"mcard-go/internal/app"
	"mcard-go/internal/card"
	"mcard-go/internal/codec"
	"mcard-go/internal/mcard"

	"github.com/spf13/cobra"
)

// add command
var addCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Store a file, a directory or stdin (-)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		handle, _ := cmd.Flags().GetString("handle")
		algorithm, _ := cmd.Flags().GetString("algorithm")
		target := args[0]

		return withApp("add", func(a *app.App) error {
			ctx := cmd.Context()
			if target == "-" {
				if handle != "" {
					return fmt.Errorf("--handle is not supported with stdin")
				}
				digest, err := a.AddReader(ctx, os.Stdin, algorithm)
				if err != nil {
					return err
				}
				fmt.Println(digest)
				return nil
			}

			info, err := os.Stat(target)
			if err != nil {
				return fmt.Errorf("stat %s: %w", target, err)
			}
			if info.IsDir() {
				if handle != "" {
					return fmt.Errorf("--handle is not supported for directories")
				}
				results, err := a.AddDirectory(ctx, target, recursive, algorithm)
				failed := 0
				for _, r := range results {
					if r.Err != nil {
						failed++
						fmt.Fprintf(os.Stderr, "%s: %v\n", r.Path, r.Err)
						continue
					}
					fmt.Printf("%s  %s\n", r.Digest, r.Path)
				}
				if err != nil {
					return err
				}
				fmt.Printf("Added %d file(s), %d failed\n", len(results)-failed, failed)
				return nil
			}

			var digest string
			if handle != "" {
				digest, err = a.AddFileWithHandle(ctx, target, handle, algorithm)
			} else {
				digest, err = a.AddFile(ctx, target, algorithm)
			}
			if err != nil {
				return err
			}
			fmt.Println(digest)
			return nil
		})
	},
}

// get command
var getCmd = &cobra.Command{
	Use:   "get DIGEST",
	Short: "Print a card's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asText, _ := cmd.Flags().GetBool("text")
		info, _ := cmd.Flags().GetBool("info")

		return withApp("get", func(a *app.App) error {
			c, err := a.Service().Get(args[0])
			if err != nil {
				return err
			}
			if c == nil {
				return fmt.Errorf("card %s not found", args[0])
			}
			return printCard(c, asText, info)
		})
	},
}

func printCard(c *card.Card, asText, info bool) error {
	if info {
		fmt.Printf("Digest:       %s\n", c.Digest())
		fmt.Printf("Algorithm:    %s\n", c.Algorithm())
		fmt.Printf("gTime:        %s\n", c.GTime())
		fmt.Printf("Content type: %s\n", c.ContentType())
		fmt.Printf("Size:         %d\n", c.Size())
		return nil
	}
	if asText {
		text, err := c.Text()
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}
	_, err := os.Stdout.Write(c.Bytes())
	return err
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete DIGEST",
	Short: "Remove a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("delete", func(a *app.App) error {
			deleted, err := a.Service().Delete(args[0])
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Println("No such card.")
				return nil
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

// count command
var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("count", func(a *app.App) error {
			n, err := a.Service().Count()
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		})
	},
}

// clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every card, handle and event",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to clear the store without --yes")
		}
		return withApp("clear", func(a *app.App) error {
			if err := a.Service().Clear(); err != nil {
				return err
			}
			fmt.Println("Store cleared.")
			return nil
		})
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cards, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")

		return withApp("list", func(a *app.App) error {
			p, err := a.Service().Paginate(page, pageSize)
			if err != nil {
				return err
			}
			printPage(p)
			return nil
		})
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Find cards containing QUERY (case sensitive)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fieldName, _ := cmd.Flags().GetString("field")
		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")

		field, err := mcard.ParseSearchField(fieldName)
		if err != nil {
			return err
		}

		return withApp("search", func(a *app.App) error {
			p, err := a.Service().Search(field, args[0], page, pageSize)
			if err != nil {
				return err
			}
			printPage(p)
			return nil
		})
	},
}

func printPage(p *mcard.Page) {
	if p.TotalItems == 0 {
		fmt.Println("No cards found.")
		return
	}
	for _, c := range p.Items {
		fmt.Printf("%s  %s  %-24s  %d\n", c.Digest(), c.GTime(), c.ContentType(), c.Size())
	}
	fmt.Printf("Page %d of %d (%d card(s))\n", p.PageNumber, p.TotalPages, p.TotalItems)
}

// events command
var eventsCmd = &cobra.Command{
	Use:   "events DIGEST",
	Short: "Show duplicate and collision events for a digest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("events", func(a *app.App) error {
			events, err := a.Service().Events(args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No events recorded.")
				return nil
			}
			for _, e := range events {
				detail, err := codec.Diagnose(e.Detail)
				if err != nil {
					return err
				}
				fmt.Printf("%s  %-9s  %s  %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.GTime, detail)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	addCmd.Flags().String("handle", "", "Register a handle for the stored card")
	addCmd.Flags().StringP("algorithm", "a", "", "Hash algorithm (default from config)")

	rootCmd.AddCommand(getCmd)
	getCmd.Flags().Bool("text", false, "Print content as UTF-8 text")
	getCmd.Flags().Bool("info", false, "Print card metadata instead of content")

	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().Bool("yes", false, "Confirm removal of all data")

	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Int("page", 1, "Page number")
	listCmd.Flags().Int("page-size", 10, "Cards per page")

	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().String("field", "any", "Field to search: content, digest, gtime or any")
	searchCmd.Flags().Int("page", 1, "Page number")
	searchCmd.Flags().Int("page-size", 10, "Cards per page")

	rootCmd.AddCommand(eventsCmd)
}
