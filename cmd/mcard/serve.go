package main

import (
	"time"

	"mcard-go/internal/app"
	"mcard-go/internal/httpapi"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the store over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		return withApp("serve", func(a *app.App) error {
			if addr == "" {
				addr = a.Config().Server.Addr
			}
			handler := httpapi.NewHandler(a.Service(), a.Builder(), a.Ingester(), a.Logger())
			readTimeout := time.Duration(a.Config().Ingest.ReadTimeoutSeconds) * time.Second
			srv := httpapi.NewServer(handler, readTimeout, a.Logger())
			return srv.ListenAndServe(cmd.Context(), addr)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
}
