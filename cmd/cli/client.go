package main

import (
	"github.com/sguter90/soilmaestro/pkg/api"
	"github.com/spf13/cobra"
)

var serverURL string

// addServerFlag registers --server on a command talking to a running server
func addServerFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "SoilMaestro server URL (default http://localhost:$SERVER_PORT)")
}

// apiClient returns a client for --server, falling back to the local port
func apiClient(cmd *cobra.Command) *api.Client {
	url := serverURL
	if url == "" {
		url = "http://localhost:" + appFrom(cmd).cfg.ServerPort
	}
	return api.NewClient(url)
}
