// SPDX-License-Identifier: Apache-2.0

package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the sd-consumer entry point.
var RootCmd = &cobra.Command{
	Use:   "sd-consumer",
	Short: "run the service-discovery consumer state machine",
}

// Execute is the CLI's main entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
