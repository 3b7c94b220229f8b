// SPDX-License-Identifier: Apache-2.0

package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the sd-provider entry point.
var RootCmd = &cobra.Command{
	Use:   "sd-provider",
	Short: "run the service-discovery provider and eventgroup state machines",
}

// Execute is the CLI's main entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
