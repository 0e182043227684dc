/*
Copyright 2024 Haven Payments Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/havenpay/haven"
	"github.com/havenpay/haven/config"
	"github.com/havenpay/haven/database"
	"github.com/havenpay/haven/internal/notification"
)

// Haven represents the CLI application, encapsulating the root Cobra command.
type Haven struct {
	cmd *cobra.Command
}

// havenInstance holds the service instance and its configuration, shared
// across subcommands.
type havenInstance struct {
	haven *haven.Haven
	cnf   *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the service before running
// any command.
func preRun(app *havenInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("haven.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newHaven, err := setupHaven(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.haven = newHaven
		app.cnf = cnf

		return nil
	}
}

// setupHaven creates and initializes the service from the configuration,
// connecting to the ledger database and the configured providers.
func setupHaven(cfg *config.Configuration) (*haven.Haven, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newHaven, err := haven.NewHaven(db)
	if err != nil {
		return nil, fmt.Errorf("error creating haven: %v", err)
	}
	return newHaven, nil
}

// NewCLI creates the command-line interface for the application.
func NewCLI() *Haven {
	var configFile string
	b := &havenInstance{}

	var rootCmd = &cobra.Command{
		Use:   "haven",
		Short: "Payment reconciliation service",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./haven.json", "Configuration file for the service")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))

	return &Haven{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during
// execution.
func (w Haven) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
