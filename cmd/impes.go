/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

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
package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ImpesCmd represents the impes command
var ImpesCmd = &cobra.Command{
	Use:   "impes",
	Short: "Implicit pressure, explicit transport solver",
	Long: `Solves the pressure equation implicitly with the TPFA discretization and
then moves the surface volumes explicitly with the resulting upwind fluxes`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err    error
			icFile string
		)
		if icFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		ip := processInput(icFile)
		ip.Print()
		err = instrument(func() (err error) {
			rep, err := RunImpes(ip, viper.GetBool("verbose"))
			rep.Print()
			return
		})
		if err != nil {
			log.Fatalf("impes run failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(ImpesCmd)
	ImpesCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Grid\n\t- Fluid\n\t- Wells")
}
