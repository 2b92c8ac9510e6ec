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

// FICmd represents the fully implicit command
var FICmd = &cobra.Command{
	Use:   "fi",
	Short: "Fully implicit single phase solver",
	Long: `Solves the single phase pressure equation fully implicitly with Newton's
method, cutting the time step in half when a step fails to converge`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err    error
			icFile string
		)
		if icFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		ip := processInput(icFile)
		if maxCuts, _ := cmd.Flags().GetInt("maxCuts"); maxCuts >= 0 {
			ip.MaxCuts = &maxCuts
		}
		ip.Print()
		err = instrument(func() (err error) {
			rep, err := RunFullyImplicit(ip, viper.GetBool("verbose"))
			rep.Print()
			return
		})
		if err != nil {
			log.Fatalf("fully implicit run failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(FICmd)
	FICmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Grid\n\t- Fluid\n\t- Newton")
	FICmd.Flags().IntP("maxCuts", "c", -1, "maximum number of time step halvings, overrides the input file when not negative")
}
