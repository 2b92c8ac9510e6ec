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
	"fmt"
	"os"

	perf "github.com/hodgesds/perf-utils"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blackoil",
	Short: "Black-oil reservoir simulator",
	Long: `Black-oil reservoir simulator on Cartesian grids. Runs either the IMPES
pressure/transport splitting or the fully implicit Newton solver on a YAML deck.

Build with "go build -tags netlib" (cgo, OpenBLAS and LAPACKE installed) to route
the dense LU factorization of the "lu" linear solver through netlib BLAS.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.blackoil.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print Newton and step progress")
	rootCmd.PersistentFlags().String("profile", "", "write a pprof profile of the run: cpu or mem")
	rootCmd.PersistentFlags().Bool("perf", false, "count the CPU instructions used by the run (linux only)")
	for _, name := range []string{"verbose", "profile", "perf"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// Search config in home directory with name ".blackoil" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".blackoil")
	}
	viper.SetEnvPrefix("blackoil")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// instrument runs f under the profiler and instruction counter selected by the persistent flags
func instrument(f func() error) (err error) {
	switch viper.GetString("profile") {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	default:
		return fmt.Errorf("unknown profile type %q, use cpu or mem", viper.GetString("profile"))
	}
	if !viper.GetBool("perf") {
		return f()
	}
	var runErr error
	pv, err := perf.CPUInstructions(func() error {
		runErr = f()
		return runErr
	})
	if runErr != nil {
		return runErr
	}
	if err != nil {
		fmt.Printf("instruction count unavailable: %v\n", err)
		return nil
	}
	fmt.Printf("CPU Instructions: %d\n", pv.Value)
	return
}
