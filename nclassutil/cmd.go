/*
Copyright © 2024 the nclass authors.
This file is part of nclass.

nclass is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

nclass is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with nclass.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package nclassutil contains the command-line interface of nclass.
package nclassutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/plasmaflow/nclass"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	def := nclass.DefaultConfig()

	// Options are the configuration options available to nclass.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the least severe level of messages that are
              written to standard error (debug, info, warn or error).`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Profile",
			usage: `
              Profile is the path to the TOML file holding the charge
              states of the plasma. It can include environment variables.`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Contours",
			usage: `
              Contours are the paths to the CSV files holding the flux
              surfaces to calculate, one surface per file. They can
              include environment variables.`,
			shorthand:  "c",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the CSV result table is written.`,
			shorthand:  "o",
			defaultVal: "nclass.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), surfaceCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies additional columns that are calculated
              from the result table and written to a separate file. It maps
              column names to expressions of the table variables, for example
              {"Vr":"Gamma / n"}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MuN",
			usage: `
              MuN is the number of velocity grid points used for the
              viscosity integrals.`,
			defaultVal: def.MuN,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MMax",
			usage: `
              MMax is the number of poloidal modes in the Pfirsch-Schlüter
              viscosity.`,
			defaultVal: def.MMax,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "XMin",
			usage: `
              XMin is the lower bound of the normalized velocity grid.`,
			defaultVal: def.XMin,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "XMax",
			usage: `
              XMax is the upper bound of the normalized velocity grid.`,
			defaultVal: def.XMax,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "CoulombLogarithm",
			usage: `
              CoulombLogarithm, if positive, is used for every collision pair
              instead of a calculated value.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OrbitSqueezing",
			usage: `
              OrbitSqueezing requests the orbit-squeezing correction, which
              is not available.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "StrictGradients",
			usage: `
              StrictGradients makes a charge state without gradients an error.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of goroutines used for the viscosity
              integrals of each surface.`,
			defaultVal: def.Workers,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Surface.R0",
			usage: `
              Surface.R0 is the major radius of the circular surface [m].`,
			defaultVal: 3.0,
			flagsets:   []*pflag.FlagSet{surfaceCmd.Flags()},
		},
		{
			name: "Surface.MinorRadius",
			usage: `
              Surface.MinorRadius is the minor radius of the circular surface [m].`,
			defaultVal: 0.5,
			flagsets:   []*pflag.FlagSet{surfaceCmd.Flags()},
		},
		{
			name: "Surface.B0",
			usage: `
              Surface.B0 is the toroidal field on the magnetic axis [T].`,
			defaultVal: 2.5,
			flagsets:   []*pflag.FlagSet{surfaceCmd.Flags()},
		},
		{
			name: "Surface.Q",
			usage: `
              Surface.Q is the safety factor of the circular surface.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{surfaceCmd.Flags()},
		},
		{
			name: "Surface.Psi",
			usage: `
              Surface.Psi is the poloidal flux of the circular surface [Wb].`,
			defaultVal: 0.1,
			flagsets:   []*pflag.FlagSet{surfaceCmd.Flags()},
		},
		{
			name: "Surface.Points",
			usage: `
              Surface.Points is the number of contour samples.`,
			defaultVal: 128,
			flagsets:   []*pflag.FlagSet{surfaceCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("NCLASS")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(surfaceCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("nclass: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "nclass",
	Short: "A neoclassical transport solver.",
	Long: `nclass calculates the neoclassical parallel flows and radial particle and
heat fluxes of every charge state of a multi-species plasma on axisymmetric
flux surfaces. Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'NCLASS_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of nclass.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("nclass v%s\n", nclass.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd calculates the flows on one or more flux surfaces.
var runCmd = &cobra.Command{
	Use:   "run [contour files...]",
	Short: "Calculate neoclassical flows and fluxes.",
	Long: `run calculates the flows and fluxes of the plasma in the Profile file on
each of the flux surfaces given in Contours or as arguments, and writes the
results to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := SolverConfig(Cfg)
		if err != nil {
			return err
		}
		outputVars, err := GetStringMapString("OutputVariables", Cfg)
		if err != nil {
			return err
		}
		contours, err := cast.ToStringSliceE(Cfg.Get("Contours"))
		if err != nil {
			return err
		}
		contours = append(expandStringSlice(contours), args...)
		return Run(context.Background(), cfg.Log,
			Cfg.GetString("Profile"),
			contours,
			os.ExpandEnv(Cfg.GetString("OutputFile")),
			checkOutputVars(outputVars),
			cfg)
	},
	DisableAutoGenTag: true,
}

// surfaceCmd writes a circular flux surface as a contour file.
var surfaceCmd = &cobra.Command{
	Use:   "surface",
	Short: "Create a circular flux-surface contour.",
	Long: `surface writes the contour of a large-aspect-ratio circular flux surface
to OutputFile in the format read by the run command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		n := Cfg.GetInt("Surface.Points")
		if n < 4 {
			return fmt.Errorf("nclass: Surface.Points must be at least 4, got %d", n)
		}
		g := nclass.CircularGeometry(
			Cfg.GetFloat64("Surface.R0"),
			Cfg.GetFloat64("Surface.MinorRadius"),
			Cfg.GetFloat64("Surface.B0"),
			Cfg.GetFloat64("Surface.Q"),
			n)
		f, err := os.Create(os.ExpandEnv(Cfg.GetString("OutputFile")))
		if err != nil {
			return err
		}
		if err := WriteContour(f, Cfg.GetFloat64("Surface.Psi"), g); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
	DisableAutoGenTag: true,
}
