// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "varobj",
	Short: "Variable objects over a simulated debuggee",
	Long: `varobj serves GDB/MI style variable objects for a simulated debuggee
described by a YAML image. Variable objects are named views of expressions
that expand into children following their types and report only what
changed each time the program stops.

Getting started:
  varobj mi --image prog.yaml       Serve MI requests on stdin/stdout
  varobj console --image prog.yaml  Interactive MI console
  varobj dap --image prog.yaml      Serve the Debug Adapter Protocol

Configuration is read from $HOME/.varobj.yaml (or --config) and from
environment variables prefixed with VAROBJ_, e.g. VAROBJ_LOG_LEVEL=debug.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.varobj.yaml)")
	flags.String("image", "", "YAML image of the debuggee")
	flags.String("log-level", "warning", "log level: debug, info, warning or error")
	flags.String("print-values", "1",
		`default print values: 0 or "--no-values", 1 or "--all-values", 2 or "--simple-values"`)
	flags.Duration("eval-latency", 0, "simulated latency of each expression evaluation")
	flags.String("trace", "none", `span backend: "none", "otel" or "opencensus"`)
	bindFlag("image", "image")
	bindFlag("log.level", "log-level")
	bindFlag("print.values", "print-values")
	bindFlag("eval.latency", "eval-latency")
	bindFlag("trace.backend", "trace")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			// Search config in home directory with name ".varobj" (without extension).
			viper.AddConfigPath(home)
			viper.SetConfigName(".varobj")
		}
	}

	viper.SetEnvPrefix("VAROBJ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
