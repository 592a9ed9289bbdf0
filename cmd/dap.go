// Copyright © 2024 The ELPS authors

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luthersystems/varobj/dapserver"
)

var dapStdio bool

var dapCmd = &cobra.Command{
	Use:   "dap",
	Short: "Serve variable objects over the Debug Adapter Protocol",
	Long: `Start a DAP (Debug Adapter Protocol) server for the debuggee image.

Evaluate requests (watch expressions, hovers) create variable objects and
variables requests expand them. Continue requests resume the debuggee to
its next stop.

Transport modes:
  --port N     Listen for a DAP client on TCP port N (default: 4711)
  --stdio      Use stdin/stdout for DAP communication (for editors that
               launch the debug adapter as a child process)

Examples:
  varobj dap --image prog.yaml               Listen on port 4711
  varobj dap --image prog.yaml --port 9229   Listen on port 9229
  varobj dap --image prog.yaml --stdio       Use stdio transport`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		sess, err := newSession(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer sess.close()

		srv := dapserver.New(sess.engine, sess.target, dapserver.WithLogger(sess.log))
		if dapStdio {
			sess.log.Info("DAP server: using stdio transport")
			return srv.ServeStdio(cmd.Context(), os.Stdin, os.Stdout)
		}
		addr := fmt.Sprintf("localhost:%d", cfg.DAP.Port)
		return srv.ServeTCP(cmd.Context(), addr)
	},
}

func init() {
	rootCmd.AddCommand(dapCmd)

	dapCmd.Flags().Int("port", 4711,
		"TCP port for DAP server (default: 4711)")
	dapCmd.Flags().BoolVar(&dapStdio, "stdio", false,
		"Use stdin/stdout for DAP communication")
	if err := viper.BindPFlag("dap.port", dapCmd.Flags().Lookup("port")); err != nil {
		panic(err)
	}
}
