// Copyright © 2024 The ELPS authors

package cmd

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luthersystems/varobj/mi"
)

var miCmd = &cobra.Command{
	Use:   "mi",
	Short: "Serve MI requests on stdin and stdout",
	Long: `Serve variable object requests, one per line, on stdin and write MI
result records to stdout. When stdin is a terminal the interactive console
is started instead.

Example session:
  -var-create arr * myArray
  ^done,name="arr",numchild="3",type="int [3]"
  -var-list-children --all-values arr
  -exec-continue
  -var-update *`,
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
		srv := mi.NewServer(sess.engine, sess.target,
			mi.WithLogger(sess.log),
			mi.WithPrintValues(sess.printValues))
		if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			return runConsole(cmd.Context(), srv, sess.engine, os.Stdin, os.Stdout)
		}
		return srv.Serve(cmd.Context(), os.Stdin, os.Stdout)
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive MI console",
	Long: `Start an interactive console that accepts MI requests with line
editing, history and completion of command and variable object names.

Console commands:
  help    List the MI commands
  quit    End the session`,
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
		srv := mi.NewServer(sess.engine, sess.target,
			mi.WithLogger(sess.log),
			mi.WithPrintValues(sess.printValues))
		return runConsole(cmd.Context(), srv, sess.engine, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(miCmd)
	rootCmd.AddCommand(consoleCmd)
}
