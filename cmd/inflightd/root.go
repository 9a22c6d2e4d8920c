package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/evan-idocoding/inflight/internal/config"
)

type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCommand(version string) *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "inflightd",
		Short: "HTTP daemon with live introspection of in-flight work",
		Long: `inflightd registers every request as a task, lets handlers fan out subtasks,
and exposes the live task tree under an admin prefix (/-/tasks by default).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Init(a.v, a.cfgFile)
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./inflightd.yaml or /etc/inflight/inflightd.yaml)")

	root.AddCommand(
		newServeCommand(a),
		newDumpCommand(a),
		newVersionCommand(version),
	)
	return root
}

// bindFlags binds flags to config keys (key -> flag name). A bound flag overrides file and
// environment values only when set on the command line.
func (a *app) bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := a.v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic("inflightd: bind flag " + name + ": " + err.Error())
		}
	}
}
