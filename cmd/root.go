package cmd

import (
	"os"

	"github.com/emrgen/wikinote/internal/store"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wikinote",
	Short: "hierarchical wiki store",
	Example: `wikinote serve
wikinote db migrate
wikinote page create -p /docs/intro -c "= Intro =" --user 1
wikinote page get -p /docs/intro
wikinote page edit -p /docs/intro -c "changed" --prior 3 --user 1
wikinote page move -f /docs -t /guide --cluster --admin
wikinote page tree -p /guide
wikinote search -q intro`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&Tenant, "tenant", store.DefaultTenant, "wiki tenant")
	rootCmd.PersistentFlags().Uint64Var(&UserID, "user", 0, "act as the user with this id")
	rootCmd.PersistentFlags().BoolVar(&Admin, "admin", false, "act as an administrator")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
