package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/page"
	"github.com/emrgen/wikinote/internal/service"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "page commands",
}

func init() {
	pageCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	pageCmd.AddCommand(createPageCmd())
	pageCmd.AddCommand(getPageCmd())
	pageCmd.AddCommand(editPageCmd())
	pageCmd.AddCommand(movePageCmd())
	pageCmd.AddCommand(deletePageCmd())
	pageCmd.AddCommand(accessPageCmd())
	pageCmd.AddCommand(historyPageCmd())
	pageCmd.AddCommand(treePageCmd())
}

func createPageCmd() *cobra.Command {
	var path string
	var name string
	var content string

	var required = []string{"path"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a page",
		Example: "wikinote page create -p <path> -n <name> -c <content> --user <id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.Service.CreatePage(requestContext(), path, name, content)
			if err != nil {
				return err
			}

			printMutation(m)
			return nil
		},
	}

	command.Flags().StringVarP(&path, "path", "p", "", "page path (required)")
	command.Flags().StringVarP(&name, "name", "n", "", "name of the page, the last path segment by default")
	command.Flags().StringVarP(&content, "content", "c", "", "wiki text of the page")

	command.Flags().SortFlags = false

	return command
}

func getPageCmd() *cobra.Command {
	var path string
	var source bool

	var required = []string{"path"}

	command := &cobra.Command{
		Use:     "get",
		Short:   "get a page",
		Example: "wikinote page get -p <path> --source",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := requestContext()
			view, err := a.Service.GetPage(ctx, path)
			if err != nil {
				return err
			}

			printPages([]*model.Page{view.Page})
			crumbs := make([]string, len(view.Breadcrumbs))
			for i, c := range view.Breadcrumbs {
				crumbs[i] = c.Name
			}
			printField("Breadcrumbs", strings.Join(crumbs, " > "))

			if !source {
				printField("HTML", view.HTML)
				return nil
			}

			rev, err := a.Service.LatestRevision(ctx, path)
			if err != nil {
				return err
			}
			printField("Revision", strconv.FormatUint(rev.ID, 10))
			printField("Source", rev.Text)

			return nil
		},
	}

	command.Flags().StringVarP(&path, "path", "p", "", "page path (required)")
	command.Flags().BoolVarP(&source, "source", "s", false, "print the raw text of the latest revision")

	return command
}

func editPageCmd() *cobra.Command {
	var path string
	var name string
	var content string
	var markup string
	var prior uint64
	var expected int64

	var required = []string{"path"}

	command := &cobra.Command{
		Use:     "edit",
		Short:   "edit a page, creating it when missing",
		Example: "wikinote page edit -p <path> -c <content> --prior <revision-id> --user <id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			req := service.EditRequest{
				Path:            path,
				Name:            name,
				Text:            content,
				Markup:          model.Markup(strings.ToUpper(markup)),
				PriorRevisionID: prior,
			}
			if expected != 0 {
				t := time.Unix(expected, 0)
				req.ExpectedUpdated = &t
			}

			m, err := a.Service.EditPage(requestContext(), req)
			if err != nil {
				return err
			}

			printMutation(m)
			return nil
		},
	}

	command.Flags().StringVarP(&path, "path", "p", "", "page path (required)")
	command.Flags().StringVarP(&name, "name", "n", "", "new name of the page")
	command.Flags().StringVarP(&content, "content", "c", "", "new text of the page")
	command.Flags().StringVarP(&markup, "markup", "m", string(model.MarkupWiki), "markup of the text, wiki or html")
	command.Flags().Uint64Var(&prior, "prior", 0, "revision the edit is based on")
	command.Flags().Int64Var(&expected, "expected-updated", 0, "unix time the page was last updated, checked before writing")

	command.Flags().SortFlags = false

	return command
}

func movePageCmd() *cobra.Command {
	var from string
	var to string
	var cluster bool

	var required = []string{"from", "to"}

	command := &cobra.Command{
		Use:     "move",
		Short:   "move a page, and optionally the pages under it",
		Example: "wikinote page move -f <from> -t <to> --cluster --user <id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.Service.MovePage(requestContext(), from, to, cluster)
			if err != nil {
				return err
			}

			printMutation(m)
			if cluster {
				color.Magenta("pages under %s move when the worker runs\n", from)
			}
			return nil
		},
	}

	command.Flags().StringVarP(&from, "from", "f", "", "current path (required)")
	command.Flags().StringVarP(&to, "to", "t", "", "new path (required)")
	command.Flags().BoolVar(&cluster, "cluster", false, "also move the pages under the path")

	return command
}

func deletePageCmd() *cobra.Command {
	var path string

	var required = []string{"path"}

	command := &cobra.Command{
		Use:   "delete",
		Short: "delete a page, its revisions are kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.Service.DeletePage(requestContext(), path)
			if err != nil {
				return err
			}

			color.Green("page deleted: %s\n", m.Page.Path)
			return nil
		},
	}

	command.Flags().StringVarP(&path, "path", "p", "", "page path (required)")

	return command
}

func accessPageCmd() *cobra.Command {
	var path string
	var policy string

	var required = []string{"path", "policy"}

	command := &cobra.Command{
		Use:     "access",
		Short:   "set the access policy of a page",
		Example: "wikinote page access -p <path> --policy private --user <id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.Service.SetAccess(requestContext(), path, policy)
			if err != nil {
				return err
			}

			printMutation(m)
			return nil
		},
	}

	command.Flags().StringVarP(&path, "path", "p", "", "page path (required)")
	command.Flags().StringVar(&policy, "policy", "", "private, inherit or public (required)")

	return command
}

func historyPageCmd() *cobra.Command {
	var path string

	var required = []string{"path"}

	command := &cobra.Command{
		Use:   "history",
		Short: "list the revisions of a page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			revisions, err := a.Service.History(requestContext(), path)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Markup", "Compression", "Author", "Created"})
			for _, rev := range revisions {
				table.Append([]string{
					strconv.FormatUint(rev.ID, 10),
					string(rev.Markup),
					rev.Compression,
					strconv.FormatUint(rev.AuthorID, 10),
					rev.CreatedAt.Format(time.RFC3339),
				})
			}
			table.Render()

			return nil
		},
	}

	command.Flags().StringVarP(&path, "path", "p", "", "page path (required)")

	return command
}

func treePageCmd() *cobra.Command {
	var path string

	command := &cobra.Command{
		Use:   "tree",
		Short: "list the pages under a path",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			pages, err := a.Service.Tree(requestContext(), path)
			if err != nil {
				return err
			}

			printPages(pages)
			return nil
		},
	}

	command.Flags().StringVarP(&path, "path", "p", "/", "path of the cluster")

	return command
}

func printPages(pages []*model.Page) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Path", "Name", "Access", "Files", "Updated"})
	for _, p := range pages {
		table.Append([]string{
			strconv.FormatUint(p.ID, 10),
			p.Path,
			p.Name,
			string(p.Access),
			strconv.Itoa(p.FileCount),
			p.UpdatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
}

func printMutation(m *page.Mutation) {
	printPages([]*model.Page{m.Page})
	if m.RevisionID != 0 {
		printField("Revision", strconv.FormatUint(m.RevisionID, 10))
	}
	if m.RenderErr != nil {
		color.Yellow("render failed, stored as plain text: %v\n", m.RenderErr)
	}
	if len(m.Scheduled) > 0 {
		printField("Scheduled", strings.Join(m.Jobs(), ", "))
	}
}

func printField(label, value string) {
	color.Set(color.FgCyan)
	fmt.Print(label)
	color.Unset()
	fmt.Printf(": %s\n", value)
}

// checkMissingFlags checks if the required flags are set and returns ok if they are set
func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	var providedFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, required)
		} else {
			value := cmd.Flag(required).Value.String()
			providedFlags = append(providedFlags, fmt.Sprintf("--%s=%s", required, value))
		}
	}

	if len(missingFlags) == 0 {
		return false
	}

	var msg string
	for _, f := range missingFlags {
		msg += fmt.Sprintf("--%s ", f)
	}

	color.Red("missing: %s\n", msg)
	if len(providedFlags) > 0 {
		color.Green("provide: %s\n", strings.Join(providedFlags, " "))
	}

	cmd.Println("")
	_ = cmd.Usage()

	return true
}
