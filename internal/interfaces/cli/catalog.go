package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/domain/preference"
	"github.com/turtacn/topk-planner/internal/infrastructure/catalogfile"
)

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the named preference profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			svc, err := cliCtx.service()
			if err != nil {
				return err
			}
			return PrintResult(cmd, profileTable(svc.ListProfiles(cmd.Context())))
		},
	}
}

type profileTable []preference.Profile

func (t profileTable) TableHeaders() []string { return []string{"NAME", "DESCRIPTION"} }

func (t profileTable) TableRows() [][]string {
	rows := make([][]string, len(t))
	for i, p := range t {
		rows[i] = []string{p.Name, p.Description}
	}
	return rows
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect catalogs",
	}
	cmd.AddCommand(newCatalogValidateCmd(), newCatalogShowCmd())
	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := catalogfile.Load(args[0])
			if err != nil {
				return err
			}
			c := file.Catalog
			PrintSuccess(cmd, fmt.Sprintf("catalog %q is valid: %d items, categories [%s], timeslots [%s]",
				file.Request.ID, c.Len(), strings.Join(c.Categories(), ", "), strings.Join(c.Timeslots(), ", ")))
			return nil
		},
	}
}

func newCatalogShowCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "show [ID]",
		Short: "Print a stored catalog or a catalog file",
		Long: "Print a catalog.  Without arguments the default catalog is shown; --file\n" +
			"prints a catalog file in normalised form.  Text output is YAML.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			var (
				id, name string
				c        *catalog.Catalog
			)
			switch {
			case file != "":
				f, err := catalogfile.Load(file)
				if err != nil {
					return err
				}
				id, name, c = f.Request.ID, f.Request.Name, f.Catalog
			default:
				svc, err := cliCtx.service()
				if err != nil {
					return err
				}
				id = cliCtx.Config.Planning.DefaultCatalogID
				if len(args) == 1 {
					id = args[0]
				}
				view, err := svc.GetCatalog(cmd.Context(), id)
				if err != nil {
					return err
				}
				if c, err = catalog.NewCatalog(view.Items); err != nil {
					return err
				}
			}

			switch cliCtx.OutputFormat {
			case OutputJSON:
				return printJSON(cmd, map[string]interface{}{"id": id, "items": c.Items()})
			case OutputTable:
				return PrintResult(cmd, itemTable(c.Items()))
			default:
				return catalogfile.Encode(cmd.OutOrStdout(), id, name, c)
			}
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog file to print instead of a stored catalog")
	return cmd
}

type itemTable []catalog.Item

func (t itemTable) TableHeaders() []string {
	return []string{"ID", "PRICE", "DURATION", "TIMESLOT", "CATEGORY", "SCORE"}
}

func (t itemTable) TableRows() [][]string {
	rows := make([][]string, len(t))
	for i, it := range t {
		rows[i] = []string{
			it.ID,
			formatNumber(it.Price),
			formatNumber(it.Duration),
			it.Timeslot,
			it.Category,
			formatNumber(it.BaseScore),
		}
	}
	return rows
}
