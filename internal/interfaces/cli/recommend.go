package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/topk-planner/internal/application/planning"
	"github.com/turtacn/topk-planner/internal/infrastructure/catalogfile"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/pkg/errors"
)

type recommendOptions struct {
	catalogFile    string
	catalogID      string
	profile        string
	overrides      []string
	budget         float64
	maxItems       int
	maxDuration    float64
	diversityBonus float64
	topK           int
}

func newRecommendCmd() *cobra.Command {
	opts := &recommendOptions{}

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Generate the top-K plans",
		Long: "Generate the K best distinct plans for a catalog.  The catalog comes from\n" +
			"--catalog FILE (YAML or JSON), a stored catalog id, or the built-in sample.",
		Example: "  planner recommend --top-k 3\n" +
			"  planner recommend --catalog gym.yaml --override Boxing=2 --budget 60",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecommend(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.catalogFile, "catalog", "", "catalog file (YAML or JSON)")
	f.StringVar(&opts.catalogID, "catalog-id", "", "stored catalog id (default: planning.default_catalog_id)")
	f.StringVar(&opts.profile, "profile", "", "named preference profile")
	f.StringArrayVar(&opts.overrides, "override", nil, "score override id=score (repeatable)")
	f.Float64Var(&opts.budget, "budget", 0, "maximum total price")
	f.IntVar(&opts.maxItems, "max-items", 0, "maximum number of items per plan")
	f.Float64Var(&opts.maxDuration, "max-duration", 0, "maximum total duration in minutes")
	f.Float64Var(&opts.diversityBonus, "diversity-bonus", 0, "bonus per distinct category used")
	f.IntVar(&opts.topK, "top-k", 0, "number of plans (default: planning.default_top_k)")
	return cmd
}

func runRecommend(cmd *cobra.Command, opts *recommendOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	svc, err := cliCtx.service()
	if err != nil {
		return err
	}

	req, err := opts.request(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := cliCtx.operationContext(cmd)
	defer cancel()

	resp, err := svc.Recommend(ctx, req)
	if err != nil {
		return err
	}
	cliCtx.Logger.Debug("recommendation finished",
		logging.Int("plans", len(resp.Plans)),
		logging.String("termination", string(resp.Termination)),
		logging.Int64("elapsed_ms", resp.ElapsedMS))

	switch cliCtx.OutputFormat {
	case OutputJSON:
		return printJSON(cmd, resp)
	case OutputTable:
		return PrintResult(cmd, planTable(resp))
	default:
		return resp.Render(cmd.OutOrStdout())
	}
}

// request builds the service request.  Limits left unset on the command line
// keep the request defaults.
func (o *recommendOptions) request(cmd *cobra.Command) (*planning.RecommendRequest, error) {
	if o.catalogFile != "" && o.catalogID != "" {
		return nil, errors.InvalidConfig("--catalog and --catalog-id are mutually exclusive")
	}

	req := &planning.RecommendRequest{CatalogID: o.catalogID, Profile: o.profile}
	if o.catalogFile != "" {
		file, err := catalogfile.Load(o.catalogFile)
		if err != nil {
			return nil, err
		}
		req.Items = file.Request.Items
	}

	overrides, err := parseOverrides(o.overrides)
	if err != nil {
		return nil, err
	}
	req.Preferences = overrides

	f := cmd.Flags()
	if f.Changed("budget") {
		req.Constraints.MaxBudget = &o.budget
	}
	if f.Changed("max-items") {
		req.Constraints.MaxItemCount = &o.maxItems
	}
	if f.Changed("max-duration") {
		req.Constraints.MaxTotalDuration = &o.maxDuration
	}
	if f.Changed("diversity-bonus") {
		req.Constraints.DiversityBonusPerCategory = &o.diversityBonus
	}
	if f.Changed("top-k") {
		req.TopK = &o.topK
	}
	return req, nil
}

// parseOverrides turns id=score pairs into a preference map.  A repeated id
// keeps the last value.
func parseOverrides(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		id, raw, ok := strings.Cut(p, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, errors.InvalidConfig("override must be id=score").WithDetail(p)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, errors.InvalidConfig("override score is not a number").WithDetail(p)
		}
		out[id] = score
	}
	return out, nil
}

type recommendTable struct {
	resp *planning.RecommendResponse
}

func planTable(resp *planning.RecommendResponse) recommendTable {
	return recommendTable{resp: resp}
}

func (t recommendTable) TableHeaders() []string {
	return []string{"RANK", "ITEMS", "PRICE", "DURATION", "SATISFACTION", "CATEGORIES", "OBJECTIVE"}
}

func (t recommendTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t.resp.Plans))
	for _, p := range t.resp.Plans {
		rows = append(rows, []string{
			strconv.Itoa(p.Rank),
			strings.Join(p.Items, ","),
			formatNumber(p.TotalPrice),
			formatNumber(p.TotalDuration),
			formatNumber(p.SatisfactionScore),
			strings.Join(p.CategoriesUsed, ","),
			formatNumber(p.ObjectiveValue),
		})
	}
	return rows
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
