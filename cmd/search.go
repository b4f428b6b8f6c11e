package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/provider-directory/internal/search"
)

var searchFlags struct {
	query      string
	county     string
	state      string
	minRating  float64
	minReviews int
	lat        float64
	lon        float64
	radius     float64
	unit       string
	fields     []string
	licensed   bool
	available  bool
	minScore   float64
	limit      int
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query canonical entities",
	Long:  "Composes the given filters into one retrieval. With --query, results are ranked by the hybrid keyword and embedding score.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		q, err := buildSearchQuery()
		if err != nil {
			return err
		}

		pool, searcher, err := initSearcher(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		results, err := searcher.Search(ctx, q)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			cmd.Println("no matches")
			return nil
		}
		for _, r := range results {
			cmd.Print(formatResult(&r))
		}
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchFlags.query, "query", "", "natural-language query for hybrid ranking")
	f.StringVar(&searchFlags.county, "county", "", "service-area county")
	f.StringVar(&searchFlags.state, "state", "", "service-area state")
	f.Float64Var(&searchFlags.minRating, "min-rating", 0, "minimum rating")
	f.IntVar(&searchFlags.minReviews, "min-reviews", 0, "minimum review count")
	f.Float64Var(&searchFlags.lat, "lat", 0, "radius center latitude")
	f.Float64Var(&searchFlags.lon, "lon", 0, "radius center longitude")
	f.Float64Var(&searchFlags.radius, "radius", 0, "radius around the center point")
	f.StringVar(&searchFlags.unit, "unit", "km", "radius unit: km or mi")
	f.StringArrayVar(&searchFlags.fields, "field", nil, "merged-document filter, path:op:value (e.g. services.emergency:eq:true)")
	f.BoolVar(&searchFlags.licensed, "licensed", false, "require a license number")
	f.BoolVar(&searchFlags.available, "available", false, "require availability information")
	f.Float64Var(&searchFlags.minScore, "min-score", 0, "minimum hybrid score")
	f.IntVar(&searchFlags.limit, "limit", 0, "max results")
	rootCmd.AddCommand(searchCmd)
}

func buildSearchQuery() (search.Query, error) {
	q := search.NewQuery()

	if searchFlags.radius > 0 {
		unit := search.Unit(searchFlags.unit)
		if unit != search.Kilometers && unit != search.Miles {
			return q, eris.Errorf("unknown radius unit %q", searchFlags.unit)
		}
		q = q.WithinRadius(searchFlags.lat, searchFlags.lon, searchFlags.radius, unit)
	}
	if searchFlags.minRating > 0 {
		q = q.WithMinRating(searchFlags.minRating)
	}
	if searchFlags.minReviews > 0 {
		q = q.WithMinReviews(searchFlags.minReviews)
	}
	if searchFlags.county != "" {
		q = q.InCounty(searchFlags.county)
	}
	if searchFlags.state != "" {
		q = q.InState(searchFlags.state)
	}
	for _, spec := range searchFlags.fields {
		path, op, value, err := parseFieldFlag(spec)
		if err != nil {
			return q, err
		}
		q = q.WhereField(path, op, value)
	}
	if searchFlags.licensed {
		q = q.Licensed()
	}
	if searchFlags.available {
		q = q.Available()
	}
	if searchFlags.query != "" {
		q = q.WithSemantic(searchFlags.query)
	}
	if searchFlags.minScore > 0 {
		q = q.WithMinScore(searchFlags.minScore)
	}
	if searchFlags.limit > 0 {
		q = q.WithLimit(searchFlags.limit)
	}
	return q, nil
}

// parseFieldFlag splits "path:op:value". The value stays a string; the
// builder casts numerically when the operator requires it.
func parseFieldFlag(spec string) (string, search.Op, any, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return "", "", nil, eris.Errorf("field filter %q is not path:op:value", spec)
	}
	op := search.Op(parts[1])
	var value any = parts[2]
	switch op {
	case search.OpGt, search.OpGte, search.OpLt, search.OpLte:
		var n float64
		if _, err := fmt.Sscanf(parts[2], "%g", &n); err != nil {
			return "", "", nil, eris.Errorf("field filter %q needs a numeric value", spec)
		}
		value = n
	}
	return parts[0], op, value, nil
}

func formatResult(r *search.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d  %s", r.Entity.ID, r.Entity.BusinessName)
	if r.Entity.Rating > 0 {
		fmt.Fprintf(&sb, "  %.1f★ (%d)", r.Entity.Rating, r.Entity.TotalReviews)
	}
	if r.DistanceKm != nil {
		fmt.Fprintf(&sb, "  %.1f km", *r.DistanceKm)
	}
	if r.Hybrid > 0 {
		fmt.Fprintf(&sb, "  score %.2f", r.Hybrid)
	}
	sb.WriteByte('\n')
	if r.Entity.Address != "" {
		fmt.Fprintf(&sb, "    %s\n", r.Entity.Address)
	}
	return sb.String()
}
