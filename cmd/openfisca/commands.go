package main

import (
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MalkIPP/openfisca-core/pkg/columnar"
	"github.com/MalkIPP/openfisca-core/pkg/datatable"
	"github.com/MalkIPP/openfisca-core/pkg/errors"
	"github.com/MalkIPP/openfisca-core/pkg/json"
)

type resolveOutput struct {
	Variable string           `json:"variable"`
	Target   string           `json:"target"`
	Values   []any            `json:"values,omitempty"`
	ByRole   map[string][]any `json:"by_role,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

type entityOutput struct {
	Entity     string         `json:"entity"`
	Count      int            `json:"count"`
	StoredRows int            `json:"stored_rows,omitempty"`
	Roles      map[string]int `json:"roles,omitempty"`
}

type describeOutput struct {
	Name        string         `json:"name"`
	Layout      string         `json:"layout"`
	Individuals int            `json:"individuals"`
	Entities    []entityOutput `json:"entities"`
	Mismatches  []string       `json:"mismatches,omitempty"`
}

func resolveCommand(a *app) *cobra.Command {
	var (
		variable  string
		target    string
		roles     string
		aggregate bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a variable at an entity level",
		Example: `  openfisca resolve -c survey.yaml --var salaire --target men --roles all --aggregate
  openfisca resolve -c survey.yaml --var loyer --target ind`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.runContext(cmd.Context())
			defer cancel()

			dt, err := openTable(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}

			q := datatable.Query{Aggregate: aggregate}
			if target != "" {
				if q.Target, err = dt.Schema().ByKey(target); err != nil {
					return err
				}
			}
			if q.Roles, err = parseRoles(roles); err != nil {
				return err
			}

			res, err := dt.Resolve(variable, q)
			if err != nil {
				return err
			}

			out := resolveOutput{Variable: variable, Target: target}
			if out.Target == "" {
				col, err := dt.Registry().Describe(variable)
				if err != nil {
					return err
				}
				out.Target = dt.Schema().Key(col.Entity)
			}
			if res.Values != nil {
				out.Values = jsonValues(res.Values)
			} else {
				out.ByRole = make(map[string][]any, len(res.ByRole))
				for r, v := range res.ByRole {
					out.ByRole[strconv.Itoa(int(r))] = jsonValues(v)
				}
			}
			for _, w := range dt.Warnings() {
				out.Warnings = append(out.Warnings, w.String())
			}
			return a.print(out)
		},
	}

	cmd.Flags().StringVar(&variable, "var", "", "Variable to resolve (required)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target entity key (ind, men, fam, foy)")
	cmd.Flags().StringVarP(&roles, "roles", "r", "", "Comma separated roles, or all")
	cmd.Flags().BoolVar(&aggregate, "aggregate", false, "Sum the selected members")
	_ = cmd.MarkFlagRequired("var")

	return cmd
}

func describeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print entity counts, role sizes and identifier mismatches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.runContext(cmd.Context())
			defer cancel()

			dt, err := openTable(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}

			idx := dt.Index()
			schema := dt.Schema()
			out := describeOutput{
				Name:        dt.Name(),
				Layout:      dt.Backend().Layout().String(),
				Individuals: idx.Individuals(),
			}
			for _, k := range schema.Entities() {
				e := entityOutput{Entity: schema.Key(k), Count: idx.Count(k)}
				if n := dt.Backend().StoredRows(k); n >= 0 {
					e.StoredRows = n
				}
				if !schema.IsLeaf(k) {
					e.Roles = make(map[string]int)
					for _, r := range idx.Roles(k) {
						if p, ok := idx.Pair(k, r); ok {
							e.Roles[strconv.Itoa(int(r))] = p.Len()
						}
					}
				}
				out.Entities = append(out.Entities, e)
			}
			for _, m := range idx.Mismatches() {
				out.Mismatches = append(out.Mismatches, m.String())
			}
			return a.print(out)
		},
	}
}

func (a *app) print(v any) error {
	if err := json.WriteTo(a.out, v, "  "); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "failed to encode output")
	}
	return nil
}

// jsonValues converts v for encoding; NaN becomes null.
func jsonValues(v columnar.Vector) []any {
	out := make([]any, v.Len())
	for i := range out {
		switch v.Type() {
		case columnar.Bool:
			out[i] = v.Float(i) != 0
		case columnar.Float:
			if f := v.Float(i); !math.IsNaN(f) {
				out[i] = f
			}
		default:
			out[i] = int64(v.Float(i))
		}
	}
	return out
}
