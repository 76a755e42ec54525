package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lychee-technology/rowstore"
	"github.com/lychee-technology/rowstore/internal"
	"github.com/spf13/cobra"
)

// scopeFlags are the filters shared by the read commands.
type scopeFlags struct {
	where       []string
	orderBy     []string
	onlyDeleted bool
	withDeleted bool
	noHooks     bool
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.where, "where", "w", nil, "column=value condition, repeatable; value null matches NULL, a,b,c matches any")
	cmd.Flags().StringArrayVar(&f.orderBy, "order", nil, "column[:asc|desc], repeatable")
	cmd.Flags().BoolVar(&f.onlyDeleted, "only-deleted", false, "match soft deleted rows only")
	cmd.Flags().BoolVar(&f.withDeleted, "with-deleted", false, "match soft deleted rows too")
	cmd.Flags().BoolVar(&f.noHooks, "no-hooks", false, "skip lifecycle hooks")
}

func (f *scopeFlags) apply(s rowstore.Scope) (rowstore.Scope, error) {
	values, err := parseAssignments(f.where)
	if err != nil {
		return nil, err
	}
	for _, col := range sortedKeys(values) {
		s = s.Where(col, values[col])
	}
	for _, o := range f.orderBy {
		col, dir, _ := strings.Cut(o, ":")
		order := rowstore.SortOrder(strings.ToLower(dir))
		switch order {
		case "", rowstore.SortOrderAsc, rowstore.SortOrderDesc:
		default:
			return nil, fmt.Errorf("invalid sort order %q", dir)
		}
		s = s.OrderBy(col, order)
	}
	if f.onlyDeleted && f.withDeleted {
		return nil, fmt.Errorf("--only-deleted and --with-deleted are exclusive")
	}
	if f.onlyDeleted {
		s = s.OnlyDeleted()
	}
	if f.withDeleted {
		s = s.WithDeleted()
	}
	if f.noHooks {
		s = s.WithoutCallbacks()
	}
	return s, nil
}

// parseAssignments turns column=value pairs into a map. A value holding
// commas becomes a list.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		col, raw, ok := strings.Cut(p, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("expected column=value, got %q", p)
		}
		if strings.Contains(raw, ",") {
			parts := strings.Split(raw, ",")
			list := make([]any, len(parts))
			for i, part := range parts {
				list[i] = internal.ParseScalar(part)
			}
			out[col] = list
			continue
		}
		out[col] = internal.ParseScalar(raw)
	}
	return out, nil
}

// parseIdentifier builds an identifier from positional ids and --key pairs.
// Keys win when both are given.
func parseIdentifier(args []string, keys []string) (rowstore.Identifier, error) {
	if len(keys) > 0 {
		values, err := parseAssignments(keys)
		if err != nil {
			return rowstore.NoID, err
		}
		return rowstore.KeyValues(values), nil
	}
	switch len(args) {
	case 0:
		return rowstore.NoID, nil
	case 1:
		return rowstore.ID(internal.ParseScalar(args[0])), nil
	}
	ids := make([]any, len(args))
	for i, a := range args {
		ids[i] = internal.ParseScalar(a)
	}
	return rowstore.IDs(ids...), nil
}

func sortedKeys(m map[string]any) []string {
	return rowstore.Record(m).Columns()
}

func newFindCmd(a *app) *cobra.Command {
	var (
		sf     scopeFlags
		keys   []string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "find <model> [id...]",
		Short: "Find rows by primary key, or list rows when no id is given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			s, err := sf.apply(m.NewScope())
			if err != nil {
				return err
			}
			id, err := parseIdentifier(args[1:], keys)
			if err != nil {
				return err
			}
			var res *rowstore.Result
			if id.IsEmpty() {
				res, err = s.FindAll(cmd.Context(), limit, offset)
			} else {
				res, err = s.Find(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	sf.register(cmd)
	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "column=value of a composite key, repeatable")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows when listing")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip when listing")
	return cmd
}

func newFindAltCmd(a *app) *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "find-alt <model> column=value...",
		Short: "Find rows by the primary key or a registered alternate key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			s, err := sf.apply(m.NewScope())
			if err != nil {
				return err
			}
			values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			res, err := s.FindAltBy(cmd.Context(), values)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	sf.register(cmd)
	return cmd
}

func newFirstCmd(a *app) *cobra.Command {
	var (
		sf      scopeFlags
		groupBy []string
	)
	cmd := &cobra.Command{
		Use:   "first <model>",
		Short: "Print the first matching row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			s, err := sf.apply(m.NewScope())
			if err != nil {
				return err
			}
			if len(groupBy) > 0 {
				s = s.GroupBy(groupBy...)
			}
			row, err := s.First(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), row)
		},
	}
	sf.register(cmd)
	cmd.Flags().StringSliceVar(&groupBy, "group-by", nil, "columns to group by")
	return cmd
}

func newCountCmd(a *app) *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "count <model>",
		Short: "Count matching rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			s, err := sf.apply(m.NewScope())
			if err != nil {
				return err
			}
			n, err := s.CountAllResults(cmd.Context(), true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int64{"count": n})
		},
	}
	sf.register(cmd)
	return cmd
}

func newSaveCmd(a *app) *cobra.Command {
	var (
		data   string
		insert bool
	)
	cmd := &cobra.Command{
		Use:   "save <model>",
		Short: "Insert or update a row given as a JSON object (or an array with --insert)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			var in io.Reader = strings.NewReader(data)
			if data == "" || data == "-" {
				in = cmd.InOrStdin()
			}
			rows, err := decodeRows(in)
			if err != nil {
				return err
			}

			var res *rowstore.WriteResult
			switch {
			case insert && len(rows) > 1:
				values := make([]any, len(rows))
				for i, r := range rows {
					values[i] = r
				}
				res, err = m.InsertBatch(cmd.Context(), values, a.cfg.Database.BatchSize)
			case insert:
				res, err = m.Insert(cmd.Context(), rows[0])
			case len(rows) > 1:
				return fmt.Errorf("save takes a single object; use --insert for arrays")
			default:
				res, err = m.Save(cmd.Context(), rows[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON row; read from stdin when empty or -")
	cmd.Flags().BoolVar(&insert, "insert", false, "always insert")
	return cmd
}

// decodeRows reads a JSON object or array of objects. Numbers keep their
// integer form.
func decodeRows(r io.Reader) ([]rowstore.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	var objects []any
	switch v := raw.(type) {
	case map[string]any:
		objects = []any{v}
	case []any:
		objects = v
	default:
		return nil, fmt.Errorf("expected a JSON object or array, got %T", raw)
	}
	if len(objects) == 0 {
		return nil, rowstore.NewEmptyDatasetError("save")
	}

	rows := make([]rowstore.Record, len(objects))
	for i, o := range objects {
		obj, ok := o.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, not an object", i, o)
		}
		row := make(rowstore.Record, len(obj))
		for k, v := range obj {
			if n, ok := v.(json.Number); ok {
				v = internal.ParseScalar(n.String())
			}
			row[k] = v
		}
		rows[i] = row
	}
	return rows, nil
}

func newDeleteCmd(a *app) *cobra.Command {
	var (
		sf    scopeFlags
		keys  []string
		purge bool
	)
	cmd := &cobra.Command{
		Use:   "delete <model> [id...]",
		Short: "Delete rows by primary key or --where conditions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			s, err := sf.apply(m.NewScope())
			if err != nil {
				return err
			}
			id, err := parseIdentifier(args[1:], keys)
			if err != nil {
				return err
			}
			res, err := s.Delete(cmd.Context(), id, purge)
			if err != nil {
				return err
			}
			if !res.OK && len(res.Violations) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), rowstore.FormatMessage(rowstore.DefaultLanguage, rowstore.MsgDeleteAllNotAllowed))
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringArrayVarP(&sf.where, "where", "w", nil, "column=value condition, repeatable")
	cmd.Flags().BoolVar(&sf.noHooks, "no-hooks", false, "skip lifecycle hooks")
	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "column=value of a composite key, repeatable")
	cmd.Flags().BoolVar(&purge, "purge", false, "remove rows instead of marking them deleted")
	return cmd
}

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <model>",
		Short: "Remove every soft deleted row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			res, err := m.PurgeDeleted(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}
