package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/nimburion/apimate/pkg/config"
	"github.com/nimburion/apimate/pkg/query"
	"github.com/nimburion/apimate/pkg/repository/document"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// catalogFlag resolves the catalog file from --catalog, falling back to the
// catalog.file setting of the loaded configuration.
type catalogFlag struct {
	path      string
	cfgPath   *string
	envPrefix string
}

func (f *catalogFlag) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "catalog", "", "resource definitions file (defaults to catalog.file)")
}

func (f *catalogFlag) load() (*query.Catalog, error) {
	path := f.path
	if path == "" {
		cfg, err := config.NewViperLoader(*f.cfgPath, f.envPrefix).Load()
		if err != nil {
			return nil, fmt.Errorf("no --catalog given: %w", err)
		}
		path = cfg.Catalog.File
	}
	return loadCatalog(path)
}

func (f *catalogFlag) schema(name string) (*query.Schema, error) {
	cat, err := f.load()
	if err != nil {
		return nil, err
	}
	schema, ok := cat.Schema(name)
	if !ok {
		return nil, fmt.Errorf("unknown resource %q (declared: %v)", name, cat.Names())
	}
	return schema, nil
}

func newExplainCommand(cfgPath *string, envPrefix string) *cobra.Command {
	catalog := &catalogFlag{cfgPath: cfgPath, envPrefix: envPrefix}
	var (
		filter    string
		sort      string
		offset    string
		page      int
		limit     int
		withCount bool
	)

	cmd := &cobra.Command{
		Use:   "explain <resource>",
		Short: "Print the MongoDB statement a list request compiles to",
		Example: `  apimate explain articles --catalog resources.yaml \
    --filter '{"title": ["^", "go"], "views": {">=": 10}}' --sort views`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := catalog.schema(args[0])
			if err != nil {
				return err
			}

			values := url.Values{}
			set := func(flag, param, value string) {
				if cmd.Flags().Changed(flag) {
					values.Set(param, value)
				}
			}
			set("filter", query.ParamFilter, filter)
			set("sort", query.ParamSort, sort)
			set("offset", query.ParamOffset, offset)
			set("page", query.ParamPage, strconv.Itoa(page))
			set("limit", query.ParamLimit, strconv.Itoa(limit))
			set("with-count", query.ParamWithCount, strconv.FormatBool(withCount))

			q, err := query.ParseValues(schema, values)
			if err != nil {
				return err
			}
			out, err := document.Compile(q).ExtJSON()
			if err != nil {
				return fmt.Errorf("render statement: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if q.WithCount() {
				fmt.Fprintln(cmd.OutOrStdout(), "count: runs on the filter without the cursor constraint")
			}
			return nil
		},
	}
	catalog.register(cmd)
	cmd.Flags().StringVar(&filter, "filter", "", "filter as JSON")
	cmd.Flags().StringVar(&sort, "sort", "", `sort field, or JSON ["field", "dsc"]`)
	cmd.Flags().StringVar(&offset, "offset", "", "last seen identifier (cursor pagination)")
	cmd.Flags().IntVar(&page, "page", 1, "page number (page pagination)")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.Flags().BoolVar(&withCount, "with-count", false, "also count matching records")
	return cmd
}

func newSchemaCommand(cfgPath *string, envPrefix string) *cobra.Command {
	catalog := &catalogFlag{cfgPath: cfgPath, envPrefix: envPrefix}
	var output string

	cmd := &cobra.Command{
		Use:   "schema [resource]",
		Short: "Print the JSON Schema of a resource filter, or list resources",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cat, err := catalog.load()
				if err != nil {
					return err
				}
				for _, s := range cat.Resources() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.Name(), s.IDKind(), s.Pagination())
				}
				return nil
			}

			schema, err := catalog.schema(args[0])
			if err != nil {
				return err
			}
			return writeSchema(cmd.OutOrStdout(), query.FilterJSONSchema(schema), output)
		},
	}
	catalog.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	return cmd
}

func writeSchema(w io.Writer, schema any, format string) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	switch format {
	case "json":
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("marshal schema: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (supported: json, yaml)", format)
	}
}
