// Command routectl manages the SQLite route table read by store dispatchers
// and generates API keys for auth dispatchers.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/tjfontaine/polyglot-dispatch/internal/auth"
	"github.com/tjfontaine/polyglot-dispatch/internal/storage"
	"github.com/tjfontaine/polyglot-dispatch/internal/storage/sqlite"
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.Command {
	dbFlag := &cli.StringFlag{
		Name:  "db",
		Value: "./data/routes.db",
		Usage: "path to the SQLite route database",
	}

	return &cli.Command{
		Name:     "routectl",
		Usage:    "manage dispatch routes and API keys",
		Writer:   out,
		Flags:    []cli.Flag{dbFlag},
		Commands: []*cli.Command{
			{
				Name:      "keygen",
				Usage:     "generate an API key and its SHA-256 hash",
				ArgsUsage: "[api-key]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return keygen(out, cmd.Args().First())
				},
			},
			{
				Name:  "add",
				Usage: "create or replace a route",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "route id (defaults to the endpoint name)"},
					&cli.StringFlag{Name: "method", Value: storage.AnyMethod, Usage: "HTTP method or *"},
					&cli.StringFlag{Name: "path", Required: true, Usage: "request path"},
					&cli.BoolFlag{Name: "prefix", Usage: "match every path under --path"},
					&cli.StringFlag{Name: "endpoint", Required: true, Usage: "endpoint name"},
					&cli.StringFlag{Name: "kind", Value: "static", Usage: "handler kind"},
					&cli.StringFlag{Name: "target", Usage: "redirect or proxy target URL"},
					&cli.StringFlag{Name: "status", Usage: "response status code"},
					&cli.StringFlag{Name: "body", Usage: "static response body"},
					&cli.BoolFlag{Name: "block-private", Usage: "refuse proxying to private addresses"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					route, err := routeFromFlags(cmd)
					if err != nil {
						return err
					}
					return withStore(cmd.String("db"), func(s storage.RouteStore) error {
						if err := s.PutRoute(ctx, route); err != nil {
							return err
						}
						fmt.Fprintf(out, "saved route %s\n", route.ID)
						return nil
					})
				},
			},
			{
				Name:  "list",
				Usage: "list routes in lookup order",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withStore(cmd.String("db"), func(s storage.RouteStore) error {
						routes, err := s.ListRoutes(ctx)
						if err != nil {
							return err
						}
						return printRoutes(out, routes)
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "delete a route",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return fmt.Errorf("route id is required")
					}
					return withStore(cmd.String("db"), func(s storage.RouteStore) error {
						if err := s.DeleteRoute(ctx, id); err != nil {
							return err
						}
						fmt.Fprintf(out, "removed route %s\n", id)
						return nil
					})
				},
			},
		},
	}
}

func keygen(out io.Writer, apiKey string) error {
	if apiKey == "" {
		apiKey = "dk-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	keyHash := auth.HashAPIKey(apiKey)

	fmt.Fprintf(out, "API Key: %s\n", apiKey)
	fmt.Fprintf(out, "SHA-256 Hash: %s\n", keyHash)
	fmt.Fprintln(out, "\nAdd this to an auth dispatcher in config.yaml:")
	fmt.Fprintf(out, "    keys:\n")
	fmt.Fprintf(out, "      - name: \"generated\"\n")
	fmt.Fprintf(out, "        key_hash: \"%s\"\n", keyHash)
	return nil
}

func routeFromFlags(cmd *cli.Command) (*storage.Route, error) {
	route := &storage.Route{
		ID:           cmd.String("id"),
		Method:       strings.ToUpper(cmd.String("method")),
		Path:         cmd.String("path"),
		Prefix:       cmd.Bool("prefix"),
		Endpoint:     cmd.String("endpoint"),
		Kind:         cmd.String("kind"),
		Target:       cmd.String("target"),
		Body:         cmd.String("body"),
		BlockPrivate: cmd.Bool("block-private"),
	}
	if route.ID == "" {
		route.ID = route.Endpoint
	}
	if s := cmd.String("status"); s != "" {
		status, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid status %q: %w", s, err)
		}
		route.Status = status
	}
	if err := route.Validate(); err != nil {
		return nil, err
	}
	return route, nil
}

func withStore(path string, fn func(storage.RouteStore) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	store, err := sqlite.New(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer store.Close()
	return fn(store)
}

func printRoutes(out io.Writer, routes []*storage.Route) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMETHOD\tPATH\tENDPOINT\tKIND\tTARGET")
	for _, r := range routes {
		path := r.Path
		if r.Prefix {
			path += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Method, path, r.Endpoint, r.Kind, r.Target)
	}
	return tw.Flush()
}
