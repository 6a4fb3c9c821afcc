// Command aem-asset-search runs one DAM asset search from the command line
// and prints the hits, optionally previewing a metadata search-and-replace.
//
//	aem-asset-search --query ford --damPath /content/dam/cars --searchValue Ford --replaceValue Acme
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ggoodman/aem-mcp-server-go/aem"
	"github.com/ggoodman/aem-mcp-server-go/assets"
	"github.com/ggoodman/aem-mcp-server-go/credentials"
	"github.com/ggoodman/aem-mcp-server-go/internal/config"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("aem-asset-search", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	query := fs.String("query", "", "general text matched against file names and metadata")
	filename := fs.String("filename", "", "file name substring")
	title := fs.String("title", "", "dc:title substring")
	damPath := fs.String("damPath", assets.DefaultDAMPath, "folder to search")
	limit := fs.Int("limit", assets.DefaultLimit, "page size")
	offset := fs.Int("offset", 0, "result offset")
	searchValue := fs.String("searchValue", "", "text to replace in the returned metadata")
	replaceValue := fs.String("replaceValue", "", "replacement text; may be empty")
	asJSON := fs.Bool("json", false, "print the raw result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := assets.SearchQuery{
		GeneralQuery: *query,
		Filename:     *filename,
		Title:        *title,
		BasePath:     *damPath,
		Limit:        *limit,
		Offset:       *offset,
	}
	if fs.Changed("searchValue") {
		q.SearchValue = searchValue
	}
	if fs.Changed("replaceValue") {
		q.ReplaceValue = replaceValue
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	res, err := credentials.Resolve(credentials.Params{}, cfg.Env(), policy)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(stderr, "warning:", w)
	}
	log, _ := cfg.Logger(stderr)
	caller := aem.NewCaller(res, log)
	caller.Timeout = cfg.Timeout

	out, err := assets.NewClient(caller, assets.WithLogger(log)).SearchAssets(ctx, q)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printResult(stdout, out, q.SearchValue != nil)
	return nil
}

func printResult(w io.Writer, res *assets.SearchResult, preview bool) {
	fmt.Fprintf(w, "%d asset(s) matched; showing %d from offset %d\n", res.Total, res.Count, res.Offset)
	for i, hit := range res.Results {
		fmt.Fprintf(w, "\n%d. %s\n   %s\n", res.Offset+i+1, hit.Title, hit.Path)
		if desc, ok := hit.Metadata["dc:description"].(string); ok && desc != "" {
			fmt.Fprintf(w, "   %s\n", desc)
		}
		for _, ch := range hit.Changes {
			fmt.Fprintf(w, "   ~ %s: %s\n", ch.Field, ch.Diff)
		}
	}
	if preview {
		fmt.Fprintln(w, "\nReplacement preview only; nothing was written.")
	}
}
