package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/apuntes/internal/cli"
	"github.com/hyperjump/apuntes/internal/keyword"
	"github.com/hyperjump/apuntes/internal/models"
)

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: apuntes search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Only text from parsed uploads is searched; run "apuntes parse <kind>" first.
  • Use --kind to search only slides or only documents.
  • Use --fuzzy to enable typo tolerance. Without it a search with no hits is retried fuzzily.
  • Use --server when "apuntes server" is running; its stores are locked to other processes.

Examples:
  apuntes search fotosintesis
  apuntes search "ciclo de krebs" --kind slides
  apuntes search --fuzzy mitocondira
  apuntes search --server http://localhost:8080 respiracion celular
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// searchDefaultsFromConfig loads config at path and returns the default result limit and the
// access token for server mode. On load failure, returns 10 and no token.
func searchDefaultsFromConfig(path string) (limit int, token string) {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return 10, ""
	}
	return cfg.Search.DefaultLimit, cfg.Server.AccessToken
}

type searchRequest struct {
	query string
	limit int
	opts  keyword.SearchOptions
}

func runSearch() {
	searchArgs := reorderArgs(os.Args[2:])
	configPath := searchConfigPathFromArgs(searchArgs, defaultConfigPath)
	defaultLimit, defaultToken := searchDefaultsFromConfig(configPath)

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag, debug := commonFlags(fs)
	serverURL := fs.String("server", "", "server URL (empty = search the local stores directly)")
	token := fs.String("token", defaultToken, "access token for --server")
	limit := fs.Int("limit", defaultLimit, "number of results")
	kindName := fs.String("kind", "", "restrict to slides or documents")
	fuzzyEnabled := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := outputFlag(fs)
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := parseOutput(*outputFormat)

	req := &searchRequest{
		query: queryStr,
		limit: *limit,
		opts:  keyword.SearchOptions{FuzzyEnabled: *fuzzyEnabled},
	}
	if *kindName != "" {
		kind, err := models.ParseKind(*kindName)
		if err != nil {
			fail("%v", err)
		}
		req.opts.Kind = kind
	}

	var search func(*searchRequest) (*keyword.Result, error)
	if *serverURL != "" {
		search = func(r *searchRequest) (*keyword.Result, error) {
			return searchViaHTTP(*serverURL, *token, r)
		}
	} else {
		env := openEnv(*configPathFlag, *debug)
		defer env.Close()
		search = func(r *searchRequest) (*keyword.Result, error) {
			return env.components.Index.Search(env.ctx, r.query, r.limit, &r.opts)
		}
	}

	result, err := searchWithFuzzyRetry(req, search)
	if err != nil {
		fail("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, result, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// searchWithFuzzyRetry runs req and, when nothing matched and fuzzy was off, retries with
// fuzzy matching. The first result, with its suggestion, is kept if the retry finds nothing.
func searchWithFuzzyRetry(req *searchRequest, search func(*searchRequest) (*keyword.Result, error)) (*keyword.Result, error) {
	result, err := search(req)
	if err != nil {
		return nil, err
	}
	if req.opts.FuzzyEnabled || len(result.Hits) > 0 {
		return result, nil
	}
	fuzzy := *req
	fuzzy.opts.FuzzyEnabled = true
	fuzzyResult, fuzzyErr := search(&fuzzy)
	if fuzzyErr == nil && len(fuzzyResult.Hits) > 0 {
		return fuzzyResult, nil
	}
	return result, nil
}

func searchViaHTTP(serverURL, token string, req *searchRequest) (*keyword.Result, error) {
	q := url.Values{}
	q.Set("q", req.query)
	q.Set("limit", strconv.Itoa(req.limit))
	if req.opts.Kind != "" {
		q.Set("kind", string(req.opts.Kind))
	}
	if req.opts.FuzzyEnabled {
		q.Set("fuzzy", "true")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(serverURL, "/")+"/api/v1/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result keyword.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
