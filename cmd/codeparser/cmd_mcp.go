package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jestersw/codeparser/internal/version"
	"github.com/jestersw/codeparser/pkg/code"
	"github.com/jestersw/codeparser/pkg/engine"
	"github.com/jestersw/codeparser/pkg/findings"
	"github.com/jestersw/codeparser/pkg/store"
)

func newMCPCmd(a *app) *cobra.Command {
	var noStore bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve analysis and findings tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			eng, err := a.newEngine()
			if err != nil {
				return err
			}
			if noStore {
				return newMCPServer(eng, nil, a.log.Named("mcp")).Run(ctx)
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return newMCPServer(eng, st, a.log.Named("mcp")).Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&noStore, "no-store", false, "only register the analysis tools")
	return cmd
}

// MCPServer exposes the engine and, when present, the findings store as
// MCP tools.
type MCPServer struct {
	server *mcp.Server
	engine *engine.Engine
	store  store.FindingsStore
	log    *zap.Logger
}

func newMCPServer(eng *engine.Engine, st store.FindingsStore, log *zap.Logger) *MCPServer {
	s := &MCPServer{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "codeparser",
			Version: version.Short(),
		}, nil),
		engine: eng,
		store:  st,
		log:    log,
	}
	s.registerAnalysisTools()
	if st != nil {
		s.registerFindingsTools()
	}
	return s
}

func (s *MCPServer) Run(ctx context.Context) error {
	s.log.Info("mcp server starting", zap.Bool("findings", s.store != nil))
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

type AnalyzeSourceInput struct {
	Language string `json:"language,omitempty" jsonschema:"Language tag: python, javascript, typescript, go or an alias such as py, js, ts"`
	Source   string `json:"source" jsonschema:"Source text to analyse"`
	Path     string `json:"path,omitempty" jsonschema:"File name used to detect the language when none is given"`
	JSON     bool   `json:"json,omitempty" jsonschema:"Return the report as JSON instead of text"`
}

type LanguagesInput struct{}

type FindingsSearchInput struct {
	Query    string `json:"query" jsonschema:"Search query for finding titles, details and categories. Supports Bleve query syntax."`
	Analyzer string `json:"analyzer,omitempty" jsonschema:"Filter by analyzer: rules, complexity, secrets"`
	Severity string `json:"severity,omitempty" jsonschema:"Filter by severity: critical, warning, info"`
	FilePath string `json:"file,omitempty" jsonschema:"Filter by file path pattern (substring match)"`
	Category string `json:"category,omitempty" jsonschema:"Filter by category"`
	Language string `json:"lang,omitempty" jsonschema:"Filter by language"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results (default 20)"`
}

type FindingsListInput struct {
	Analyzer string `json:"analyzer,omitempty" jsonschema:"Filter by analyzer: rules, complexity, secrets"`
	Severity string `json:"severity,omitempty" jsonschema:"Filter by severity: critical, warning, info"`
	FilePath string `json:"file,omitempty" jsonschema:"Filter by file path pattern (substring match)"`
	Category string `json:"category,omitempty" jsonschema:"Filter by category"`
	Language string `json:"lang,omitempty" jsonschema:"Filter by language"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results (default 100)"`
}

type FindingsStatsInput struct{}

func (s *MCPServer) registerAnalysisTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "analyze_source",
		Description: `Analyse a snippet of source code for risky constructs and structural complexity.

Returns the complexity score (one per node plus one per branching construct)
and every rule match with its category, line and matched text.

**Detects:** dynamic code evaluation, SQL built from string formatting,
hardcoded secrets, insecure randomness.

Give the language explicitly, or a file path to detect it from.`,
	}, s.handleAnalyzeSource)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "languages",
		Description: "List the languages that can be analysed, with their aliases, file extensions and rule counts.",
	}, s.handleLanguages)
}

func (s *MCPServer) registerFindingsTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "findings_search",
		Description: `Search stored findings by keyword using full-text search.

**Examples:**
- "eval" → dynamic evaluation sites
- "secret" → hardcoded credentials
- "complexity" → files over the complexity threshold

Filter by analyzer (rules, complexity, secrets), severity, file path,
category or language. Findings are populated by 'codeparser scan' or 'codeparser watch'.`,
	}, s.handleFindingsSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "findings_list",
		Description: `List stored findings ordered by file and line, with optional filters.

Does not require a search query. Use this to browse all findings for a file
or every critical finding.`,
	}, s.handleFindingsList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "findings_stats",
		Description: `Get an overview of stored findings with counts by analyzer, severity and category.

**Start here** before drilling in with findings_list or findings_search.`,
	}, s.handleFindingsStats)
}

func (s *MCPServer) handleAnalyzeSource(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeSourceInput) (*mcp.CallToolResult, any, error) {
	s.log.Debug("tool: analyze_source", zap.String("language", input.Language), zap.String("path", input.Path), zap.Int("bytes", len(input.Source)))

	lang := input.Language
	if lang == "" && input.Path != "" {
		lang = code.DetectLanguage(input.Path, []byte(input.Source))
	}
	if lang == "" {
		return errorResult("language required (or a path to detect it from)"), nil, nil
	}

	report, err := s.engine.Analyze(ctx, lang, []byte(input.Source))
	if err != nil {
		var unsupported *engine.UnsupportedLanguageError
		if errors.As(err, &unsupported) && len(unsupported.Suggestions) == 0 {
			names := make([]string, 0)
			for _, l := range s.engine.Languages() {
				names = append(names, l.Name)
			}
			return errorResult(fmt.Sprintf("%v; supported: %s", err, strings.Join(names, ", "))), nil, nil
		}
		return errorResult(err.Error()), nil, nil
	}

	if input.JSON {
		data, err := json.Marshal(report)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(string(data)), nil, nil
	}
	return textResult(formatReport(report)), nil, nil
}

func (s *MCPServer) handleLanguages(_ context.Context, _ *mcp.CallToolRequest, _ LanguagesInput) (*mcp.CallToolResult, any, error) {
	var sb strings.Builder
	for _, l := range s.engine.Languages() {
		fmt.Fprintf(&sb, "- %s (%d rules)", l.Name, l.Rules)
		if len(l.Aliases) > 0 {
			fmt.Fprintf(&sb, " aliases: %s;", strings.Join(l.Aliases, ", "))
		}
		if len(l.Extensions) > 0 {
			fmt.Fprintf(&sb, " extensions: %s", strings.Join(l.Extensions, " "))
		}
		sb.WriteString("\n")
	}
	return textResult(sb.String()), nil, nil
}

func (s *MCPServer) handleFindingsSearch(_ context.Context, _ *mcp.CallToolRequest, input FindingsSearchInput) (*mcp.CallToolResult, any, error) {
	s.log.Debug("tool: findings_search", zap.String("query", input.Query), zap.String("analyzer", input.Analyzer), zap.String("severity", input.Severity))

	if s.store == nil {
		return errorResult("findings store not available"), nil, nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return errorResult("query required"), nil, nil
	}

	opts := findings.SearchOptions{
		Analyzer: input.Analyzer,
		Severity: input.Severity,
		FilePath: input.FilePath,
		Category: input.Category,
		Language: input.Language,
		Limit:    input.Limit,
	}
	results, err := s.store.SearchFindings(input.Query, opts)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil, nil
	}
	if len(results) == 0 {
		return textResult("No findings found."), nil, nil
	}

	list := make([]*findings.Finding, 0, len(results))
	for _, r := range results {
		list = append(list, r.Finding)
	}
	return textResult(formatFindings(list)), nil, nil
}

func (s *MCPServer) handleFindingsList(_ context.Context, _ *mcp.CallToolRequest, input FindingsListInput) (*mcp.CallToolResult, any, error) {
	s.log.Debug("tool: findings_list", zap.String("analyzer", input.Analyzer), zap.String("severity", input.Severity), zap.String("file", input.FilePath))

	if s.store == nil {
		return errorResult("findings store not available"), nil, nil
	}

	opts := findings.SearchOptions{
		Analyzer: input.Analyzer,
		Severity: input.Severity,
		FilePath: input.FilePath,
		Category: input.Category,
		Language: input.Language,
		Limit:    input.Limit,
	}
	list, err := s.store.ListFindings(opts)
	if err != nil {
		return errorResult(fmt.Sprintf("list failed: %v", err)), nil, nil
	}
	if len(list) == 0 {
		return textResult("No findings found."), nil, nil
	}
	return textResult(formatFindings(list)), nil, nil
}

func (s *MCPServer) handleFindingsStats(_ context.Context, _ *mcp.CallToolRequest, _ FindingsStatsInput) (*mcp.CallToolResult, any, error) {
	if s.store == nil {
		return errorResult("findings store not available"), nil, nil
	}

	stats, err := s.store.Stats(findings.SearchOptions{})
	if err != nil {
		return errorResult(fmt.Sprintf("stats failed: %v", err)), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total findings: %d in %d files\n", stats.Total, stats.Files)
	for _, part := range []struct {
		title  string
		counts map[string]int
	}{
		{"By analyzer", stats.ByAnalyzer},
		{"By severity", stats.BySeverity},
		{"By category", stats.ByCategory},
	} {
		if len(part.counts) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s:\n", part.title)
		for _, row := range countRows(part.counts) {
			fmt.Fprintf(&sb, "  %-28s %s\n", row[0], row[1])
		}
	}
	return textResult(sb.String()), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + message},
		},
		IsError: true,
	}
}

func formatFindings(list []*findings.Finding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d findings:\n\n", len(list))
	for _, f := range list {
		sb.WriteString(formatFindingLine(f))
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatReport(r *findings.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Complexity: %d\n", r.Complexity)
	if len(r.Vulnerabilities) == 0 {
		sb.WriteString("No vulnerabilities found.\n")
	} else {
		fmt.Fprintf(&sb, "\n%d vulnerabilities:\n", len(r.Vulnerabilities))
		for _, line := range r.Lines() {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(&sb, "\n%d nodes skipped:\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w.Error())
		}
	}
	return sb.String()
}
