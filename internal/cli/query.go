package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anmolg1997/kg-rag/pkg/query"
	"github.com/anmolg1997/kg-rag/pkg/retrieval"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question over the knowledge graph",
	Long: `Retrieves context through the active strategy's search methods and
generates an answer with cited sources.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [doc-id]",
	Short: "Summarize an ingested document",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

var (
	queryDocument  string
	queryStrategy  string
	queryFollowUps bool
	queryJSON      bool
)

func init() {
	queryCmd.Flags().StringVarP(&queryDocument, "document", "d", "", "Limit retrieval to a single document")
	queryCmd.Flags().StringVarP(&queryStrategy, "strategy", "s", "", "Strategy preset for this query")
	queryCmd.Flags().BoolVar(&queryFollowUps, "follow-ups", false, "Suggest follow-up questions")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Output as JSON")

	summarizeCmd.Flags().StringVarP(&queryStrategy, "strategy", "s", "", "Strategy preset for the summary")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(summarizeCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	if queryStrategy != "" {
		if _, err := svc.strategies.LoadPreset(queryStrategy); err != nil {
			return err
		}
	}

	retrieverOpts := []retrieval.RetrieverOption{}
	if svc.sch != nil {
		retrieverOpts = append(retrieverOpts, retrieval.WithSchema(svc.sch))
	}

	// --debug also surfaces per-method retrieval counts.
	var trace *retrieval.RetrievalTrace
	if debugFlag {
		trace = retrieval.NewRetrievalTrace()
		retrieverOpts = append(retrieverOpts, retrieval.WithTracer(trace))
	}

	retriever := retrieval.NewRetriever(svc.storage, svc.llm, retrieverOpts...)
	engine := query.NewEngine(retriever, svc.llm, svc.strategies)

	question := strings.Join(args, " ")

	askOpts := []query.AskOption{}
	if queryDocument != "" {
		askOpts = append(askOpts, query.WithDocument(queryDocument))
	}
	if queryFollowUps {
		askOpts = append(askOpts, query.WithFollowUps())
	}

	answer, err := engine.Ask(ctx, question, askOpts...)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		out, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Println(answer.Response)

	if len(answer.Sources) > 0 {
		cmd.Println("\nSources:")
		for _, src := range answer.Sources {
			cmd.Printf("  - %s (%s)\n", src.Name, src.Type)
		}
	}

	if len(answer.FollowUpQuestions) > 0 {
		cmd.Println("\nFollow-up questions:")
		for _, q := range answer.FollowUpQuestions {
			cmd.Printf("  - %s\n", q)
		}
	}

	cmd.Printf("\nConfidence: %.2f | Methods: %s | Entities: %d | Total: %dms\n",
		answer.Confidence,
		strings.Join(answer.SearchMethodsUsed, ", "),
		answer.EntityCount,
		answer.TotalMs,
	)

	if trace != nil {
		printTrace(cmd, trace)
	}

	return nil
}

func printTrace(cmd *cobra.Command, trace *retrieval.RetrievalTrace) {
	snapshot := trace.Snapshot()

	methods := make([]string, 0, len(snapshot.RawCandidates))
	for method := range snapshot.RawCandidates {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	cmd.Println("\nRetrieval trace:")
	for _, method := range methods {
		cmd.Printf("  %-20s %d candidates\n", method, snapshot.RawCandidates[method])
	}
	cmd.Printf("  retained: %d entities, %d chunks\n", snapshot.RetainedEntities, snapshot.RetainedChunks)

	for _, failure := range trace.FailedMethods() {
		cmd.Printf("  failed: %s\n", failure)
	}
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	if queryStrategy != "" {
		if _, err := svc.strategies.LoadPreset(queryStrategy); err != nil {
			return err
		}
	}

	retrieverOpts := []retrieval.RetrieverOption{}
	if svc.sch != nil {
		retrieverOpts = append(retrieverOpts, retrieval.WithSchema(svc.sch))
	}

	retriever := retrieval.NewRetriever(svc.storage, svc.llm, retrieverOpts...)
	engine := query.NewEngine(retriever, svc.llm, svc.strategies)

	summary, err := engine.Summarize(ctx, args[0])
	if err != nil {
		return fmt.Errorf("summarize failed: %w", err)
	}

	cmd.Println(summary)
	return nil
}
