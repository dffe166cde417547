package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/cobra"

	"github.com/anmolg1997/kg-rag/internal/queue"
	"github.com/anmolg1997/kg-rag/internal/storage"
	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [text-file]",
	Short: "Ingest a document into the knowledge graph",
	Long: `Chunks the document text, extracts metadata, and stores everything in
the graph database. With --graph, a JSON file of pre-extracted entities
and relationships is ingested alongside the text.

With --async the text is uploaded to object storage and a job is
published for the worker instead of ingesting directly.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its derived graph data",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var (
	ingestID       string
	ingestFilename string
	ingestPreset   string
	ingestGraph    string
	ingestAsync    bool
	deleteAsync    bool
)

func init() {
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "Document ID (generated when empty)")
	ingestCmd.Flags().StringVar(&ingestFilename, "filename", "", "Original filename (defaults to the input path's base name)")
	ingestCmd.Flags().StringVarP(&ingestPreset, "preset", "p", "", "Extraction strategy preset")
	ingestCmd.Flags().StringVar(&ingestGraph, "graph", "", "JSON file with pre-extracted entities and relationships")
	ingestCmd.Flags().BoolVar(&ingestAsync, "async", false, "Publish an ingestion job instead of ingesting directly")

	deleteCmd.Flags().BoolVar(&deleteAsync, "async", false, "Publish a delete job instead of deleting directly")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(deleteCmd)
}

// graphFile is the JSON shape of a --graph input.
type graphFile struct {
	Entities      []common.Entity       `json:"entities"`
	Relationships []common.Relationship `json:"relationships"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	filename := ingestFilename
	if filename == "" {
		filename = filepath.Base(args[0])
	}

	docID := ingestID
	if docID == "" {
		docID, err = gonanoid.New()
		if err != nil {
			return err
		}
	}

	if ingestAsync {
		return publishIngest(cmd, docID, filename, string(text))
	}

	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	if ingestPreset != "" {
		if _, err := svc.strategies.LoadPreset(ingestPreset); err != nil {
			return err
		}
	}

	pipeline := ingest.NewPipeline(svc.storage, svc.sch)
	strat := svc.strategies.Extraction()

	doc := common.Document{ID: docID, Filename: filename}
	result, err := pipeline.IngestDocument(ctx, doc, string(text), strat)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if ingestGraph != "" {
		raw, err := os.ReadFile(ingestGraph)
		if err != nil {
			return fmt.Errorf("failed to read graph file: %w", err)
		}
		var graph graphFile
		if err := json.Unmarshal(raw, &graph); err != nil {
			return fmt.Errorf("failed to parse graph file: %w", err)
		}

		graphResult, err := pipeline.IngestGraph(ctx, graph.Entities, graph.Relationships, strat)
		if err != nil {
			return fmt.Errorf("graph ingestion failed: %w", err)
		}
		result.EntityCount = graphResult.EntityCount
		result.RelationshipCount = graphResult.RelationshipCount
		result.Warnings = append(result.Warnings, graphResult.Warnings...)
	}

	cmd.Printf("Ingested document %s\n", result.DocumentID)
	cmd.Printf("  Chunks:        %d\n", result.ChunkCount)
	cmd.Printf("  Entities:      %d\n", result.EntityCount)
	cmd.Printf("  Relationships: %d\n", result.RelationshipCount)
	for _, warning := range result.Warnings {
		cmd.Printf("  Warning: %s\n", warning)
	}

	return nil
}

// publishIngest uploads the text to object storage and enqueues a job for
// the worker.
func publishIngest(cmd *cobra.Command, docID, filename, text string) error {
	ctx := cmd.Context()

	s3Client := storage.NewS3Client(ctx)
	textKey := fmt.Sprintf("documents/%s/text", docID)
	if _, err := storage.PutText(ctx, s3Client, textKey, text); err != nil {
		return fmt.Errorf("failed to upload text: %w", err)
	}

	var graphKey string
	if ingestGraph != "" {
		raw, err := os.ReadFile(ingestGraph)
		if err != nil {
			return fmt.Errorf("failed to read graph file: %w", err)
		}
		graphKey = fmt.Sprintf("documents/%s/graph", docID)
		if _, err := storage.PutText(ctx, s3Client, graphKey, string(raw)); err != nil {
			return fmt.Errorf("failed to upload graph: %w", err)
		}
	}

	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	job := queue.IngestJobMsg{
		Message:    "ingest",
		DocumentID: docID,
		Filename:   filename,
		TextKey:    textKey,
		GraphKey:   graphKey,
		Preset:     ingestPreset,
	}
	if err := queue.PublishIngestJob(ch, job); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	cmd.Printf("Queued ingestion job for document %s\n", docID)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	docID := args[0]

	objectKeys := []string{
		fmt.Sprintf("documents/%s/text", docID),
		fmt.Sprintf("documents/%s/graph", docID),
	}

	if deleteAsync {
		conn := queue.Init()
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("failed to open channel: %w", err)
		}
		defer ch.Close()

		job := queue.DeleteJobMsg{
			Message:    "delete",
			DocumentID: docID,
			ObjectKeys: objectKeys,
		}
		if err := queue.PublishDeleteJob(ch, job); err != nil {
			return fmt.Errorf("failed to publish job: %w", err)
		}

		cmd.Printf("Queued delete job for document %s\n", docID)
		return nil
	}

	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	if err := svc.storage.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted document %s\n", docID)
	return nil
}
