package queue

import (
	"context"
	"encoding/json"
	"fmt"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rabbitmq/amqp091-go"

	"github.com/anmolg1997/kg-rag/internal/storage"
	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/ingest"
	"github.com/anmolg1997/kg-rag/pkg/leaselock"
	"github.com/anmolg1997/kg-rag/pkg/logger"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

// IngestJobMsg is an async ingestion job. TextKey points at the S3 object
// holding the document's extracted text; GraphKey, when set, points at a
// JSON payload of pre-extracted entities and relationships.
type IngestJobMsg struct {
	Message    string         `json:"message"`
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	TextKey    string         `json:"text_key"`
	GraphKey   string         `json:"graph_key,omitempty"`
	Preset     string         `json:"preset,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// DeleteJobMsg requests removal of a document and everything derived from it.
type DeleteJobMsg struct {
	Message    string   `json:"message"`
	DocumentID string   `json:"document_id"`
	ObjectKeys []string `json:"object_keys,omitempty"`
}

// graphPayload is the JSON shape of a GraphKey object.
type graphPayload struct {
	Entities      []common.Entity       `json:"entities"`
	Relationships []common.Relationship `json:"relationships"`
}

// PublishIngestJob enqueues an ingest job.
func PublishIngestJob(ch *amqp091.Channel, job IngestJobMsg) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal ingest job: %w", err)
	}
	return PublishFIFO(ch, IngestQueue, data)
}

// PublishDeleteJob enqueues a document delete job.
func PublishDeleteJob(ch *amqp091.Channel, job DeleteJobMsg) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal delete job: %w", err)
	}
	return PublishFIFO(ch, DeleteQueue, data)
}

// ProcessIngestMessage handles one ingest job: download the text, run the
// ingestion pipeline under the job's strategy, and ingest the graph payload
// if one is attached. A returned error sends the message to the retry queue.
//
// When locks is non-nil the job runs under a per-document lease so two
// workers never ingest the same document at once.
func ProcessIngestMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	pipeline *ingest.Pipeline,
	strategies *strategy.Manager,
	locks *leaselock.Client,
	msg string,
) error {
	data := new(IngestJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("unmarshal ingest job: %w", err)
	}

	if locks != nil && data.DocumentID != "" {
		return locks.WithLease(ctx, "ingest:"+data.DocumentID, leaselock.Options{Wait: true}, func(ctx context.Context) error {
			return processIngest(ctx, s3Client, pipeline, strategies, data)
		})
	}
	return processIngest(ctx, s3Client, pipeline, strategies, data)
}

func processIngest(
	ctx context.Context,
	s3Client *awss3.Client,
	pipeline *ingest.Pipeline,
	strategies *strategy.Manager,
	data *IngestJobMsg,
) error {
	strat := strategies.Extraction()
	if data.Preset != "" {
		combined, err := strategy.Preset(data.Preset)
		if err != nil {
			return fmt.Errorf("ingest job preset: %w", err)
		}
		strat = combined.Extraction
	}

	text, err := storage.GetText(ctx, s3Client, data.TextKey)
	if err != nil {
		return fmt.Errorf("download document text: %w", err)
	}

	doc := common.Document{
		ID:       data.DocumentID,
		Filename: data.Filename,
		Metadata: data.Metadata,
	}

	result, err := pipeline.IngestDocument(ctx, doc, text, strat)
	if err != nil {
		return fmt.Errorf("ingest document: %w", err)
	}
	logger.Info("[Queue] Document ingested",
		"document", result.DocumentID,
		"chunks", result.ChunkCount,
	)

	if data.GraphKey == "" {
		return nil
	}

	raw, err := storage.GetText(ctx, s3Client, data.GraphKey)
	if err != nil {
		return fmt.Errorf("download graph payload: %w", err)
	}
	var payload graphPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("unmarshal graph payload: %w", err)
	}

	graphResult, err := pipeline.IngestGraph(ctx, payload.Entities, payload.Relationships, strat)
	if err != nil {
		return fmt.Errorf("ingest graph: %w", err)
	}
	logger.Info("[Queue] Graph ingested",
		"document", result.DocumentID,
		"entities", graphResult.EntityCount,
		"relationships", graphResult.RelationshipCount,
	)
	for _, warning := range graphResult.Warnings {
		logger.Warn("[Queue] Graph validation finding", "document", result.DocumentID, "finding", warning)
	}

	return nil
}
