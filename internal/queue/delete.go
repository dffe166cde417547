package queue

import (
	"context"
	"encoding/json"
	"fmt"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/anmolg1997/kg-rag/internal/storage"
	"github.com/anmolg1997/kg-rag/pkg/logger"
	"github.com/anmolg1997/kg-rag/pkg/store"
)

// ProcessDeleteMessage removes a document with its chunks, entities, and
// relationships, then cleans up the job's S3 objects. Object cleanup
// failures are logged but do not fail the job; the document purge already
// happened.
func ProcessDeleteMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	graphStorage store.GraphStorage,
	msg string,
) error {
	data := new(DeleteJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("unmarshal delete job: %w", err)
	}
	if data.DocumentID == "" {
		return fmt.Errorf("delete job without document id")
	}

	if err := graphStorage.DeleteDocument(ctx, data.DocumentID); err != nil {
		return fmt.Errorf("delete document %s: %w", data.DocumentID, err)
	}
	logger.Info("[Queue] Document deleted", "document", data.DocumentID)

	for _, key := range data.ObjectKeys {
		if err := storage.DeleteFile(ctx, s3Client, key); err != nil {
			logger.Warn("[Queue] Failed to delete object", "key", key, "err", err)
		}
	}

	return nil
}
