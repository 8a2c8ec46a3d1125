package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/kr-backtest/internal/config"
)

// Archiver uploads a completed backtest's full Response as a JSON object to
// S3-compatible object storage, keyed by session id, for long-term retention
// beyond the backtest database's retention window. It is optional: a nil
// *Archiver (or an unset bucket) disables archival entirely and Engine.Run
// skips it without error.
type Archiver struct {
	client *s3.Client
	bucket string
	log    zerolog.Logger
}

// NewArchiver builds an Archiver from application config, or returns nil if
// cfg.S3Bucket is empty, so callers can wire it unconditionally and let
// Engine.Run's nil check decide whether archival runs.
func NewArchiver(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Archiver, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config for result archival: %w", err)
	}
	return &Archiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		log:    log.With().Str("component", "archiver").Logger(),
	}, nil
}

// Archive uploads resp as a single JSON object at
// backtests/<sessionID>/result.json. Upload failures are the caller's to
// decide on (Engine.Run logs and continues rather than failing the whole
// backtest over an archival hiccup).
func (a *Archiver) Archive(ctx context.Context, sessionID string, resp *Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshalling result for archival: %w", err)
	}

	uploadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	uploader := manager.NewUploader(a.client)
	key := fmt.Sprintf("backtests/%s/result.json", sessionID)
	_, err = uploader.Upload(uploadCtx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading result archive: %w", err)
	}
	a.log.Info().Str("session_id", sessionID).Str("key", key).Msg("archived backtest result")
	return nil
}
