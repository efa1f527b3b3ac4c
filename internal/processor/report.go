package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/internal/storage"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/google/uuid"
	"log/slog"
	"time"
)

// Uploader stores report artifacts. *storage.Service implements it.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (*storage.UploadResult, error)
}

type ReportProcessor struct {
	uploader Uploader
	log      *slog.Logger
	now      func() time.Time
}

// DeletionReport is the artifact written for a deleted user.
type DeletionReport struct {
	ReportID    string    `json:"reportId"`
	UserID      int64     `json:"userId"`
	DeletedAt   time.Time `json:"deletedAt"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// NewReportProcessor logs reports when uploader is nil.
func NewReportProcessor(uploader Uploader, log *slog.Logger) *ReportProcessor {
	return &ReportProcessor{
		uploader: uploader,
		log:      log.With(logger.Scope("processor.report")),
		now:      time.Now,
	}
}

func (p *ReportProcessor) Process(ctx context.Context, name string, payload json.RawMessage) error {
	if name != types.JobDeletionReport {
		p.log.Warn("ignoring unknown report job", slog.String("name", name))
		return nil
	}
	var in types.DeletionReportPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return custom_errors.NewProcessor("invalid report payload", err)
	}

	report := DeletionReport{
		ReportID:    uuid.NewString(),
		UserID:      in.UserID,
		DeletedAt:   in.DeletedAt,
		GeneratedAt: p.now().UTC(),
	}
	p.log.Info("deletion report generated",
		slog.Int64("userId", report.UserID),
		slog.String("deletedAt", report.DeletedAt.UTC().Format(time.RFC3339)))

	if p.uploader == nil {
		return nil
	}
	body, err := json.Marshal(report)
	if err != nil {
		return custom_errors.NewProcessor("encode report", err)
	}
	key := fmt.Sprintf("reports/deletions/%d/%s.json", report.UserID, report.ReportID)
	res, err := p.uploader.Upload(ctx, key, body, "application/json")
	if err != nil {
		return custom_errors.NewProcessor("upload report", err)
	}
	p.log.Info("deletion report stored", slog.String("url", res.StorageURL))
	return nil
}
