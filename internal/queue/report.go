package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetpulse/backend/internal/storage"
	"github.com/meetpulse/backend/internal/util"
	"github.com/meetpulse/backend/pkg/engine"
	"github.com/meetpulse/backend/pkg/leaselock"
	"github.com/meetpulse/backend/pkg/logger"
	"github.com/meetpulse/backend/pkg/store"
	reportstore "github.com/meetpulse/backend/pkg/store/pgx"
)

// ReportJobMsg is the payload published to report_queue. The request document
// itself lives in object storage under InputKey.
type ReportJobMsg struct {
	ReportID string `json:"report_id"`
	InputKey string `json:"input_key"`
}

// ReportRequest is the archived request document: the engine configuration
// together with the raw activity records.
type ReportRequest struct {
	Config engine.Config `json:"config"`
	Input  engine.Input  `json:"input"`
}

// reportLeaseTTL bounds how long a crashed worker keeps a report locked.
const reportLeaseTTL = 10 * time.Minute

func reportLockKey(reportID string) string {
	return "report:" + reportID
}

// ProcessReportMessage runs one queued report job: it loads the archived
// request from S3, runs the ranking engine, stores the finished report back to
// S3 and updates the database row. A lease on the report id keeps redelivered
// messages from being processed twice; any other error marks the row as
// failed before the message is handed to the retry machinery.
func ProcessReportMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(ReportJobMsg)
	if err := json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}
	if data.ReportID == "" {
		return fmt.Errorf("report message without report_id")
	}

	lock := leaselock.New(conn)
	err := lock.WithLease(ctx, reportLockKey(data.ReportID), leaselock.Options{
		TTL:         reportLeaseTTL,
		TokenPrefix: "worker-",
	}, func(ctx context.Context) error {
		return runReportJob(ctx, s3Client, conn, data)
	})
	if errors.Is(err, leaselock.ErrBusy) {
		return fmt.Errorf("report %s is already being processed: %w", data.ReportID, err)
	}
	return err
}

func runReportJob(
	ctx context.Context,
	s3Client *awss3.Client,
	conn *pgxpool.Pool,
	data *ReportJobMsg,
) (err error) {
	db := reportstore.NewReportDBStorageWithConnection(conn)

	defer func() {
		if err == nil {
			return
		}
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if updateErr := db.MarkReportFailed(updateCtx, data.ReportID, err.Error()); updateErr != nil {
			logger.Warn("[Queue] Failed to mark report as failed", "report", data.ReportID, "err", updateErr)
		}
	}()

	logger.Info("[Queue] Processing report job", "report", data.ReportID, "input_key", data.InputKey)

	if err = db.MarkReportProcessing(ctx, data.ReportID); err != nil {
		return fmt.Errorf("failed to claim report: %w", err)
	}

	raw, err := util.RetryWithContext(ctx, 3, func(ctx context.Context) ([]byte, error) {
		return storage.GetJSON(ctx, s3Client, data.InputKey)
	})
	if err != nil {
		return fmt.Errorf("failed to load report request: %w", err)
	}

	req := new(ReportRequest)
	if err = json.Unmarshal(raw, req); err != nil {
		return fmt.Errorf("failed to parse report request: %w", err)
	}

	eng, err := engine.NewEngine(req.Config)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	report, err := eng.BuildReport(ctx, req.Input)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	reportKey := storage.ReportKey(data.ReportID)
	err = util.RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
		return storage.PutJSON(ctx, s3Client, reportKey, body)
	})
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	if err = db.SaveReportCollaborators(ctx, data.ReportID, store.CollaboratorRecordsFromReport(data.ReportID, report)); err != nil {
		return fmt.Errorf("failed to store collaborators: %w", err)
	}

	if err = db.MarkReportCompleted(ctx, data.ReportID, len(report.Collaborators), reportKey); err != nil {
		return fmt.Errorf("failed to complete report: %w", err)
	}

	logger.Info("[Queue] Report job completed", "report", data.ReportID, "collaborators", len(report.Collaborators))
	return nil
}
