package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/costlens/costlens/internal/sqlconn"
)

// Row is one result row keyed by column name. Column order is irrelevant.
type Row map[string]any

// PartitionFailure records one partition whose execution failed. Its rows
// are omitted from the merged output.
type PartitionFailure struct {
	Partition Partition `json:"partition"`
	Error     string    `json:"error"`
}

// ExecutionInfo is the metadata returned with every execution.
type ExecutionInfo struct {
	Parallel   bool          `json:"parallel"`
	Partitions int           `json:"partitions"`
	Elapsed    time.Duration `json:"elapsed"`
}

// ExecutionResult is the merged outcome of a query execution. Partition
// failures are always reported in full so callers can detect partial
// results.
type ExecutionResult struct {
	Success  bool               `json:"success"`
	Rows     []Row              `json:"rows"`
	RowCount int                `json:"row_count"`
	Error    string             `json:"error,omitempty"`
	Failures []PartitionFailure `json:"partition_failures,omitempty"`
	Info     ExecutionInfo      `json:"execution_info"`
}

// ExecutorConfig tunes the parallel execution behavior.
type ExecutorConfig struct {
	// Workers bounds the number of partitions executed concurrently.
	Workers int
	// MaxFailureRatio is the fraction of failed partitions above which the
	// whole call reports failure. 0 fails the call on the first partition
	// failure, 1.0 tolerates any number of failures as long as the merge
	// succeeds, and negative values select the 0.5 default.
	MaxFailureRatio float64
}

const (
	defaultWorkers         = 4
	defaultMaxFailureRatio = 0.5
)

// Executor runs statements against the warehouse, fanning wide date-range
// queries out as per-month partitions. Every partition task opens its own
// handle; nothing is shared across concurrent partitions.
type Executor struct {
	open   sqlconn.Opener
	cfg    ExecutorConfig
	logger *slog.Logger
}

// NewExecutor builds an executor over the given opener.
func NewExecutor(open sqlconn.Opener, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxFailureRatio < 0 {
		cfg.MaxFailureRatio = defaultMaxFailureRatio
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{open: open, cfg: cfg, logger: logger}
}

// Execute runs the statement, splitting it into concurrent calendar-month
// partitions when parallel is requested and the date range is wide enough.
// Rows from different partitions interleave in completion order.
func (e *Executor) Execute(ctx context.Context, sqlText string, parallel bool) ExecutionResult {
	start := time.Now()

	plan := PlanPartitions(sqlText)
	if !parallel || !plan.Partitioned() {
		rows, err := e.executeSingle(ctx, sqlText)
		elapsed := time.Since(start)
		observeExecution("single", elapsed)
		if err != nil {
			return ExecutionResult{
				Error: err.Error(),
				Rows:  []Row{},
				Info:  ExecutionInfo{Parallel: false, Partitions: 0, Elapsed: elapsed},
			}
		}
		return ExecutionResult{
			Success:  true,
			Rows:     rows,
			RowCount: len(rows),
			Info:     ExecutionInfo{Parallel: false, Partitions: 1, Elapsed: elapsed},
		}
	}

	merged, failures := e.executeParallel(ctx, plan)
	elapsed := time.Since(start)
	observeExecution("parallel", elapsed)
	observePartitions(len(plan.Partitions), len(failures))

	result := ExecutionResult{
		Success:  true,
		Rows:     merged,
		RowCount: len(merged),
		Failures: failures,
		Info:     ExecutionInfo{Parallel: true, Partitions: len(plan.Partitions), Elapsed: elapsed},
	}

	ratio := float64(len(failures)) / float64(len(plan.Partitions))
	if len(failures) > 0 && ratio > e.cfg.MaxFailureRatio {
		result.Success = false
		result.Error = fmt.Sprintf("%d of %d partitions failed", len(failures), len(plan.Partitions))
	}
	return result
}

// executeParallel fans the partitions out over a bounded worker pool. A
// failing partition is recorded, logged, and skipped; it never aborts its
// siblings.
func (e *Executor) executeParallel(ctx context.Context, plan Plan) ([]Row, []PartitionFailure) {
	var (
		mu       sync.Mutex
		merged   []Row
		failures []PartitionFailure
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.cfg.Workers)

	for _, partition := range plan.Partitions {
		group.Go(func() error {
			rows, err := e.executeSingle(groupCtx, partition.Rewrite(plan.SQL))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, PartitionFailure{Partition: partition, Error: err.Error()})
				e.logger.WarnContext(groupCtx, "partition execution failed",
					slog.String("start", partition.Start.Format(dateLayout)),
					slog.String("end", partition.End.Format(dateLayout)),
					slog.Any("error", err),
				)
				return nil
			}
			merged = append(merged, rows...)
			return nil
		})
	}
	_ = group.Wait()

	return merged, failures
}

// executeSingle opens a dedicated handle, runs the statement, and releases
// the handle on return.
func (e *Executor) executeSingle(ctx context.Context, sqlText string) ([]Row, error) {
	db, err := e.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows)
}

// ExecuteWithLimit caps the statement's row count when it has no LIMIT of
// its own and runs it unparallelized. Used for previews.
func (e *Executor) ExecuteWithLimit(ctx context.Context, sqlText string, limit int) ExecutionResult {
	if !limitPattern.MatchString(sqlText) {
		sqlText = strings.TrimRight(strings.TrimSpace(sqlText), ";") + " LIMIT " + strconv.Itoa(limit)
	}
	return e.Execute(ctx, sqlText, false)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func normalizeValue(value any) any {
	if raw, ok := value.([]byte); ok {
		return string(raw)
	}
	return value
}
