package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"priceradar/domain"
)

type ExecutionRepository struct {
	DB *gorm.DB
}

func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{DB: db}
}

func (r *ExecutionRepository) CreateExecution(ctx context.Context, exec *domain.Execution) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Omit("Runs").Create(exec).Error; err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) UpdateExecution(ctx context.Context, exec *domain.Execution) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	row := r.DB.WithContext(ctx).Model(&domain.Execution{}).
		Where("id = ?", exec.ID).
		Updates(map[string]interface{}{
			"status":   exec.Status,
			"end_time": exec.EndTime,
			"notes":    exec.Notes,
		})
	if err := row.Error; err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	if row.RowsAffected == 0 {
		return fmt.Errorf("execution %s not found", exec.ID)
	}

	return nil
}

func (r *ExecutionRepository) CreateCompetitorRun(ctx context.Context, run *domain.CompetitorRun) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create competitor run: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) UpdateCompetitorRun(ctx context.Context, run *domain.CompetitorRun) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	row := r.DB.WithContext(ctx).Model(&domain.CompetitorRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":         run.Status,
			"start_time":     run.StartTime,
			"end_time":       run.EndTime,
			"processed_keys": run.ProcessedKeys,
			"succeeded_keys": run.SucceededKeys,
			"offer_count":    run.OfferCount,
			"error_count":    run.ErrorCount,
			"error":          run.Error,
		})
	if err := row.Error; err != nil {
		return fmt.Errorf("failed to update competitor run: %w", err)
	}
	if row.RowsAffected == 0 {
		return fmt.Errorf("competitor run %s not found", run.ID)
	}

	return nil
}

func (r *ExecutionRepository) GetExecution(ctx context.Context, id string) (*domain.Execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var exec domain.Execution
	err := r.DB.WithContext(ctx).Preload("Runs").First(&exec, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query execution: %w", err)
	}

	return &exec, nil
}

// RecentExecutions returns the latest executions with their competitor runs,
// newest first.
func (r *ExecutionRepository) RecentExecutions(ctx context.Context, limit int) ([]domain.Execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if limit <= 0 {
		limit = 20
	}

	var execs []domain.Execution
	err := r.DB.WithContext(ctx).
		Preload("Runs").
		Order("start_time DESC").
		Limit(limit).
		Find(&execs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	return execs, nil
}

// ExecutionsSince returns executions started within the window, newest first.
func (r *ExecutionRepository) ExecutionsSince(ctx context.Context, since time.Time) ([]domain.Execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var execs []domain.Execution
	err := r.DB.WithContext(ctx).
		Preload("Runs").
		Where("start_time >= ?", since).
		Order("start_time DESC").
		Find(&execs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	return execs, nil
}
