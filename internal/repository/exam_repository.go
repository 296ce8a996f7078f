package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/healthtech/filemanager/internal/domain"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ExamRepository defines the operations for exam metadata storage
type ExamRepository interface {
	// Create inserts a new exam and sets its ID
	Create(ctx context.Context, exam *domain.Exam) error

	// GetByUserAndID returns domain.ErrExamNotFound when no exam matches
	GetByUserAndID(ctx context.Context, userID, examID int64) (*domain.Exam, error)

	// GetByUserAndName returns domain.ErrExamNotFound when no exam matches
	GetByUserAndName(ctx context.Context, userID int64, name string) (*domain.Exam, error)

	// ListByUser lists a user's exams ordered by ID
	ListByUser(ctx context.Context, userID int64) ([]domain.Exam, error)

	// Delete removes an exam
	Delete(ctx context.Context, userID, examID int64) error

	// UserExists reports whether the user is registered
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// PostgreSQL error codes
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PostgresExamRepository implements ExamRepository using PostgreSQL
type PostgresExamRepository struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewPostgresExamRepository creates a new PostgreSQL repository
func NewPostgresExamRepository(db *sql.DB, logger *zap.SugaredLogger) *PostgresExamRepository {
	return &PostgresExamRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an exam row
func (r *PostgresExamRepository) Create(ctx context.Context, exam *domain.Exam) error {
	if exam == nil || exam.Name == "" || exam.URL == "" {
		return domain.ErrInvalidInput
	}

	if exam.SubmissionDate.IsZero() {
		exam.SubmissionDate = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO exames (id_usuario, nome_exame, url, data_submissao)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		exam.UserID, exam.Name, exam.URL, exam.SubmissionDate,
	).Scan(&exam.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqUniqueViolation:
				return fmt.Errorf("%w: %v", domain.ErrAlreadyExists, err)
			case pqForeignKeyViolation:
				return fmt.Errorf("%w: %v", domain.ErrUserNotFound, err)
			}
		}
		return fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}

	r.logger.Debugw("Exam created", "userID", exam.UserID, "examID", exam.ID, "name", exam.Name)
	return nil
}

// GetByUserAndID retrieves an exam by owner and ID
func (r *PostgresExamRepository) GetByUserAndID(ctx context.Context, userID, examID int64) (*domain.Exam, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, id_usuario, nome_exame, url, data_submissao
		FROM exames
		WHERE id_usuario = $1 AND id = $2`,
		userID, examID)

	return scanExam(row)
}

// GetByUserAndName retrieves an exam by owner and file name
func (r *PostgresExamRepository) GetByUserAndName(ctx context.Context, userID int64, name string) (*domain.Exam, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, id_usuario, nome_exame, url, data_submissao
		FROM exames
		WHERE id_usuario = $1 AND nome_exame = $2`,
		userID, name)

	return scanExam(row)
}

// ListByUser lists all exams of a user
func (r *PostgresExamRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Exam, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, id_usuario, nome_exame, url, data_submissao
		FROM exames
		WHERE id_usuario = $1
		ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	defer rows.Close()

	exams := make([]domain.Exam, 0)
	for rows.Next() {
		var exam domain.Exam
		if err := rows.Scan(&exam.ID, &exam.UserID, &exam.Name, &exam.URL, &exam.SubmissionDate); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
		}
		exam.SubmissionDate = exam.SubmissionDate.UTC()
		exams = append(exams, exam)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}

	return exams, nil
}

// Delete removes an exam row
func (r *PostgresExamRepository) Delete(ctx context.Context, userID, examID int64) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM exames WHERE id_usuario = $1 AND id = $2`,
		userID, examID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	if affected == 0 {
		return domain.ErrExamNotFound
	}

	return nil
}

// UserExists checks the usuarios table
func (r *PostgresExamRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM usuarios WHERE id = $1)`,
		userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}

	return exists, nil
}

// Ping verifies the database is reachable
func (r *PostgresExamRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanExam(row *sql.Row) (*domain.Exam, error) {
	var exam domain.Exam
	err := row.Scan(&exam.ID, &exam.UserID, &exam.Name, &exam.URL, &exam.SubmissionDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrExamNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}

	exam.SubmissionDate = exam.SubmissionDate.UTC()
	return &exam, nil
}
