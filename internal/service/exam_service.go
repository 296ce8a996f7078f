package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/healthtech/filemanager/internal/domain"
	"github.com/healthtech/filemanager/internal/metrics"
	"github.com/healthtech/filemanager/internal/processor"
	"github.com/healthtech/filemanager/internal/repository"
	"github.com/healthtech/filemanager/internal/storage"
	"go.uber.org/zap"
)

// ExamService handles exam file storage and metadata management
type ExamService struct {
	repo      repository.ExamRepository
	storage   storage.Interface
	processor processor.Processor
	policy    *domain.UploadPolicy
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
}

// NewExamService creates a new exam service. A nil policy selects the default policy.
func NewExamService(
	repo repository.ExamRepository,
	storage storage.Interface,
	processor processor.Processor,
	policy *domain.UploadPolicy,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
) *ExamService {
	if policy == nil {
		policy = domain.DefaultUploadPolicy()
	}

	return &ExamService{
		repo:      repo,
		storage:   storage,
		processor: processor,
		policy:    policy,
		metrics:   m,
		logger:    logger,
	}
}

// UploadExams validates and stores each file in order. Failures are reported
// per file and never stop the remaining files from being processed.
func (s *ExamService) UploadExams(ctx context.Context, userID int64, files []domain.UploadFile) (*domain.UploadReport, error) {
	if len(files) == 0 {
		return nil, domain.ErrNoFiles
	}

	report := &domain.UploadReport{
		Status:   http.StatusOK,
		Messages: make([]string, 0, len(files)),
		Data:     make([]domain.Exam, 0, len(files)),
	}

	for _, file := range files {
		exam, status, message := s.uploadExam(ctx, userID, file)
		report.Messages = append(report.Messages, message)

		switch status {
		case http.StatusOK:
			report.Data = append(report.Data, *exam)
			s.metrics.ObserveUpload(metrics.OutcomeSuccess, len(file.Content))
		case http.StatusBadRequest:
			if report.Status != http.StatusInternalServerError {
				report.Status = http.StatusBadRequest
			}
			s.metrics.ObserveUpload(metrics.OutcomeRejected, len(file.Content))
		default:
			report.Status = http.StatusInternalServerError
			s.metrics.ObserveUpload(metrics.OutcomeError, len(file.Content))
		}
	}

	s.logger.Infow("Processed exam upload",
		"userID", userID,
		"files", len(files),
		"stored", len(report.Data),
		"status", report.Status,
	)

	return report, nil
}

// uploadExam stores one file and returns its exam, per-file status and message
func (s *ExamService) uploadExam(ctx context.Context, userID int64, file domain.UploadFile) (*domain.Exam, int, string) {
	name := file.Filename

	if !s.policy.Allows(name) {
		return nil, http.StatusBadRequest, s.policy.RejectionMessage(name)
	}

	_, err := s.repo.GetByUserAndName(ctx, userID, name)
	switch {
	case err == nil:
		return nil, http.StatusBadRequest, duplicateMessage(name, userID)
	case !errors.Is(err, domain.ErrExamNotFound):
		s.logger.Errorw("Failed to check for existing exam", "userID", userID, "name", name, "error", err)
		return nil, http.StatusInternalServerError, saveErrorMessage(name, userID)
	}

	if int64(len(file.Content)) > s.policy.MaxFileSize() {
		return nil, http.StatusBadRequest,
			fmt.Sprintf("The File '%s' exceeds the size limit of '%s'", name, s.policy.MaxFileSizeLabel())
	}

	key := domain.ObjectKey(userID, name)
	url, err := s.storage.PresignGet(ctx, key)
	if err != nil {
		s.logger.Errorw("Failed to presign exam URL", "userID", userID, "key", key, "error", err)
		return nil, http.StatusInternalServerError, uploadErrorMessage(name, userID)
	}

	// The row is reserved before the object is written so a concurrent
	// upload of the same name never overwrites a stored file.
	exam := &domain.Exam{
		UserID: userID,
		Name:   name,
		URL:    url,
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, http.StatusBadRequest, duplicateMessage(name, userID)
		}
		s.logger.Errorw("Failed to save exam metadata", "userID", userID, "name", name, "error", err)
		return nil, http.StatusInternalServerError, saveErrorMessage(name, userID)
	}

	if err := s.storage.Put(ctx, key, file.Content, domain.GuessContentType(name)); err != nil {
		s.logger.Errorw("Failed to upload exam to storage", "userID", userID, "key", key, "error", err)
		s.releaseExam(ctx, exam)
		return nil, http.StatusInternalServerError, uploadErrorMessage(name, userID)
	}

	s.logger.Debugw("Exam stored", "userID", userID, "examID", exam.ID, "key", key, "size", len(file.Content))

	return exam, http.StatusOK,
		fmt.Sprintf("The file '%s' has been successfully uploaded for user '%d'", name, userID)
}

// releaseExam removes a reserved row whose object could not be stored
func (s *ExamService) releaseExam(ctx context.Context, exam *domain.Exam) {
	if err := s.repo.Delete(ctx, exam.UserID, exam.ID); err != nil {
		s.logger.Warnw("Failed to remove exam without object", "userID", exam.UserID, "examID", exam.ID, "error", err)
	}
}

// DeleteExam removes an exam file from storage and its metadata.
// The exam is returned whenever it was found so callers can name it.
func (s *ExamService) DeleteExam(ctx context.Context, userID, examID int64) (*domain.Exam, error) {
	exam, err := s.repo.GetByUserAndID(ctx, userID, examID)
	if err != nil {
		if errors.Is(err, domain.ErrExamNotFound) {
			s.metrics.ObserveDelete(metrics.OutcomeNotFound)
		} else {
			s.metrics.ObserveDelete(metrics.OutcomeError)
		}
		return nil, err
	}

	key := domain.ObjectKey(userID, exam.Name)
	if err := s.storage.Exists(ctx, key); err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			s.metrics.ObserveDelete(metrics.OutcomeNotFound)
		} else {
			s.logger.Errorw("Failed to check exam object", "userID", userID, "key", key, "error", err)
			s.metrics.ObserveDelete(metrics.OutcomeError)
		}
		return exam, err
	}

	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Errorw("Failed to delete exam object", "userID", userID, "key", key, "error", err)
		s.metrics.ObserveDelete(metrics.OutcomeError)
		return exam, err
	}

	if err := s.repo.Delete(ctx, userID, examID); err != nil {
		s.logger.Errorw("Failed to delete exam metadata", "userID", userID, "examID", examID, "error", err)
		s.metrics.ObserveDelete(metrics.OutcomeError)
		return exam, err
	}

	s.metrics.ObserveDelete(metrics.OutcomeSuccess)
	s.logger.Infow("Exam deleted", "userID", userID, "examID", examID, "key", key)

	return exam, nil
}

// ListExams returns a user's exams ordered by ID
func (s *ExamService) ListExams(ctx context.Context, userID int64) ([]domain.Exam, error) {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	return s.repo.ListByUser(ctx, userID)
}

// BloodPanel reads an exam's PDF and extracts its hemogram values
func (s *ExamService) BloodPanel(ctx context.Context, userID, examID int64) (*domain.Exam, domain.BloodPanel, error) {
	exam, err := s.repo.GetByUserAndID(ctx, userID, examID)
	if err != nil {
		return nil, domain.BloodPanel{}, err
	}

	key := domain.ObjectKey(userID, exam.Name)
	data, err := s.storage.Get(ctx, key)
	if err != nil {
		s.logger.Errorw("Failed to fetch exam object", "userID", userID, "key", key, "error", err)
		s.metrics.ObserveExtraction(metrics.OutcomeError)
		return exam, domain.BloodPanel{}, err
	}

	text, err := s.processor.ExtractText(ctx, data)
	if err != nil {
		s.logger.Warnw("Failed to read exam PDF", "userID", userID, "key", key, "error", err)
		s.metrics.ObserveExtraction(metrics.OutcomeRejected)
		return exam, domain.BloodPanel{}, err
	}

	panel := s.processor.ParseBloodPanel(text)
	s.metrics.ObserveExtraction(metrics.OutcomeSuccess)
	s.logger.Debugw("Extracted blood panel", "userID", userID, "examID", examID, "complete", panel.IsComplete())

	return exam, panel, nil
}

func duplicateMessage(name string, userID int64) string {
	return fmt.Sprintf("A test with the name '%s' already exists for user '%d'", name, userID)
}

func uploadErrorMessage(name string, userID int64) string {
	return fmt.Sprintf("Error while uploading the file '%s' to AWS S3 for user '%d'", name, userID)
}

func saveErrorMessage(name string, userID int64) string {
	return fmt.Sprintf("Error while saving the file '%s' for user '%d'", name, userID)
}
