package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/healthtech/filemanager/internal/domain"
	"go.uber.org/zap"
)

// uploadFieldName is the multipart field carrying exam files
const uploadFieldName = "files"

// Handler defines the interface for the API handler
type Handler interface {
	UploadExams(w http.ResponseWriter, r *http.Request)
	DeleteExam(w http.ResponseWriter, r *http.Request)
	ListExams(w http.ResponseWriter, r *http.Request)
	GetBloodPanel(w http.ResponseWriter, r *http.Request)
}

// ExamService defines the exam operations used by the handler
type ExamService interface {
	UploadExams(ctx context.Context, userID int64, files []domain.UploadFile) (*domain.UploadReport, error)
	DeleteExam(ctx context.Context, userID, examID int64) (*domain.Exam, error)
	ListExams(ctx context.Context, userID int64) ([]domain.Exam, error)
	BloodPanel(ctx context.Context, userID, examID int64) (*domain.Exam, domain.BloodPanel, error)
}

// UploadLimits bounds a single upload request
type UploadLimits struct {
	// MaxFileSize is the per-file limit. Files are read one byte past it
	// so oversized files can still be reported.
	MaxFileSize int64
	// Timeout replaces the server read and write deadlines for uploads
	Timeout time.Duration
}

// handlerImpl implements the Handler interface
type handlerImpl struct {
	service ExamService
	limits  UploadLimits
	logger  *zap.SugaredLogger
}

// NewHandler creates a new API handler
func NewHandler(service ExamService, limits UploadLimits, logger *zap.SugaredLogger) Handler {
	return &handlerImpl{
		service: service,
		limits:  limits,
		logger:  logger,
	}
}

// UploadExams handles multipart uploads of one or more exam files
func (h *handlerImpl) UploadExams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.intParam(w, r, "userId", "user_id")
	if !ok {
		return
	}

	h.extendDeadlines(w, r)

	files, err := h.readUploadFiles(r)
	if err != nil {
		LoggerFrom(ctx, h.logger).Debugw("Failed to read multipart body", "userID", userID, "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondWithError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds the limit of %d bytes", tooLarge.Limit))
			return
		}
		h.respondWithError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	report, err := h.service.UploadExams(ctx, userID, files)
	if err != nil {
		if errors.Is(err, domain.ErrNoFiles) {
			h.respondWithError(w, http.StatusUnprocessableEntity, "no files provided")
			return
		}
		LoggerFrom(ctx, h.logger).Errorw("Failed to upload exams", "userID", userID, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if report.Status == http.StatusOK {
		h.respondWithJSON(w, http.StatusOK, domain.UploadResponse{
			Status:  http.StatusOK,
			Message: "File(s) uploaded successfully!",
			Data:    report.Data,
		})
		return
	}

	h.respondWithJSON(w, report.Status, domain.UploadResponse{
		Status:  report.Status,
		Message: report.Messages,
		Data:    report.Data,
	})
}

// DeleteExam handles removing an exam file and its metadata
func (h *handlerImpl) DeleteExam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.intParam(w, r, "userId", "user_id")
	if !ok {
		return
	}
	examID, ok := h.intParam(w, r, "fileId", "file_id")
	if !ok {
		return
	}

	exam, err := h.service.DeleteExam(ctx, userID, examID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrExamNotFound):
			h.respondWithError(w, http.StatusNotFound, "File not found")
		case exam == nil:
			LoggerFrom(ctx, h.logger).Errorw("Failed to look up exam for deletion", "userID", userID, "examID", examID, "error", err)
			h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
		case errors.Is(err, domain.ErrObjectNotFound):
			h.respondWithError(w, http.StatusNotFound,
				fmt.Sprintf("The file '%s' for user '%d' does not exist on AWS S3", exam.Name, userID))
		default:
			h.respondWithError(w, http.StatusInternalServerError,
				fmt.Sprintf("Error while deleting the file '%s' for user '%d' on AWS S3", exam.Name, userID))
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, domain.StatusResponse{
		Status:  http.StatusOK,
		Message: fmt.Sprintf("The file '%s' for user '%d' has been successfully deleted", exam.Name, userID),
	})
}

// ListExams handles listing a user's exams
func (h *handlerImpl) ListExams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.intParam(w, r, "userId", "user_id")
	if !ok {
		return
	}

	exams, err := h.service.ListExams(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			h.respondWithError(w, http.StatusNotFound, fmt.Sprintf("User with ID %d not found", userID))
			return
		}
		LoggerFrom(ctx, h.logger).Errorw("Failed to list exams", "userID", userID, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.respondWithJSON(w, http.StatusOK, domain.ExamListResponse{
		Status:  http.StatusOK,
		Message: fmt.Sprintf("The following tests found for user with ID %d", userID),
		Data:    exams,
	})
}

// GetBloodPanel handles extracting hemogram values from an exam PDF
func (h *handlerImpl) GetBloodPanel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.intParam(w, r, "userId", "user_id")
	if !ok {
		return
	}
	examID, ok := h.intParam(w, r, "examId", "exam_id")
	if !ok {
		return
	}

	exam, panel, err := h.service.BloodPanel(ctx, userID, examID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrExamNotFound):
			h.respondWithError(w, http.StatusNotFound, "File not found")
		case exam == nil:
			LoggerFrom(ctx, h.logger).Errorw("Failed to look up exam", "userID", userID, "examID", examID, "error", err)
			h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
		case errors.Is(err, domain.ErrObjectNotFound):
			h.respondWithError(w, http.StatusNotFound,
				fmt.Sprintf("The file '%s' for user '%d' does not exist on AWS S3", exam.Name, userID))
		case errors.Is(err, domain.ErrInvalidPDF):
			h.respondWithError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("The file '%s' could not be read as a PDF", exam.Name))
		default:
			h.respondWithError(w, http.StatusInternalServerError,
				fmt.Sprintf("Error while reading the file '%s' for user '%d' from AWS S3", exam.Name, userID))
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, panel.ToResponse(exam))
}

// Helper methods

// intParam parses an integer URL parameter, answering 422 when it is not one
func (h *handlerImpl) intParam(w http.ResponseWriter, r *http.Request, param, field string) (int64, bool) {
	value, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusUnprocessableEntity, field+" must be an integer")
		return 0, false
	}
	return value, true
}

// extendDeadlines lets a large upload outlive the server-wide timeouts
func (h *handlerImpl) extendDeadlines(w http.ResponseWriter, r *http.Request) {
	if h.limits.Timeout <= 0 {
		return
	}

	rc := http.NewResponseController(w)
	deadline := time.Now().Add(h.limits.Timeout)
	if err := rc.SetReadDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		LoggerFrom(r.Context(), h.logger).Warnw("Failed to extend upload read deadline", "error", err)
	}
	if err := rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		LoggerFrom(r.Context(), h.logger).Warnw("Failed to extend upload write deadline", "error", err)
	}
}

// readUploadFiles streams the multipart body and collects every "files" part.
// Parts are read one at a time so only file contents are held in memory.
func (h *handlerImpl) readUploadFiles(r *http.Request) ([]domain.UploadFile, error) {
	// A request that is not multipart carries no files
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, nil
	}

	var files []domain.UploadFile
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if part.FormName() != uploadFieldName || part.FileName() == "" {
			part.Close()
			continue
		}

		content, err := io.ReadAll(io.LimitReader(part, h.limits.MaxFileSize+1))
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read file %q: %w", part.FileName(), err)
		}

		files = append(files, domain.UploadFile{
			Filename: part.FileName(),
			Content:  content,
		})
	}

	return files, nil
}

// respondWithError sends an error response
func (h *handlerImpl) respondWithError(w http.ResponseWriter, code int, detail string) {
	respondWithJSON(w, h.logger, code, map[string]string{"detail": detail})
}

// respondWithJSON sends a JSON response
func (h *handlerImpl) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	respondWithJSON(w, h.logger, code, payload)
}

func respondWithJSON(w http.ResponseWriter, logger *zap.SugaredLogger, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorw("Failed to encode JSON response", "error", err)
	}
}
