// internal/training/service.go
package training

import (
	"context"
	"errors"
	"sort"
	"time"

	"rpas-compliance/internal/aifn"
	apperrors "rpas-compliance/internal/common/errors"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/docstore"
	"rpas-compliance/internal/models"

	"github.com/google/uuid"
)

// Generator produces quiz questions. Satisfied by *aifn.Client.
type Generator interface {
	GenerateQuizQuestions(ctx context.Context, req aifn.QuizRequest) (*aifn.QuizResponse, error)
}

// Service runs operator training quizzes: questions come from the function
// endpoint, attempts and scores are recorded per user.
type Service struct {
	store     docstore.Store
	generator Generator
	logger    logger.Logger
	now       func() time.Time
}

func NewService(store docstore.Store, generator Generator, log logger.Logger) *Service {
	return &Service{store: store, generator: generator, logger: log, now: time.Now}
}

// StartQuiz generates questions for a topic and opens an attempt.
func (s *Service) StartQuiz(ctx context.Context, orgID, userID, topic string, questionCount int) (*models.QuizAttempt, error) {
	if orgID == "" {
		return nil, apperrors.NewMissingOrganizationError("start quiz")
	}
	if topic == "" {
		return nil, apperrors.NewInvalidInputError("quiz requires a topic")
	}
	if questionCount <= 0 {
		questionCount = 5
	}

	resp, err := s.generator.GenerateQuizQuestions(ctx, aifn.QuizRequest{
		Topic:         topic,
		QuestionCount: questionCount,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Questions) == 0 {
		return nil, apperrors.NewFunctionCallFailedError(aifn.FnGenerateQuizQuestions, errors.New("empty question set"))
	}

	attempt := &models.QuizAttempt{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		UserID:         userID,
		Topic:          topic,
	}
	for _, q := range resp.Questions {
		attempt.Questions = append(attempt.Questions, models.QuizQuestion{
			ID:            uuid.New().String(),
			Prompt:        q.Question,
			Choices:       q.Options,
			CorrectChoice: q.CorrectOption,
			Explanation:   q.Explanation,
		})
	}

	data, err := docstore.Encode(attempt)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Create(ctx, &docstore.Document{
		Collection: docstore.CollectionQuizAttempts,
		ID:         attempt.ID,
		OrgID:      orgID,
		Data:       data,
		CreatedBy:  userID,
	})
	if err != nil {
		return nil, err
	}
	attempt.CreatedAt = stored.CreatedAt

	s.logger.Info("quiz started", map[string]interface{}{
		"attemptId": attempt.ID,
		"topic":     topic,
		"questions": len(attempt.Questions),
	})
	return attempt, nil
}

// SubmitAnswers scores and closes an attempt. An attempt is scored once;
// re-submission is rejected.
func (s *Service) SubmitAnswers(ctx context.Context, orgID, attemptID string, answers []int) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(docstore.CollectionQuizAttempts, attemptID)
		if err != nil {
			return err
		}
		if doc.OrgID != orgID {
			return apperrors.NewNotFoundError(docstore.CollectionQuizAttempts, attemptID)
		}
		if err := docstore.Decode(doc.Data, &attempt); err != nil {
			return err
		}
		if !attempt.CompletedAt.IsZero() {
			return apperrors.NewImmutableFieldError("answers")
		}
		if len(answers) != len(attempt.Questions) {
			return apperrors.NewInvalidInputError("answer count does not match question count")
		}

		score := 0
		for i, q := range attempt.Questions {
			if answers[i] == q.CorrectChoice {
				score++
			}
		}
		attempt.Answers = answers
		attempt.Score = score
		attempt.CompletedAt = s.now().UTC()

		doc.Data, err = docstore.Encode(&attempt)
		if err != nil {
			return err
		}
		doc.UpdatedBy = attempt.UserID
		return tx.Update(doc)
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetAttempt loads one attempt, enforcing the org scope.
func (s *Service) GetAttempt(ctx context.Context, orgID, attemptID string) (*models.QuizAttempt, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionQuizAttempts, attemptID)
	if err != nil {
		return nil, err
	}
	if doc.OrgID != orgID {
		return nil, apperrors.NewNotFoundError(docstore.CollectionQuizAttempts, attemptID)
	}
	var attempt models.QuizAttempt
	if err := docstore.Decode(doc.Data, &attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

// ListAttempts returns a user's attempts, newest first.
func (s *Service) ListAttempts(ctx context.Context, orgID, userID string) ([]models.QuizAttempt, error) {
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionQuizAttempts,
		OrgID:      orgID,
		Filters:    []docstore.Filter{{Field: "userId", Value: userID}},
	})
	if err != nil {
		return nil, err
	}
	attempts := make([]models.QuizAttempt, 0, len(docs))
	for _, doc := range docs {
		var a models.QuizAttempt
		if err := docstore.Decode(doc.Data, &a); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].CreatedAt.After(attempts[j].CreatedAt)
	})
	return attempts, nil
}
