package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/repository"
	"github.com/crosspostr/crosspostr/internal/transfer"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrValidation = errors.New("validation failed")

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, error)
	Cancel(ctx context.Context, userID, postID int64) error
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	Calendar(ctx context.Context, userID int64, from, to time.Time) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error)
}

type postService struct {
	db *sql.DB
	pr repository.PostRepository
	sa repository.SelectedAccountRepository
	ac repository.SocialAccountRepository
	ma repository.MediaAssetRepository
	pm repository.PostMediaRepository
	r2 *R2Service
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	sa repository.SelectedAccountRepository,
	ac repository.SocialAccountRepository,
	ma repository.MediaAssetRepository,
	pm repository.PostMediaRepository,
	r2 *R2Service) PostService {
	return &postService{
		db: db,
		pr: pr,
		sa: sa,
		ac: ac,
		ma: ma,
		pm: pm,
		r2: r2,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, error) {
	if pc == nil {
		return 0, fmt.Errorf("%w: post creation data is nil", ErrValidation)
	}
	if pc.Content == "" {
		return 0, fmt.Errorf("%w: content cannot be empty", ErrValidation)
	}

	timezone := pc.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return 0, fmt.Errorf("%w: unknown timezone %q", ErrValidation, timezone)
	}

	scheduledTime, err := time.ParseInLocation("2006-01-02T15:04", pc.ScheduledTime, location)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid scheduled time format", ErrValidation)
	}
	if !scheduledTime.After(time.Now()) {
		return 0, fmt.Errorf("%w: scheduled time must be in the future", ErrValidation)
	}

	var targetAccounts []int64
	if err := json.Unmarshal([]byte(pc.TargetAccounts), &targetAccounts); err != nil {
		return 0, fmt.Errorf("%w: invalid target accounts format", ErrValidation)
	}
	if len(targetAccounts) == 0 {
		return 0, fmt.Errorf("%w: no social accounts selected", ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	post := models.Post{
		UserID:        userID,
		Content:       pc.Content,
		Title:         pc.Title,
		ScheduledTime: scheduledTime,
		Timezone:      timezone,
		Status:        models.PostStatusScheduled,
	}

	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	if err = s.saveTargetAccounts(ctx, tx, userID, postID, targetAccounts); err != nil {
		return 0, err
	}

	if err = s.processFiles(ctx, tx, userID, postID, files); err != nil {
		return 0, fmt.Errorf("error processing files: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return postID, nil
}

func (s *postService) saveTargetAccounts(ctx context.Context, tx *sql.Tx, userID, postID int64, accounts []int64) error {
	for _, accountID := range accounts {
		exists, err := s.ac.CheckActiveByUserID(ctx, accountID, userID)
		if err != nil {
			return fmt.Errorf("error checking social account %d: %w", accountID, err)
		}
		if !exists {
			return fmt.Errorf("%w: social account %d is not an active account of this user", ErrValidation, accountID)
		}

		selected := models.SelectedAccount{
			PostID:    postID,
			AccountID: accountID,
		}
		if err := s.sa.Create(ctx, tx, &selected); err != nil {
			return fmt.Errorf("error saving selected account %d: %w", accountID, err)
		}
	}
	return nil
}

func (s *postService) processFiles(ctx context.Context, tx *sql.Tx, userID, postID int64, files []*multipart.FileHeader) error {
	allowedTypes := map[string]struct{}{
		"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
	}

	for i, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return fmt.Errorf("error opening file: %w", err)
		}
		defer fileContent.Close()

		fileBytes, err := io.ReadAll(fileContent)
		if err != nil {
			return fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return fmt.Errorf("%w: unsupported file type", ErrValidation)
		}
		if _, ok := allowedTypes[fileType.Extension]; !ok {
			return fmt.Errorf("%w: file type %s is not allowed", ErrValidation, fileType.Extension)
		}

		assetID, err := s.saveFile(ctx, tx, userID, fileType.MIME.Value, fileBytes)
		if err != nil {
			return fmt.Errorf("error uploading file: %w", err)
		}

		postMedia := models.PostMedia{
			PostID:       postID,
			AssetID:      assetID,
			DisplayOrder: i,
		}
		if err := s.pm.Create(ctx, tx, &postMedia); err != nil {
			return fmt.Errorf("error saving media file: %w", err)
		}
	}
	return nil
}

func (s *postService) saveFile(ctx context.Context, tx *sql.Tx, userID int64, mimeType string, file []byte) (int64, error) {
	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	if err := s.r2.Upload(ctx, key, file, mimeType); err != nil {
		return 0, err
	}

	ma := models.MediaAsset{
		UserID:   userID,
		FileName: key,
		FileType: mimeType,
		FileSize: int64(len(file)),
		FileURL:  s.r2.PublicURL(key),
	}

	return s.ma.Create(ctx, tx, &ma)
}

func (s *postService) Cancel(ctx context.Context, userID, postID int64) error {
	if postID == 0 {
		return fmt.Errorf("%w: post id is not valid", ErrValidation)
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		return fmt.Errorf("%w: post doesn't exist", ErrValidation)
	}

	cancelled, err := s.pr.Cancel(ctx, postID)
	if err != nil {
		return err
	}
	if !cancelled {
		return fmt.Errorf("%w: only scheduled posts can be cancelled", ErrValidation)
	}

	return nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) Calendar(ctx context.Context, userID int64, from, to time.Time) ([]*models.Post, error) {
	posts, err := s.pr.ListByDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing calendar: %w", err)
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error) {
	if postID == 0 {
		return nil, fmt.Errorf("%w: post id is not valid", ErrValidation)
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		return nil, fmt.Errorf("%w: post doesn't exist", ErrValidation)
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info: %w", err)
	}

	return post, nil
}
