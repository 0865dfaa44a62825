package serviceimpl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RCXD/Bros-back/domain/models"
	"github.com/RCXD/Bros-back/domain/ports"
	"github.com/RCXD/Bros-back/domain/repositories"
	"github.com/RCXD/Bros-back/domain/services"
	"github.com/RCXD/Bros-back/pkg/logger"
	"github.com/RCXD/Bros-back/pkg/utils"
)

// CompressQueue accepts background recompression jobs.
type CompressQueue interface {
	Enqueue(job CompressJob) error
}

type ImageServiceConfig struct {
	MaxUploadSize   int64
	BudgetPolicy    models.BudgetPolicy
	AsyncCategories []string
	ProfileBackup   bool
	// DefaultProfileURL is returned for owners without a profile image.
	DefaultProfileURL string
}

type ImageServiceImpl struct {
	config     ImageServiceConfig
	async      map[models.ImageCategory]bool
	imageRepo  repositories.ImageRepository
	storage    ports.StoragePort
	compressor ports.CompressorPort
	deletion   *ImageDeletionManager
	queue      CompressQueue
	cache      ports.ImageCachePort
	now        func() time.Time

	// serialises profile replacement per owner; entries live only while held
	profileMu    sync.Mutex
	profileLocks map[uuid.UUID]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// NewImageService wires the pipeline. queue and cache may be nil: without a
// queue every upload is compressed synchronously.
func NewImageService(
	config ImageServiceConfig,
	imageRepo repositories.ImageRepository,
	storage ports.StoragePort,
	compressor ports.CompressorPort,
	deletion *ImageDeletionManager,
	queue CompressQueue,
	cache ports.ImageCachePort,
) *ImageServiceImpl {
	if config.BudgetPolicy == "" {
		config.BudgetPolicy = models.BudgetBestEffort
	}
	async := make(map[models.ImageCategory]bool, len(config.AsyncCategories))
	for _, c := range config.AsyncCategories {
		async[models.ParseCategory(c)] = true
	}
	return &ImageServiceImpl{
		config:     config,
		async:      async,
		imageRepo:  imageRepo,
		storage:    storage,
		compressor: compressor,
		deletion:   deletion,
		queue:      queue,
		cache:      cache,
		now:        time.Now,

		profileLocks: make(map[uuid.UUID]*ownerLock),
	}
}

var _ services.ImageService = (*ImageServiceImpl)(nil)

// encoded is an upload ready to be written.
type encoded struct {
	data      []byte
	ext       string
	width     int
	height    int
	quality   int
	budgetMet bool
	mode      services.UploadMode
}

func (s *ImageServiceImpl) UploadImage(ctx context.Context, in *services.UploadImageInput) (*services.UploadResult, error) {
	if in == nil || in.Body == nil {
		return nil, models.ErrEmptyUpload
	}

	category := models.ParseCategory(string(in.Category))
	if _, err := s.validateFormat(in.Filename, in.ContentType); err != nil {
		logger.WarnContext(ctx, "Rejected image upload", "filename", in.Filename, "content_type", in.ContentType, "error", err)
		return nil, err
	}

	data, err := s.readUpload(in.Body)
	if err != nil {
		logger.WarnContext(ctx, "Failed to read image upload", "filename", in.Filename, "error", err)
		return nil, err
	}

	budget := in.Budget
	if budget == "" {
		budget = s.config.BudgetPolicy
	}

	var enc *encoded
	if s.resolveMode(category, in.Mode, budget) == services.UploadModeAsync {
		if enc, err = s.prepareAsync(ctx, data); err != nil {
			return nil, err
		}
	}
	if enc == nil {
		if enc, err = s.prepareSync(ctx, data, category, budget); err != nil {
			return nil, err
		}
	}

	var record *models.ImageRecord
	var url string
	if category == models.CategoryProfile {
		record, url, err = s.storeProfile(ctx, in, enc)
	} else {
		record, url, err = s.store(ctx, in, category, enc)
	}
	if err != nil {
		return nil, err
	}

	return &services.UploadResult{
		Record:    record,
		URL:       url,
		Mode:      enc.mode,
		Quality:   enc.quality,
		BudgetMet: enc.budgetMet,
	}, nil
}

// validateFormat checks the filename extension, or the declared content
// type when the name carries no extension.
func (s *ImageServiceImpl) validateFormat(filename, contentType string) (string, error) {
	if filepath.Ext(filename) == "" && contentType != "" {
		return utils.ValidateImageContentType(contentType)
	}
	return utils.ValidateImageFilename(filename)
}

func (s *ImageServiceImpl) readUpload(r io.Reader) ([]byte, error) {
	if s.config.MaxUploadSize > 0 {
		r = io.LimitReader(r, s.config.MaxUploadSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, models.ErrEmptyUpload
	}
	if s.config.MaxUploadSize > 0 && int64(len(data)) > s.config.MaxUploadSize {
		return nil, models.ErrUploadTooLarge
	}
	return data, nil
}

// resolveMode picks sync when no queue is wired or when the strict budget
// must be checked before anything is written.
func (s *ImageServiceImpl) resolveMode(category models.ImageCategory, requested services.UploadMode, budget models.BudgetPolicy) services.UploadMode {
	mode := requested
	if mode == "" {
		mode = services.UploadModeSync
		if s.async[category] {
			mode = services.UploadModeAsync
		}
	}
	if mode == services.UploadModeAsync && (s.queue == nil || budget == models.BudgetStrict) {
		return services.UploadModeSync
	}
	return mode
}

func (s *ImageServiceImpl) prepareSync(ctx context.Context, data []byte, category models.ImageCategory, budget models.BudgetPolicy) (*encoded, error) {
	result, err := s.compressor.Compress(data, category)
	if err != nil {
		logger.WarnContext(ctx, "Image compression failed", "category", category, "error", err)
		return nil, err
	}

	logger.InfoContext(ctx, "Image compressed",
		"category", category,
		"original_kb", len(data)/1024,
		"size_kb", result.Size()/1024,
		"quality", result.Quality,
		"width", result.Width,
		"height", result.Height,
		"budget_met", result.BudgetMet,
	)

	if !result.BudgetMet && budget == models.BudgetStrict {
		return nil, fmt.Errorf("%w: %d bytes over a %d byte budget", models.ErrBudgetUnmet, result.Size(), models.RuleFor(category).MaxBytes)
	}

	return &encoded{
		data:      result.Data,
		ext:       result.Ext,
		width:     result.Width,
		height:    result.Height,
		quality:   result.Quality,
		budgetMet: result.BudgetMet,
		mode:      services.UploadModeSync,
	}, nil
}

// prepareAsync probes the raw bytes. It returns nil when the format cannot
// be re-encoded in place, which sends the upload down the sync path.
func (s *ImageServiceImpl) prepareAsync(ctx context.Context, data []byte) (*encoded, error) {
	info, err := s.compressor.Probe(data)
	if err != nil {
		logger.WarnContext(ctx, "Image probe failed", "error", err)
		return nil, err
	}
	if !recompressible[info.Ext] {
		logger.DebugContext(ctx, "Format has no encoder, compressing synchronously", "format", info.Format)
		return nil, nil
	}
	return &encoded{
		data:   data,
		ext:    info.Ext,
		width:  info.Width,
		height: info.Height,
		mode:   services.UploadModeAsync,
	}, nil
}

var recompressible = map[string]bool{"jpg": true, "png": true, "gif": true}

// store writes the file first and commits the row second. A failed commit
// removes the file again.
func (s *ImageServiceImpl) store(ctx context.Context, in *services.UploadImageInput, category models.ImageCategory, enc *encoded) (*models.ImageRecord, string, error) {
	externalID := uuid.New()
	now := s.now()
	path := utils.GenerateImagePath(category.String(), externalID, enc.ext, now)

	url, err := s.storage.UploadFile(bytes.NewReader(enc.data), path, utils.ImageContentType(enc.ext))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to write image file", "path", path, "error", err)
		return nil, "", fmt.Errorf("%w: %w", models.ErrStorageWrite, err)
	}
	logger.InfoContext(ctx, "Image file written", "path", path, "size_kb", len(enc.data)/1024)

	entityID := in.EntityID
	if category == models.CategoryProfile {
		entityID = nil
	}

	record := &models.ImageRecord{
		ExternalID:   externalID,
		OwnerID:      in.OwnerID,
		EntityID:     entityID,
		Category:     category,
		Path:         path,
		OriginalName: utils.SanitizeFileName(in.Filename),
		Ext:          enc.ext,
		SizeBytes:    int64(len(enc.data)),
		Width:        enc.width,
		Height:       enc.height,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.imageRepo.Create(ctx, record); err != nil {
		logger.ErrorContext(ctx, "Failed to save image record, removing file", "external_id", externalID, "error", err)
		if derr := s.storage.DeleteFile(path); derr != nil {
			logger.ErrorContext(ctx, "Failed to remove file after commit failure", "path", path, "error", derr)
		}
		return nil, "", fmt.Errorf("%w: %w", models.ErrMetadataCommit, err)
	}

	if enc.mode == services.UploadModeAsync {
		job := CompressJob{
			ExternalID: externalID,
			Path:       path,
			Category:   category,
			Ext:        enc.ext,
			RequestID:  logger.GetRequestID(ctx),
		}
		if err := s.queue.Enqueue(job); err != nil {
			logger.WarnContext(ctx, "Failed to queue background compression, keeping raw file", "path", path, "error", err)
		}
	}

	logger.InfoContext(ctx, "Image stored", "external_id", externalID, "owner_id", in.OwnerID, "category", category, "mode", enc.mode)
	return record, url, nil
}

// storeProfile backs up or deletes the owner's previous profile image so
// that exactly one stays active. A failed write puts the backup back.
func (s *ImageServiceImpl) storeProfile(ctx context.Context, in *services.UploadImageInput, enc *encoded) (*models.ImageRecord, string, error) {
	unlock := s.lockOwner(in.OwnerID)
	defer unlock()

	backupEnabled := s.config.ProfileBackup
	if in.Backup != nil {
		backupEnabled = *in.Backup
	}

	current, err := s.imageRepo.ListProfilesByOwner(ctx, in.OwnerID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load current profile image", "owner_id", in.OwnerID, "error", err)
		return nil, "", fmt.Errorf("load current profile image: %w", err)
	}

	var backups []*ProfileBackup
	if backupEnabled {
		for _, old := range current {
			backup, err := s.deletion.BackupBeforeOverwrite(ctx, old)
			if err != nil || backup == nil {
				continue
			}
			backups = append(backups, backup)
		}
	}

	record, url, err := s.store(ctx, in, models.CategoryProfile, enc)
	if err != nil {
		for _, b := range backups {
			_ = s.deletion.Restore(ctx, b)
		}
		return nil, "", err
	}

	for _, old := range current {
		// files that failed to move or delete are left for the orphan scan
		if !backupEnabled {
			_ = s.deletion.Delete(ctx, old)
		}
		if err := s.imageRepo.Delete(ctx, old.ExternalID); err != nil {
			logger.ErrorContext(ctx, "Failed to delete superseded profile record", "external_id", old.ExternalID, "error", err)
			continue
		}
		s.invalidate(ctx, old.ExternalID)
	}

	logger.InfoContext(ctx, "Profile image replaced", "owner_id", in.OwnerID, "superseded", len(current), "backed_up", len(backups))
	return record, url, nil
}

func (s *ImageServiceImpl) lockOwner(ownerID uuid.UUID) func() {
	s.profileMu.Lock()
	l, ok := s.profileLocks[ownerID]
	if !ok {
		l = &ownerLock{}
		s.profileLocks[ownerID] = l
	}
	l.refs++
	s.profileMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.profileMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.profileLocks, ownerID)
		}
		s.profileMu.Unlock()
	}
}


// AfterRecompress keeps the record in step with a file replaced by the dispatcher.
func (s *ImageServiceImpl) AfterRecompress(ctx context.Context, job CompressJob, result *ports.CompressResult) {
	if err := s.imageRepo.UpdateFileInfo(ctx, job.ExternalID, result.Size(), result.Width, result.Height); err != nil {
		// the row may have been deleted while the job was queued
		logger.WarnContext(ctx, "Failed to update image record after recompression", "external_id", job.ExternalID, "error", err)
	}
	s.invalidate(ctx, job.ExternalID)
}

func (s *ImageServiceImpl) GetImage(ctx context.Context, externalID uuid.UUID) (*models.ImageRecord, error) {
	if s.cache != nil {
		if image, ok := s.cache.GetImage(ctx, externalID); ok {
			return image, nil
		}
	}

	image, err := s.imageRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetImage(ctx, image)
	}
	return image, nil
}

// OpenImage maps a missing file to ErrImageNotFound without exposing the path.
func (s *ImageServiceImpl) OpenImage(ctx context.Context, externalID uuid.UUID) (*services.ImageContent, error) {
	image, err := s.GetImage(ctx, externalID)
	if err != nil {
		return nil, err
	}

	body, contentType, err := s.storage.GetFileContent(image.Path)
	if err != nil {
		if errors.Is(err, ports.ErrFileNotFound) {
			logger.WarnContext(ctx, "Image record has no file", "external_id", externalID, "path", image.Path)
			return nil, models.ErrImageNotFound
		}
		logger.ErrorContext(ctx, "Failed to open image file", "external_id", externalID, "error", err)
		return nil, fmt.Errorf("open image %s: %w", externalID, err)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = utils.ImageContentType(image.Ext)
	}

	return &services.ImageContent{Record: image, Body: body, ContentType: contentType}, nil
}

func (s *ImageServiceImpl) ListOwnerImages(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.ImageRecord, int64, error) {
	images, err := s.imageRepo.ListByOwner(ctx, ownerID, offset, limit)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list owner images", "owner_id", ownerID, "error", err)
		return nil, 0, err
	}
	count, err := s.imageRepo.CountByOwner(ctx, ownerID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to count owner images", "owner_id", ownerID, "error", err)
		return nil, 0, err
	}
	return images, count, nil
}

func (s *ImageServiceImpl) ListEntityImages(ctx context.Context, entityID uuid.UUID) ([]*models.ImageRecord, error) {
	return s.imageRepo.ListByEntity(ctx, entityID)
}

func (s *ImageServiceImpl) GetProfileImage(ctx context.Context, ownerID uuid.UUID) (*services.ProfileImage, error) {
	image, err := s.imageRepo.GetProfileByOwner(ctx, ownerID)
	if errors.Is(err, models.ErrImageNotFound) {
		return &services.ProfileImage{URL: s.config.DefaultProfileURL, IsDefault: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &services.ProfileImage{Record: image, URL: s.ImageURL(image)}, nil
}

func (s *ImageServiceImpl) DeleteImage(ctx context.Context, externalID, requesterID uuid.UUID) error {
	image, err := s.imageRepo.GetByExternalID(ctx, externalID)
	if errors.Is(err, models.ErrImageNotFound) {
		logger.DebugContext(ctx, "Image already deleted", "external_id", externalID)
		return nil
	}
	if err != nil {
		return err
	}
	if image.OwnerID != requesterID {
		logger.WarnContext(ctx, "Image delete denied", "external_id", externalID, "requester_id", requesterID)
		return models.ErrImageForbidden
	}
	return s.remove(ctx, image)
}

// DeleteEntityImages checks ownership of every image before removing any.
func (s *ImageServiceImpl) DeleteEntityImages(ctx context.Context, entityID, requesterID uuid.UUID) (int, error) {
	images, err := s.imageRepo.ListByEntity(ctx, entityID)
	if err != nil {
		return 0, err
	}
	for _, image := range images {
		if image.OwnerID != requesterID {
			logger.WarnContext(ctx, "Entity image delete denied", "entity_id", entityID, "requester_id", requesterID)
			return 0, models.ErrImageForbidden
		}
	}

	deleted := 0
	for _, image := range images {
		if err := s.remove(ctx, image); err != nil {
			return deleted, err
		}
		deleted++
	}
	logger.InfoContext(ctx, "Entity images deleted", "entity_id", entityID, "count", deleted)
	return deleted, nil
}

// remove deletes the file, then the row. A file that cannot be removed
// keeps its row so nothing is orphaned.
func (s *ImageServiceImpl) remove(ctx context.Context, image *models.ImageRecord) error {
	if err := s.deletion.Delete(ctx, image); err != nil {
		return fmt.Errorf("delete image file: %w", err)
	}
	if err := s.imageRepo.Delete(ctx, image.ExternalID); err != nil {
		logger.ErrorContext(ctx, "Failed to delete image record", "external_id", image.ExternalID, "error", err)
		return err
	}
	s.invalidate(ctx, image.ExternalID)
	logger.InfoContext(ctx, "Image deleted", "external_id", image.ExternalID, "owner_id", image.OwnerID)
	return nil
}

func (s *ImageServiceImpl) invalidate(ctx context.Context, externalID uuid.UUID) {
	if s.cache != nil {
		s.cache.InvalidateImage(ctx, externalID)
	}
}

func (s *ImageServiceImpl) ImageURL(image *models.ImageRecord) string {
	return s.storage.GetFileURL(image.Path)
}
