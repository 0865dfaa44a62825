package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/RCXD/Bros-back/domain/dto"
	"github.com/RCXD/Bros-back/domain/models"
	"github.com/RCXD/Bros-back/domain/services"
	"github.com/RCXD/Bros-back/pkg/logger"
	"github.com/RCXD/Bros-back/pkg/utils"
)

const defaultListLimit = 20

type ImageHandler struct {
	imageService services.ImageService
}

func NewImageHandler(imageService services.ImageService) *ImageHandler {
	return &ImageHandler{imageService: imageService}
}

// UploadImage accepts multipart form-data: file, category, entity_id, mode, budget.
func (h *ImageHandler) UploadImage(c *fiber.Ctx) error {
	ctx := c.UserContext()

	user, err := utils.GetUserFromContext(c)
	if err != nil {
		return utils.UnauthorizedResponse(c, "")
	}

	req := &dto.UploadImageRequest{
		Category: strings.ToLower(c.FormValue("category")),
		EntityID: c.FormValue("entity_id"),
		Mode:     c.FormValue("mode"),
		Budget:   c.FormValue("budget"),
	}
	if err := utils.ValidateStruct(req); err != nil {
		errs := utils.GetValidationErrors(err)
		logger.WarnContext(ctx, "Validation failed", "errors", errs)
		return utils.ValidationErrorResponse(c, errs)
	}

	in := &services.UploadImageInput{
		OwnerID:  user.ID,
		Category: models.ParseCategory(req.Category),
		Mode:     services.UploadMode(req.Mode),
		Budget:   models.BudgetPolicy(req.Budget),
	}
	if req.EntityID != "" {
		entityID := uuid.MustParse(req.EntityID) // validated above
		in.EntityID = &entityID
	}

	return h.upload(c, in)
}

// UploadProfileImage replaces the caller's profile image. Form fields: file, backup, budget.
func (h *ImageHandler) UploadProfileImage(c *fiber.Ctx) error {
	ctx := c.UserContext()

	user, err := utils.GetUserFromContext(c)
	if err != nil {
		return utils.UnauthorizedResponse(c, "")
	}

	req := &dto.UploadProfileImageRequest{
		Backup: strings.ToLower(c.FormValue("backup")),
		Budget: c.FormValue("budget"),
	}
	if err := utils.ValidateStruct(req); err != nil {
		errs := utils.GetValidationErrors(err)
		logger.WarnContext(ctx, "Validation failed", "errors", errs)
		return utils.ValidationErrorResponse(c, errs)
	}

	in := &services.UploadImageInput{
		OwnerID:  user.ID,
		Category: models.CategoryProfile,
		Budget:   models.BudgetPolicy(req.Budget),
	}
	if req.Backup != "" {
		backup := req.Backup == "true"
		in.Backup = &backup
	}

	return h.upload(c, in)
}

func (h *ImageHandler) upload(c *fiber.Ctx, in *services.UploadImageInput) error {
	ctx := c.UserContext()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		logger.WarnContext(ctx, "No file provided", "error", err)
		return utils.BadRequestResponse(c, "No file provided")
	}
	if fileHeader.Size == 0 {
		return utils.BadRequestResponse(c, "Empty file not allowed")
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open uploaded file", "filename", fileHeader.Filename, "error", err)
		return utils.InternalServerErrorResponse(c)
	}
	defer file.Close()

	in.Filename = fileHeader.Filename
	in.ContentType = fileHeader.Header.Get("Content-Type")
	in.Body = file

	logger.InfoContext(ctx, "Image upload attempt",
		"owner_id", in.OwnerID,
		"category", in.Category,
		"filename", fileHeader.Filename,
		"size", fileHeader.Size,
	)

	result, err := h.imageService.UploadImage(ctx, in)
	if err != nil {
		return h.handleError(c, err)
	}

	resp := &dto.UploadImageResponse{
		ImageResponse: *dto.ImageToImageResponse(result.Record, result.URL),
		Mode:          string(result.Mode),
		Quality:       result.Quality,
		BudgetMet:     result.BudgetMet,
	}
	if result.Mode == services.UploadModeAsync {
		return utils.AcceptedResponse(c, resp)
	}
	return utils.CreatedResponse(c, resp)
}

func (h *ImageHandler) GetImage(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid image ID")
	}

	image, err := h.imageService.GetImage(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SuccessResponse(c, dto.ImageToImageResponse(image, h.imageService.ImageURL(image)))
}

// GetImageRaw streams the stored bytes.
func (h *ImageHandler) GetImageRaw(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid image ID")
	}

	content, err := h.imageService.OpenImage(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, content.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s"`, downloadName(content.Record)))
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	// fasthttp closes the body once it has been sent
	return c.SendStream(content.Body)
}

// downloadName turns the client's original name into a header-safe one.
func downloadName(image *models.ImageRecord) string {
	base := image.OriginalName
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	name := slug.Make(base)
	if name == "" {
		name = image.ExternalID.String()
	}
	return name + "." + image.Ext
}

func (h *ImageHandler) GetMyImages(c *fiber.Ctx) error {
	ctx := c.UserContext()

	user, err := utils.GetUserFromContext(c)
	if err != nil {
		return utils.UnauthorizedResponse(c, "")
	}

	req := &dto.ListImagesRequest{}
	if err := c.QueryParser(req); err != nil {
		return utils.BadRequestResponse(c, "Invalid query parameters")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ValidationErrorResponse(c, utils.GetValidationErrors(err))
	}
	if req.Limit == 0 {
		req.Limit = defaultListLimit
	}

	images, total, err := h.imageService.ListOwnerImages(ctx, user.ID, req.Offset, req.Limit)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SuccessResponse(c, &dto.ImageListResponse{
		Images: dto.ImagesToImageResponses(images, h.imageService.ImageURL),
		Meta: dto.PaginationMeta{
			Total:  total,
			Offset: req.Offset,
			Limit:  req.Limit,
		},
	})
}

func (h *ImageHandler) ListEntityImages(c *fiber.Ctx) error {
	entityID, err := uuid.Parse(c.Params("entityId"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid entity ID")
	}

	images, err := h.imageService.ListEntityImages(c.UserContext(), entityID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SuccessResponse(c, dto.ImagesToImageResponses(images, h.imageService.ImageURL))
}

func (h *ImageHandler) GetProfileImage(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("ownerId"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid user ID")
	}

	profile, err := h.imageService.GetProfileImage(c.UserContext(), ownerID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SuccessResponse(c, &dto.ProfileImageResponse{
		OwnerID:   ownerID,
		URL:       profile.URL,
		IsDefault: profile.IsDefault,
		Image:     dto.ImageToImageResponse(profile.Record, profile.URL),
	})
}

func (h *ImageHandler) DeleteImage(c *fiber.Ctx) error {
	ctx := c.UserContext()

	user, err := utils.GetUserFromContext(c)
	if err != nil {
		return utils.UnauthorizedResponse(c, "")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid image ID")
	}

	if err := h.imageService.DeleteImage(ctx, id, user.ID); err != nil {
		return h.handleError(c, err)
	}
	return utils.NoContentResponse(c)
}

func (h *ImageHandler) DeleteEntityImages(c *fiber.Ctx) error {
	ctx := c.UserContext()

	user, err := utils.GetUserFromContext(c)
	if err != nil {
		return utils.UnauthorizedResponse(c, "")
	}
	entityID, err := uuid.Parse(c.Params("entityId"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid entity ID")
	}

	deleted, err := h.imageService.DeleteEntityImages(ctx, entityID, user.ID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SuccessResponse(c, &dto.DeleteImagesResponse{Deleted: deleted})
}

// handleError maps pipeline errors to statuses. Storage and database
// details stay in the log.
func (h *ImageHandler) handleError(c *fiber.Ctx, err error) error {
	ctx := c.UserContext()

	switch {
	case errors.Is(err, models.ErrUnsupportedFormat):
		return utils.ErrorResponse(c, fiber.StatusUnsupportedMediaType, utils.ErrCodeUnsupportedFormat, err.Error(), nil)
	case errors.Is(err, models.ErrEncodeFailure):
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, utils.ErrCodeEncodeFailure, "Image could not be decoded", nil)
	case errors.Is(err, models.ErrEmptyUpload):
		return utils.BadRequestResponse(c, "Empty file not allowed")
	case errors.Is(err, models.ErrUploadTooLarge):
		return utils.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, utils.ErrCodePayloadTooLarge, "Image is too large", nil)
	case errors.Is(err, models.ErrBudgetUnmet):
		return utils.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, utils.ErrCodeBudgetUnmet, "Image cannot be compressed within its size limit", nil)
	case errors.Is(err, models.ErrImageNotFound):
		return utils.NotFoundResponse(c, "Image not found")
	case errors.Is(err, models.ErrImageForbidden):
		return utils.ForbiddenResponse(c, "Image belongs to another user")
	case errors.Is(err, models.ErrStorageWrite):
		logger.ErrorContext(ctx, "Image storage failed", "error", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, utils.ErrCodeStorageWrite, "Failed to store image", nil)
	case errors.Is(err, models.ErrMetadataCommit):
		logger.ErrorContext(ctx, "Image metadata commit failed", "error", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, utils.ErrCodeMetadataCommit, "Failed to save image", nil)
	default:
		logger.ErrorContext(ctx, "Image request failed", "error", err)
		return utils.InternalServerErrorResponse(c)
	}
}
