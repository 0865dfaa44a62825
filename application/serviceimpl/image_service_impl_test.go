package serviceimpl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/RCXD/Bros-back/domain/models"
	"github.com/RCXD/Bros-back/domain/ports"
	"github.com/RCXD/Bros-back/domain/services"
	"github.com/RCXD/Bros-back/pkg/utils"
)

func upload(owner uuid.UUID, category models.ImageCategory, name string, data []byte) *services.UploadImageInput {
	return &services.UploadImageInput{
		OwnerID:  owner,
		Category: category,
		Filename: name,
		Body:     bytes.NewReader(data),
	}
}

func TestUploadProfileResizesIntoRule(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	owner := uuid.New()

	res, err := env.service.UploadImage(context.Background(), upload(owner, models.CategoryProfile, "me.JPG", jpegFixture(t, 3000, 2000)))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}

	rec := res.Record
	wantPrefix := "profile_images/2024-05-01/"
	if !strings.HasPrefix(rec.Path, wantPrefix) || !rec.PathConsistent() || rec.Ext != "jpg" {
		t.Errorf("path = %q ext = %q", rec.Path, rec.Ext)
	}
	if rec.Width != 300 || rec.Height != 200 {
		t.Errorf("dimensions = %dx%d, want 300x200", rec.Width, rec.Height)
	}
	if rec.SizeBytes > models.RuleFor(models.CategoryProfile).MaxBytes || !res.BudgetMet {
		t.Errorf("size = %d, budget met = %v", rec.SizeBytes, res.BudgetMet)
	}
	if rec.EntityID != nil || rec.OriginalName != "me.JPG" {
		t.Errorf("record = %+v", rec)
	}
	if res.Mode != services.UploadModeSync {
		t.Errorf("mode = %q", res.Mode)
	}
	if res.URL != "http://cdn.test/files/"+rec.Path {
		t.Errorf("url = %q", res.URL)
	}

	cfg, format := decodeConfig(t, env.storage, rec.Path)
	if cfg.Width != 300 || cfg.Height != 200 || format != "jpeg" {
		t.Errorf("stored %s %dx%d", format, cfg.Width, cfg.Height)
	}
}

func TestUploadSmallPostKeepsSizeAndFormat(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	entity := uuid.New()

	in := upload(uuid.New(), models.CategoryPost, "chart.png", pngFixture(t, 640, 480))
	in.EntityID = &entity
	res, err := env.service.UploadImage(context.Background(), in)
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if res.Record.Ext != "png" || res.Record.Width != 640 || res.Record.Height != 480 {
		t.Errorf("record = %+v", res.Record)
	}
	if res.Record.EntityID == nil || *res.Record.EntityID != entity {
		t.Errorf("entity = %v", res.Record.EntityID)
	}
	if !strings.HasPrefix(res.Record.Path, "post_images/2024-05-01/") {
		t.Errorf("path = %q", res.Record.Path)
	}
}

func TestUploadRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ImageServiceConfig
		in      func(t *testing.T) *services.UploadImageInput
		wantErr error
	}{
		{
			name: "unsupported extension",
			in: func(t *testing.T) *services.UploadImageInput {
				return upload(uuid.New(), models.CategoryPost, "photo.bmp", jpegFixture(t, 10, 10))
			},
			wantErr: models.ErrUnsupportedFormat,
		},
		{
			name: "missing extension and content type",
			in: func(t *testing.T) *services.UploadImageInput {
				return upload(uuid.New(), models.CategoryPost, "photo", jpegFixture(t, 10, 10))
			},
			wantErr: models.ErrUnsupportedFormat,
		},
		{
			name: "unsupported content type",
			in: func(t *testing.T) *services.UploadImageInput {
				in := upload(uuid.New(), models.CategoryPost, "photo", jpegFixture(t, 10, 10))
				in.ContentType = "image/tiff"
				return in
			},
			wantErr: models.ErrUnsupportedFormat,
		},
		{
			name: "not an image",
			in: func(t *testing.T) *services.UploadImageInput {
				return upload(uuid.New(), models.CategoryPost, "photo.jpg", []byte("definitely not a jpeg"))
			},
			wantErr: models.ErrEncodeFailure,
		},
		{
			name: "empty body",
			in: func(t *testing.T) *services.UploadImageInput {
				return upload(uuid.New(), models.CategoryPost, "photo.jpg", nil)
			},
			wantErr: models.ErrEmptyUpload,
		},
		{
			name: "too large",
			cfg:  ImageServiceConfig{MaxUploadSize: 16},
			in: func(t *testing.T) *services.UploadImageInput {
				return upload(uuid.New(), models.CategoryPost, "photo.jpg", jpegFixture(t, 10, 10))
			},
			wantErr: models.ErrUploadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.cfg)
			_, err := env.service.UploadImage(context.Background(), tt.in(t))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if files := env.files(t); len(files) != 0 {
				t.Errorf("files written: %v", files)
			}
			if n, _ := env.repo.Count(context.Background()); n != 0 {
				t.Errorf("records = %d", n)
			}
		})
	}
}

func TestUploadAcceptsContentTypeWithoutExtension(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	in := upload(uuid.New(), models.CategoryReply, "blob", jpegFixture(t, 20, 20))
	in.ContentType = "image/jpeg"
	if _, err := env.service.UploadImage(context.Background(), in); err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
}

func TestUploadBudgetPolicy(t *testing.T) {
	overBudget := &ports.CompressResult{
		Data:      bytes.Repeat([]byte{0xff}, 64),
		Format:    "jpeg",
		Ext:       "jpg",
		Width:     10,
		Height:    10,
		Quality:   models.QualityFloor,
		BudgetMet: false,
	}

	tests := []struct {
		name       string
		configured models.BudgetPolicy
		request    models.BudgetPolicy
		wantErr    error
	}{
		{"best effort default accepts", "", "", nil},
		{"strict config rejects", models.BudgetStrict, "", models.ErrBudgetUnmet},
		{"strict request rejects", models.BudgetBestEffort, models.BudgetStrict, models.ErrBudgetUnmet},
		{"request overrides strict config", models.BudgetStrict, models.BudgetBestEffort, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, ImageServiceConfig{})
			env.compressor = stubCompressor{result: overBudget}
			svc := env.build(ImageServiceConfig{BudgetPolicy: tt.configured}, nil)

			in := upload(uuid.New(), models.CategoryEmoticon, "e.jpg", jpegFixture(t, 10, 10))
			in.Budget = tt.request
			res, err := svc.UploadImage(context.Background(), in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if files := env.files(t); len(files) != 0 {
					t.Errorf("files written: %v", files)
				}
				return
			}
			if res.BudgetMet || res.Record.SizeBytes != 64 {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestUploadStorageFailureCommitsNothing(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	env.storage = failingStorage{env.storage}
	svc := env.build(ImageServiceConfig{}, nil)

	_, err := svc.UploadImage(context.Background(), upload(uuid.New(), models.CategoryPost, "a.jpg", jpegFixture(t, 10, 10)))
	if !errors.Is(err, models.ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
	if n, _ := env.repo.Count(context.Background()); n != 0 {
		t.Errorf("records = %d", n)
	}
}

func TestUploadCommitFailureRemovesFile(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	env.repo.setFailCreate(errors.New("connection reset"))

	_, err := env.service.UploadImage(context.Background(), upload(uuid.New(), models.CategoryPost, "a.jpg", jpegFixture(t, 10, 10)))
	if !errors.Is(err, models.ErrMetadataCommit) {
		t.Fatalf("err = %v, want ErrMetadataCommit", err)
	}
	if files := env.files(t); len(files) != 0 {
		t.Errorf("orphaned files: %v", files)
	}
}

func TestConcurrentUploadsGetDistinctPaths(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	data := jpegFixture(t, 32, 32)
	owner := uuid.New()

	const n = 16
	var wg sync.WaitGroup
	paths := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.service.UploadImage(context.Background(), upload(owner, models.CategoryReply, fmt.Sprintf("%d.jpg", i), data))
			if err != nil {
				errs <- err
				return
			}
			paths <- res.Record.Path
		}(i)
	}
	wg.Wait()
	close(paths)
	close(errs)

	for err := range errs {
		t.Errorf("upload: %v", err)
	}
	seen := make(map[string]bool)
	for p := range paths {
		if seen[p] {
			t.Errorf("duplicate path %q", p)
		}
		seen[p] = true
	}
	if files := env.files(t); len(files) != n {
		t.Errorf("files = %d, want %d", len(files), n)
	}
}

func TestProfileReplacementKeepsOneActiveAndOneBackup(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{ProfileBackup: true})
	ctx := context.Background()
	owner := uuid.New()

	first, err := env.service.UploadImage(ctx, upload(owner, models.CategoryProfile, "a.jpg", jpegFixture(t, 400, 400)))
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.service.UploadImage(ctx, upload(owner, models.CategoryProfile, "b.png", pngFixture(t, 200, 200)))
	if err != nil {
		t.Fatal(err)
	}

	profiles, _ := env.repo.ListProfilesByOwner(ctx, owner)
	if len(profiles) != 1 || profiles[0].ExternalID != second.Record.ExternalID {
		t.Fatalf("profiles = %+v", profiles)
	}
	if _, err := env.repo.GetByExternalID(ctx, first.Record.ExternalID); !errors.Is(err, models.ErrImageNotFound) {
		t.Errorf("superseded record still present: %v", err)
	}

	var backups, active int
	for _, f := range env.files(t) {
		switch {
		case utils.IsBackupPath(f):
			backups++
			if !strings.HasPrefix(f, "profile_images/backup/20240501_120000_") || !strings.HasSuffix(f, ".jpg") {
				t.Errorf("backup name %q", f)
			}
		case f == second.Record.Path:
			active++
		default:
			t.Errorf("unexpected file %q", f)
		}
	}
	if backups != 1 || active != 1 {
		t.Errorf("backups = %d active = %d", backups, active)
	}

	got, err := env.service.GetProfileImage(ctx, owner)
	if err != nil || got.IsDefault || got.Record.ExternalID != second.Record.ExternalID {
		t.Errorf("GetProfileImage = %+v, %v", got, err)
	}
}

func TestConcurrentProfileUploadsReleaseOwnerLocks(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	ctx := context.Background()
	owners := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	const perOwner = 4
	data := pngFixture(t, 64, 64)

	var wg sync.WaitGroup
	errs := make(chan error, len(owners)*perOwner)
	for _, owner := range owners {
		for i := 0; i < perOwner; i++ {
			wg.Add(1)
			go func(owner uuid.UUID, i int) {
				defer wg.Done()
				_, err := env.service.UploadImage(ctx, upload(owner, models.CategoryProfile, fmt.Sprintf("p%d.png", i), data))
				errs <- err
			}(owner, i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
	}

	if n := env.service.heldProfileLocks(); n != 0 {
		t.Errorf("owner lock entries = %d after all uploads returned, want 0", n)
	}
	for _, owner := range owners {
		profiles, _ := env.repo.ListProfilesByOwner(ctx, owner)
		if len(profiles) != 1 {
			t.Errorf("owner %s has %d profiles", owner, len(profiles))
		}
	}
	if files := env.files(t); len(files) != len(owners) {
		t.Errorf("files = %v, want one per owner", files)
	}
}

func TestProfileReplacementWithoutBackupDeletesOldFile(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{ProfileBackup: true})
	ctx := context.Background()
	owner := uuid.New()
	noBackup := false

	if _, err := env.service.UploadImage(ctx, upload(owner, models.CategoryProfile, "a.jpg", jpegFixture(t, 100, 100))); err != nil {
		t.Fatal(err)
	}
	in := upload(owner, models.CategoryProfile, "b.jpg", jpegFixture(t, 100, 100))
	in.Backup = &noBackup
	second, err := env.service.UploadImage(ctx, in)
	if err != nil {
		t.Fatal(err)
	}

	files := env.files(t)
	if len(files) != 1 || files[0] != second.Record.Path {
		t.Errorf("files = %v", files)
	}
}

func TestProfileReplacementFailureRestoresBackup(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{ProfileBackup: true})
	ctx := context.Background()
	owner := uuid.New()

	first, err := env.service.UploadImage(ctx, upload(owner, models.CategoryProfile, "a.jpg", jpegFixture(t, 100, 100)))
	if err != nil {
		t.Fatal(err)
	}

	env.repo.setFailCreate(errors.New("deadlock"))
	if _, err := env.service.UploadImage(ctx, upload(owner, models.CategoryProfile, "b.jpg", jpegFixture(t, 100, 100))); !errors.Is(err, models.ErrMetadataCommit) {
		t.Fatalf("err = %v, want ErrMetadataCommit", err)
	}

	files := env.files(t)
	if len(files) != 1 || files[0] != first.Record.Path {
		t.Errorf("files = %v, want only %q", files, first.Record.Path)
	}
	if _, err := env.repo.GetByExternalID(ctx, first.Record.ExternalID); err != nil {
		t.Errorf("original record lost: %v", err)
	}
}

func TestGetProfileImageDefault(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	env.service.config.DefaultProfileURL = "/static/default_profile.jpg"

	got, err := env.service.GetProfileImage(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsDefault || got.Record != nil || got.URL != "/static/default_profile.jpg" {
		t.Errorf("got %+v", got)
	}
}

func TestOpenImage(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	ctx := context.Background()

	res, err := env.service.UploadImage(ctx, upload(uuid.New(), models.CategoryPost, "a.gif", gifFixture(t)))
	if err != nil {
		t.Fatal(err)
	}

	content, err := env.service.OpenImage(ctx, res.Record.ExternalID)
	if err != nil {
		t.Fatalf("OpenImage: %v", err)
	}
	body, _ := io.ReadAll(content.Body)
	content.Body.Close()
	if content.ContentType != "image/gif" || int64(len(body)) != res.Record.SizeBytes {
		t.Errorf("content type %q, %d bytes", content.ContentType, len(body))
	}

	if _, err := env.service.OpenImage(ctx, uuid.New()); !errors.Is(err, models.ErrImageNotFound) {
		t.Errorf("unknown id: err = %v", err)
	}

	if err := env.storage.DeleteFile(res.Record.Path); err != nil {
		t.Fatal(err)
	}
	if _, err := env.service.OpenImage(ctx, res.Record.ExternalID); !errors.Is(err, models.ErrImageNotFound) {
		t.Errorf("missing file: err = %v", err)
	}
}

func TestDeleteImage(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	ctx := context.Background()
	owner := uuid.New()

	res, err := env.service.UploadImage(ctx, upload(owner, models.CategoryPost, "a.jpg", jpegFixture(t, 10, 10)))
	if err != nil {
		t.Fatal(err)
	}
	id := res.Record.ExternalID

	if err := env.service.DeleteImage(ctx, id, uuid.New()); !errors.Is(err, models.ErrImageForbidden) {
		t.Fatalf("other owner: err = %v", err)
	}
	if files := env.files(t); len(files) != 1 {
		t.Fatalf("forbidden delete touched files: %v", files)
	}

	if err := env.service.DeleteImage(ctx, id, owner); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if files := env.files(t); len(files) != 0 {
		t.Errorf("files left: %v", files)
	}
	if ok, _ := env.repo.ExistsByExternalID(ctx, id); ok {
		t.Error("record left behind")
	}

	if err := env.service.DeleteImage(ctx, id, owner); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestDeleteImageWithMissingFileDropsRecord(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	ctx := context.Background()
	owner := uuid.New()

	res, err := env.service.UploadImage(ctx, upload(owner, models.CategoryPost, "a.jpg", jpegFixture(t, 10, 10)))
	if err != nil {
		t.Fatal(err)
	}
	if err := env.storage.DeleteFile(res.Record.Path); err != nil {
		t.Fatal(err)
	}

	if err := env.service.DeleteImage(ctx, res.Record.ExternalID, owner); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if ok, _ := env.repo.ExistsByExternalID(ctx, res.Record.ExternalID); ok {
		t.Error("record left behind")
	}
}

func TestDeleteEntityImages(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	ctx := context.Background()
	owner := uuid.New()
	entity := uuid.New()

	for i := 0; i < 3; i++ {
		in := upload(owner, models.CategoryPost, "a.jpg", jpegFixture(t, 10, 10))
		in.EntityID = &entity
		if _, err := env.service.UploadImage(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	other := upload(owner, models.CategoryPost, "keep.jpg", jpegFixture(t, 10, 10))
	kept, err := env.service.UploadImage(ctx, other)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.service.DeleteEntityImages(ctx, entity, uuid.New()); !errors.Is(err, models.ErrImageForbidden) {
		t.Fatalf("other owner: err = %v", err)
	}

	n, err := env.service.DeleteEntityImages(ctx, entity, owner)
	if err != nil || n != 3 {
		t.Fatalf("DeleteEntityImages = %d, %v", n, err)
	}
	files := env.files(t)
	if len(files) != 1 || files[0] != kept.Record.Path {
		t.Errorf("files = %v", files)
	}
}

func TestListOwnerImages(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	ctx := context.Background()
	owner := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := env.service.UploadImage(ctx, upload(owner, models.CategoryReply, "a.jpg", jpegFixture(t, 10, 10))); err != nil {
			t.Fatal(err)
		}
	}

	images, total, err := env.service.ListOwnerImages(ctx, owner, 0, 2)
	if err != nil || total != 3 || len(images) != 2 {
		t.Errorf("ListOwnerImages = %d images, total %d, %v", len(images), total, err)
	}
}

func TestAsyncUploadWritesRawThenRecompresses(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	dispatcher := NewCompressDispatcher(CompressDispatcherConfig{Workers: 2, QueueSize: 8}, env.storage, env.compressor)
	svc := env.build(ImageServiceConfig{AsyncCategories: []string{"reply"}}, dispatcher)
	dispatcher.OnComplete(svc.AfterRecompress)
	dispatcher.Start()

	ctx := context.Background()
	res, err := svc.UploadImage(ctx, upload(uuid.New(), models.CategoryReply, "wide.jpg", jpegFixture(t, 1920, 1200)))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if res.Mode != services.UploadModeAsync {
		t.Fatalf("mode = %q", res.Mode)
	}
	if res.Record.Width != 1920 || res.Record.Ext != "jpg" {
		t.Errorf("raw record = %+v", res.Record)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	cfg, format := decodeConfig(t, env.storage, res.Record.Path)
	if cfg.Width != 960 || cfg.Height != 600 || format != "jpeg" {
		t.Errorf("recompressed file %s %dx%d", format, cfg.Width, cfg.Height)
	}
	rec, _ := env.repo.GetByExternalID(ctx, res.Record.ExternalID)
	if rec.Width != 960 || rec.Height != 600 || rec.Path != res.Record.Path {
		t.Errorf("record after recompression = %+v", rec)
	}
	if processed, failed := dispatcher.Stats(); processed != 1 || failed != 0 {
		t.Errorf("stats processed=%d failed=%d", processed, failed)
	}
}

func TestAsyncUploadDeletedBeforeJobRuns(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	dispatcher := NewCompressDispatcher(CompressDispatcherConfig{Workers: 1, QueueSize: 4}, env.storage, env.compressor)
	svc := env.build(ImageServiceConfig{AsyncCategories: []string{"reply"}}, dispatcher)
	dispatcher.OnComplete(svc.AfterRecompress)

	ctx := context.Background()
	owner := uuid.New()
	res, err := svc.UploadImage(ctx, upload(owner, models.CategoryReply, "wide.jpg", jpegFixture(t, 1920, 1200)))
	if err != nil || res.Mode != services.UploadModeAsync {
		t.Fatalf("UploadImage = %+v, %v", res, err)
	}

	// workers are not running yet, so the job is still queued
	if err := svc.DeleteImage(ctx, res.Record.ExternalID, owner); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if files := env.files(t); len(files) != 0 {
		t.Errorf("files after delete = %v", files)
	}
	if n, _ := env.repo.Count(ctx); n != 0 {
		t.Errorf("records = %d", n)
	}
	if processed, failed := dispatcher.Stats(); processed != 0 || failed != 0 {
		t.Errorf("stats processed=%d failed=%d", processed, failed)
	}
}

func TestAsyncUploadFallsBackToSync(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	dispatcher := NewCompressDispatcher(CompressDispatcherConfig{}, env.storage, env.compressor)
	svc := env.build(ImageServiceConfig{}, dispatcher)

	tests := []struct {
		name   string
		in     *services.UploadImageInput
		budget models.BudgetPolicy
		ext    string
	}{
		{"webp has no encoder", upload(uuid.New(), models.CategoryPost, "a.webp", webpFixture(t)), "", "jpg"},
		{"strict budget", upload(uuid.New(), models.CategoryPost, "a.jpg", jpegFixture(t, 10, 10)), models.BudgetStrict, "jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Mode = services.UploadModeAsync
			tt.in.Budget = tt.budget
			res, err := svc.UploadImage(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("UploadImage: %v", err)
			}
			if res.Mode != services.UploadModeSync || res.Record.Ext != tt.ext {
				t.Errorf("mode = %q ext = %q", res.Mode, res.Record.Ext)
			}
		})
	}
	if dispatcher.Pending() != 0 {
		t.Errorf("jobs queued: %d", dispatcher.Pending())
	}
}

func TestAsyncUploadSurvivesFullQueue(t *testing.T) {
	env := newTestEnv(t, ImageServiceConfig{})
	// never started, so the single slot stays taken
	dispatcher := NewCompressDispatcher(CompressDispatcherConfig{Workers: 1, QueueSize: 1}, env.storage, env.compressor)
	svc := env.build(ImageServiceConfig{AsyncCategories: []string{"post"}}, dispatcher)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := svc.UploadImage(ctx, upload(uuid.New(), models.CategoryPost, "a.jpg", jpegFixture(t, 10, 10)))
		if err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
		if ok, _ := env.storage.FileExists(res.Record.Path); !ok {
			t.Errorf("upload %d: raw file missing", i)
		}
	}
	if dispatcher.Pending() != 1 {
		t.Errorf("pending = %d, want 1", dispatcher.Pending())
	}
}
