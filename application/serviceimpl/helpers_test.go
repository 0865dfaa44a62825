package serviceimpl

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/RCXD/Bros-back/domain/models"
	"github.com/RCXD/Bros-back/domain/ports"
	"github.com/RCXD/Bros-back/infrastructure/imagecodec"
	"github.com/RCXD/Bros-back/infrastructure/storage"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// memImageRepo is an in-memory ImageRepository with failure injection.
type memImageRepo struct {
	mu         sync.Mutex
	images     map[uuid.UUID]*models.ImageRecord
	nextID     uint
	failCreate error
}

func newMemImageRepo() *memImageRepo {
	return &memImageRepo{images: make(map[uuid.UUID]*models.ImageRecord)}
}

func (r *memImageRepo) setFailCreate(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failCreate = err
}

func (r *memImageRepo) Create(_ context.Context, image *models.ImageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	for _, existing := range r.images {
		if existing.Path == image.Path {
			return errors.New("duplicate path")
		}
	}
	if _, ok := r.images[image.ExternalID]; ok {
		return errors.New("duplicate external id")
	}
	r.nextID++
	cp := *image
	cp.ID = r.nextID
	r.images[image.ExternalID] = &cp
	image.ID = cp.ID
	return nil
}

func (r *memImageRepo) GetByExternalID(_ context.Context, id uuid.UUID) (*models.ImageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	image, ok := r.images[id]
	if !ok {
		return nil, models.ErrImageNotFound
	}
	cp := *image
	return &cp, nil
}

func (r *memImageRepo) ExistsByExternalID(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.images[id]
	return ok, nil
}

func (r *memImageRepo) FindExisting(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if _, ok := r.images[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (r *memImageRepo) filter(keep func(*models.ImageRecord) bool) []*models.ImageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ImageRecord
	for _, image := range r.images {
		if keep(image) {
			cp := *image
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *memImageRepo) GetProfileByOwner(ctx context.Context, ownerID uuid.UUID) (*models.ImageRecord, error) {
	profiles, _ := r.ListProfilesByOwner(ctx, ownerID)
	if len(profiles) == 0 {
		return nil, models.ErrImageNotFound
	}
	return profiles[0], nil
}

func (r *memImageRepo) ListProfilesByOwner(_ context.Context, ownerID uuid.UUID) ([]*models.ImageRecord, error) {
	return r.filter(func(i *models.ImageRecord) bool { return i.OwnerID == ownerID && i.IsProfile() }), nil
}

func (r *memImageRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.ImageRecord, error) {
	all := r.filter(func(i *models.ImageRecord) bool { return i.OwnerID == ownerID })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *memImageRepo) CountByOwner(_ context.Context, ownerID uuid.UUID) (int64, error) {
	return int64(len(r.filter(func(i *models.ImageRecord) bool { return i.OwnerID == ownerID }))), nil
}

func (r *memImageRepo) ListByEntity(_ context.Context, entityID uuid.UUID) ([]*models.ImageRecord, error) {
	return r.filter(func(i *models.ImageRecord) bool { return i.EntityID != nil && *i.EntityID == entityID }), nil
}

func (r *memImageRepo) UpdateFileInfo(_ context.Context, id uuid.UUID, size int64, width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	image, ok := r.images[id]
	if !ok {
		return models.ErrImageNotFound
	}
	image.SizeBytes, image.Width, image.Height = size, width, height
	return nil
}

func (r *memImageRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.images, id)
	return nil
}

func (r *memImageRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.images)), nil
}

// failingStorage refuses every write.
type failingStorage struct {
	ports.StoragePort
}

func (failingStorage) UploadFile(io.Reader, string, string) (string, error) {
	return "", errors.New("disk full")
}

// stubCompressor returns a fixed result from Compress.
type stubCompressor struct {
	ports.CompressorPort
	result *ports.CompressResult
}

func (s stubCompressor) Compress([]byte, models.ImageCategory) (*ports.CompressResult, error) {
	return s.result, nil
}

type testEnv struct {
	repo       *memImageRepo
	storage    ports.StoragePort
	compressor ports.CompressorPort
	deletion   *ImageDeletionManager
	service    *ImageServiceImpl
}

func newTestEnv(t *testing.T, cfg ImageServiceConfig) *testEnv {
	t.Helper()
	store, err := storage.NewLocalStorage(storage.LocalStorageConfig{BasePath: t.TempDir(), BaseURL: "http://cdn.test/files"})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	env := &testEnv{
		repo:       newMemImageRepo(),
		storage:    store,
		compressor: imagecodec.NewCompressor(imagecodec.CompressorConfig{}),
	}
	env.deletion = NewImageDeletionManager(env.storage, "static/default_profile.jpg")
	env.deletion.now = func() time.Time { return testNow }
	env.service = env.build(cfg, nil)
	return env
}

func (e *testEnv) build(cfg ImageServiceConfig, queue CompressQueue) *ImageServiceImpl {
	s := NewImageService(cfg, e.repo, e.storage, e.compressor, e.deletion, queue, nil)
	s.now = func() time.Time { return testNow }
	return s
}

func (e *testEnv) files(t *testing.T) []string {
	t.Helper()
	files, err := e.storage.ListFiles("")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	sort.Strings(out)
	return out
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func jpegFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func gifFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, gradient(64, 48), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// 1x1 lossless WebP
func webpFixture(t *testing.T) []byte {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString("UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA==")
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func decodeConfig(t *testing.T, s ports.StoragePort, p string) (image.Config, string) {
	t.Helper()
	rc, _, err := s.GetFileContent(p)
	if err != nil {
		t.Fatalf("GetFileContent(%q): %v", p, err)
	}
	defer rc.Close()
	cfg, format, err := image.DecodeConfig(rc)
	if err != nil {
		t.Fatalf("DecodeConfig(%q): %v", p, err)
	}
	return cfg, format
}

// heldProfileLocks reports how many owners currently have a lock entry.
func (s *ImageServiceImpl) heldProfileLocks() int {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	return len(s.profileLocks)
}
