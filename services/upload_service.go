package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"research-showcase-api/config"
	"research-showcase-api/models"
	"research-showcase-api/storage"
	"research-showcase-api/utils"
)

const (
	MaxPDFSize          = 10 << 20
	MaxPresentationSize = 10 << 20
	MaxImageSize        = 5 << 20
	MaxImagePixels      = 40_000_000
	ThumbnailSize       = 400
)

const invalidImageMessage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."

// ValidPresentationExtensions lists accepted presentation formats.
var ValidPresentationExtensions = []string{".pdf", ".ppt", ".pptx", ".key", ".odp"}

var validImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// Upload is one received file.
type Upload struct {
	Filename string
	Data     []byte
	Caption  string

	decoded image.Image
}

func (u *Upload) ext() string { return strings.ToLower(path.Ext(u.Filename)) }

// Attachments are the files sent with a submission or an edit.
type Attachments struct {
	PDF          *Upload
	Poster       *Upload
	Presentation *Upload
	Images       []Upload
}

func (a Attachments) Empty() bool {
	return a.PDF == nil && a.Poster == nil && a.Presentation == nil && len(a.Images) == 0
}

// StoredAttachments are storage keys for saved Attachments. Empty strings mean "not supplied".
type StoredAttachments struct {
	PdfFile          string
	PosterImage      string
	PosterThumbnail  string
	PresentationFile string
	Images           []models.ProjectImage

	keys []string
}

// UploadService checks and stores attachment files.
type UploadService struct {
	store storage.Store
}

func NewUploadService(store storage.Store) *UploadService {
	return &UploadService{store: store}
}

// URL maps a storage key to its download address.
func (s *UploadService) URL(key string) string {
	if s == nil || s.store == nil {
		return key
	}
	return s.store.URL(key)
}

// ValidateAttachments applies the per-file rules to every supplied file.
func ValidateAttachments(a Attachments) utils.FieldErrors {
	errs := utils.FieldErrors{}
	check := func(field string, err error) {
		if err != nil {
			errs.Add(field, err.Error())
		}
	}
	if a.PDF != nil {
		check("pdf_file", ValidatePDF(a.PDF))
	}
	if a.Poster != nil {
		check("poster_image", ValidateImage(a.Poster))
	}
	if a.Presentation != nil {
		check("presentation_file", ValidatePresentation(a.Presentation))
	}
	for i := range a.Images {
		if err := ValidateImage(&a.Images[i]); err != nil {
			errs.Add("project_images", fmt.Sprintf("%s: %s", a.Images[i].Filename, err))
		}
	}
	return errs
}

func ValidatePDF(u *Upload) error {
	if u.ext() != ".pdf" || !bytes.HasPrefix(u.Data, []byte("%PDF-")) {
		return fmt.Errorf("File must be a PDF document")
	}
	if len(u.Data) > MaxPDFSize {
		return fmt.Errorf("PDF file too large (max 10MB)")
	}
	return nil
}

func ValidatePresentation(u *Upload) error {
	ok := false
	for _, ext := range ValidPresentationExtensions {
		if u.ext() == ext {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("Unsupported file extension. Use %s", strings.Join(ValidPresentationExtensions, ", "))
	}
	if len(u.Data) > MaxPresentationSize {
		return fmt.Errorf("Presentation file too large (max 10MB)")
	}
	return nil
}

func ValidateImage(u *Upload) error {
	if len(u.Data) > MaxImageSize {
		return fmt.Errorf("Image file too large (max 5MB)")
	}
	if !validImageExtensions[u.ext()] {
		return errors.New(invalidImageMessage)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return errors.New(invalidImageMessage)
	}
	if cfg.Width*cfg.Height > MaxImagePixels {
		return fmt.Errorf("Image dimensions too large (max %d megapixels)", MaxImagePixels/1_000_000)
	}
	// The header alone does not prove the pixel data is intact.
	img, err := imaging.Decode(bytes.NewReader(u.Data), imaging.AutoOrientation(true))
	if err != nil {
		return errors.New(invalidImageMessage)
	}
	u.decoded = img
	return nil
}

// Store saves every supplied file. Nothing is left behind when one of them fails.
func (s *UploadService) Store(ctx context.Context, a Attachments) (StoredAttachments, error) {
	var out StoredAttachments
	if a.Empty() {
		return out, nil
	}
	if s == nil || s.store == nil {
		return out, utils.ErrPersistence(fmt.Errorf("no blob store configured"), "failed to store attachment")
	}
	fail := func(err error) (StoredAttachments, error) {
		s.Discard(ctx, out)
		if utils.IsCode(err, utils.CodeInvalid) {
			return StoredAttachments{}, err
		}
		return StoredAttachments{}, utils.ErrPersistence(err, "failed to store attachment")
	}

	if a.PDF != nil {
		key, err := s.put(ctx, "research_papers", a.PDF.ext(), a.PDF.Data, &out)
		if err != nil {
			return fail(err)
		}
		out.PdfFile = key
	}
	if a.Presentation != nil {
		key, err := s.put(ctx, "presentations", a.Presentation.ext(), a.Presentation.Data, &out)
		if err != nil {
			return fail(err)
		}
		out.PresentationFile = key
	}
	if a.Poster != nil {
		key, thumb, err := s.putImage(ctx, "posters", "poster_image", a.Poster, &out)
		if err != nil {
			return fail(err)
		}
		out.PosterImage, out.PosterThumbnail = key, thumb
	}
	for i := range a.Images {
		key, thumb, err := s.putImage(ctx, "project_images", "project_images", &a.Images[i], &out)
		if err != nil {
			return fail(err)
		}
		out.Images = append(out.Images, models.ProjectImage{
			Image:     key,
			Thumbnail: thumb,
			Caption:   utils.SanitizeInput(a.Images[i].Caption),
		})
	}
	return out, nil
}

// Discard deletes stored files on a best-effort basis.
func (s *UploadService) Discard(ctx context.Context, stored StoredAttachments) {
	if s == nil || s.store == nil {
		return
	}
	ctx = persistentContext(ctx)
	for _, key := range stored.keys {
		if err := s.store.Delete(ctx, key); err != nil {
			config.L().Warn("failed to delete orphaned attachment", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *UploadService) put(ctx context.Context, dir, ext string, data []byte, out *StoredAttachments) (string, error) {
	key := dir + "/" + uuid.NewString() + ext
	if _, err := s.store.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{ContentType: http.DetectContentType(data)}); err != nil {
		return "", err
	}
	out.keys = append(out.keys, key)
	return key, nil
}

func (s *UploadService) putImage(ctx context.Context, dir, field string, u *Upload, out *StoredAttachments) (string, string, error) {
	if u.decoded == nil {
		if err := ValidateImage(u); err != nil {
			return "", "", utils.ErrValidation(field, err.Error())
		}
	}
	thumb, err := thumbnail(u.decoded)
	if err != nil {
		return "", "", err
	}
	key, err := s.put(ctx, dir, u.ext(), u.Data, out)
	if err != nil {
		return "", "", err
	}
	thumbKey, err := s.put(ctx, dir+"/thumbnails", ".jpg", thumb, out)
	if err != nil {
		return "", "", err
	}
	return key, thumbKey, nil
}

func thumbnail(src image.Image) ([]byte, error) {
	img := imaging.Fit(src, ThumbnailSize, ThumbnailSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
