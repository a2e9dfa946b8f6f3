package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/search"
	"server/internal/sqlinline"
)

const maxUploadBytes = 32 << 20

type resourceDTO struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Author         string    `json:"author"`
	AIModel        string    `json:"ai_model"`
	Category       string    `json:"category"`
	Description    string    `json:"description"`
	OriginalSource string    `json:"original_source,omitempty"`
	FileURL        string    `json:"file_url"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty"`
	Downloads      int64     `json:"downloads"`
	AverageRating  float64   `json:"average_rating"`
	TotalRatings   int       `json:"total_ratings"`
	Validations    int       `json:"validations"`
	UploaderID     string    `json:"uploader_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func (a *App) ListResources(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	limit, offset := pagination(r, 20)
	rows, err := a.SQL.Query(r.Context(), sqlinline.QListResources, category, limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list resources failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load resources")
		return
	}
	defer rows.Close()
	a.json(w, http.StatusOK, map[string]any{"items": a.collectResources(rows)})
}

func (a *App) SearchResources(w http.ResponseWriter, r *http.Request) {
	query := search.Normalize(r.URL.Query().Get("q"))
	if query == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "q required")
		return
	}
	limit, offset := pagination(r, 20)
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSearchResources, query, limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("search resources failed")
		a.error(w, http.StatusInternalServerError, "internal", "search failed")
		return
	}
	defer rows.Close()
	a.json(w, http.StatusOK, map[string]any{"items": a.collectResources(rows), "query": query})
}

type resourceDetail struct {
	resourceDTO
	Validators []string `json:"validators"`
	UserRating int      `json:"user_rating,omitempty"`
}

func (a *App) GetResource(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "id")
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectResourceByID, resourceID)
	res, err := scanResource(row)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}

	detail := resourceDetail{
		resourceDTO: a.resourceDTO(res),
		Validators:  a.resourceValidators(r, resourceID),
	}
	if userID := a.currentUserID(r); userID != "" {
		detail.UserRating = a.userRating(r, resourceID, userID)
	}
	a.json(w, http.StatusOK, detail)
}

func (a *App) resourceValidators(r *http.Request, resourceID string) []string {
	rows, err := a.SQL.Query(r.Context(), sqlinline.QListValidatorsByResource, resourceID)
	if err != nil {
		a.Logger.Warn().Err(err).Str("resource_id", resourceID).Msg("validator list failed")
		return []string{}
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (a *App) userRating(r *http.Request, resourceID, userID string) int {
	var value int
	err := a.SQL.QueryRow(r.Context(), sqlinline.QSelectUserRating, resourceID, userID).Scan(&value)
	if err != nil {
		if !infra.IsNoRows(err) {
			a.Logger.Warn().Err(err).Str("resource_id", resourceID).Msg("user rating lookup failed")
		}
		return 0
	}
	return value
}

func (a *App) CreateResource(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	author := strings.TrimSpace(r.FormValue("author"))
	aiModel := strings.TrimSpace(r.FormValue("ai_model"))
	category := strings.TrimSpace(r.FormValue("category"))
	description := strings.TrimSpace(r.FormValue("description"))
	originalSource := strings.TrimSpace(r.FormValue("original_source"))
	if title == "" || author == "" || category == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "title, author and category are required")
		return
	}
	if !domain.ValidCategory(category) {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown category")
		return
	}

	if err := a.checkTitleAvailable(r.Context(), title); err != nil {
		if errors.Is(err, domain.ErrDuplicateTitle) {
			a.error(w, http.StatusConflict, "duplicate_title", "a resource with this title already exists")
			return
		}
		a.Logger.Error().Err(err).Msg("duplicate title check failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to validate title")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "file required")
		return
	}
	defer file.Close()
	if !strings.EqualFold(path.Ext(header.Filename), ".pdf") {
		a.error(w, http.StatusBadRequest, "bad_request", "only pdf uploads are accepted")
		return
	}

	resourceKey := "resources/" + uuid.NewString() + "/" + path.Base(header.Filename)
	fileKey, _, err := a.Store.WriteFrom(r.Context(), resourceKey, file)
	if err != nil {
		a.Logger.Error().Err(err).Msg("store upload failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store file")
		return
	}

	avatarKey := a.storeAuthorAvatar(r, author)
	thumbnailKey := a.storeThumbnail(r, r.MultipartForm)

	var id string
	var createdAt time.Time
	err = a.SQL.QueryRow(r.Context(), sqlinline.QInsertResource,
		title, author, aiModel, category, description, originalSource,
		fileKey, avatarKey, thumbnailKey, userID,
	).Scan(&id, &createdAt)
	if err != nil {
		_ = a.Store.Delete(r.Context(), fileKey)
		a.Logger.Error().Err(err).Msg("insert resource failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create resource")
		return
	}

	searchText := search.Document(title, author, aiModel, category, description)
	if _, err := a.SQL.Exec(r.Context(), sqlinline.QUpdateResourceSearchText, id, searchText); err != nil {
		a.Logger.Warn().Err(err).Str("resource_id", id).Msg("search text update failed")
	}

	a.json(w, http.StatusCreated, map[string]any{
		"id":         id,
		"file_url":   a.fileURL(fileKey),
		"created_at": createdAt,
	})
}

func (a *App) DeleteResource(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	resourceID := chi.URLParam(r, "id")
	var fileKey, avatarKey, thumbnailKey string
	err := a.SQL.QueryRow(r.Context(), sqlinline.QDeleteResourceByUploader, resourceID, userID).
		Scan(&fileKey, &avatarKey, &thumbnailKey)
	if err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "resource not found or not yours")
			return
		}
		a.Logger.Error().Err(err).Msg("delete resource failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete resource")
		return
	}
	for _, key := range []string{fileKey, avatarKey, thumbnailKey} {
		if key == "" {
			continue
		}
		if err := a.Store.Delete(r.Context(), key); err != nil {
			a.Logger.Warn().Err(err).Str("key", key).Msg("stored file cleanup failed")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) checkTitleAvailable(ctx context.Context, title string) error {
	var exists bool
	if err := a.SQL.QueryRow(ctx, sqlinline.QResourceTitleExists, title).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrDuplicateTitle
	}
	return nil
}

// storeAuthorAvatar caches a deterministic avatar for the author name. Best
// effort: a missing avatar never blocks the upload.
func (a *App) storeAuthorAvatar(r *http.Request, author string) string {
	if a.Avatars == nil {
		return ""
	}
	data, _, err := a.Avatars.Fetch(r.Context(), author)
	if err != nil {
		a.Logger.Warn().Err(err).Str("author", author).Msg("avatar fetch failed")
		return ""
	}
	key, err := a.Store.Write(r.Context(), "avatars/"+uuid.NewString()+".svg", data)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("avatar store failed")
		return ""
	}
	return key
}

func (a *App) storeThumbnail(r *http.Request, form *multipart.Form) string {
	if form == nil || len(form.File["thumbnail"]) == 0 {
		return ""
	}
	fh := form.File["thumbnail"][0]
	f, err := fh.Open()
	if err != nil {
		return ""
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, 5<<20))
	if err != nil {
		return ""
	}
	key, err := a.Store.Write(r.Context(), "thumbnails/"+uuid.NewString()+path.Ext(fh.Filename), data)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("thumbnail store failed")
		return ""
	}
	return key
}

func pagination(r *http.Request, defaultLimit int) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (a *App) collectResources(rows pgx.Rows) []resourceDTO {
	items := make([]resourceDTO, 0)
	for rows.Next() {
		res, err := scanResourceValues(rows.Scan)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("resource row scan failed")
			continue
		}
		items = append(items, a.resourceDTO(res))
	}
	return items
}

func scanResource(row pgx.Row) (*domain.Resource, error) {
	return scanResourceValues(row.Scan)
}

func scanResourceValues(scan func(dest ...any) error) (*domain.Resource, error) {
	var res domain.Resource
	if err := scan(
		&res.ID, &res.Title, &res.Author, &res.AIModel, &res.Category,
		&res.Description, &res.OriginalSource, &res.FileKey, &res.AvatarKey,
		&res.ThumbnailKey, &res.Downloads, &res.AverageRating, &res.TotalRatings,
		&res.Validations, &res.UploaderID, &res.UploadedAt, &res.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan resource: %w", err)
	}
	return &res, nil
}

func (a *App) resourceDTO(res *domain.Resource) resourceDTO {
	return resourceDTO{
		ID:             res.ID,
		Title:          res.Title,
		Author:         res.Author,
		AIModel:        res.AIModel,
		Category:       res.Category,
		Description:    res.Description,
		OriginalSource: res.OriginalSource,
		FileURL:        a.fileURL(res.FileKey),
		AvatarURL:      a.fileURL(res.AvatarKey),
		ThumbnailURL:   a.fileURL(res.ThumbnailKey),
		Downloads:      res.Downloads,
		AverageRating:  res.AverageRating,
		TotalRatings:   res.TotalRatings,
		Validations:    res.Validations,
		UploaderID:     res.UploaderID,
		CreatedAt:      res.UploadedAt,
	}
}
