package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"creator-playbook/internal/access"
	"creator-playbook/internal/apperr"
	"creator-playbook/internal/client"
	"creator-playbook/internal/dto"
	"creator-playbook/internal/logger"
	"creator-playbook/internal/model"
	"creator-playbook/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

type CatalogService interface {
	List(ctx context.Context, viewer Viewer, kind string) ([]*dto.ContentResponse, error)
	Get(ctx context.Context, viewer Viewer, slug string) (*dto.ContentResponse, error)
	CurrentPlaybook(ctx context.Context, viewer Viewer) (*dto.ContentResponse, error)
	DownloadItem(ctx context.Context, viewer Viewer, slug string) (*Download, error)

	AdminList(ctx context.Context, kind string) ([]*dto.AdminContentResponse, error)
	Create(ctx context.Context, input *dto.ContentInput) (*dto.AdminContentResponse, error)
	Update(ctx context.Context, id string, input *dto.ContentInput) (*dto.AdminContentResponse, error)
	Publish(ctx context.Context, id string) (*dto.AdminContentResponse, error)
	Unpublish(ctx context.Context, id string) (*dto.AdminContentResponse, error)
	Delete(ctx context.Context, id string) error
	UploadFile(ctx context.Context, id, fileName, contentType string, size int64, r io.Reader) (*dto.AdminContentResponse, error)
}

type catalogServiceImpl struct {
	contentRepo    repository.ContentRepository
	membershipRepo repository.MembershipRepository
	unlockRepo     repository.UnlockRepository
	fileStore      client.FileStore
	now            Clock
}

func NewCatalogService(
	contentRepo repository.ContentRepository,
	membershipRepo repository.MembershipRepository,
	unlockRepo repository.UnlockRepository,
	fileStore client.FileStore,
	now Clock,
) CatalogService {
	return &catalogServiceImpl{
		contentRepo:    contentRepo,
		membershipRepo: membershipRepo,
		unlockRepo:     unlockRepo,
		fileStore:      fileStore,
		now:            clockOrNow(now),
	}
}

// requester loads everything the evaluator needs except the per-item unlock.
func (s *catalogServiceImpl) requester(ctx context.Context, viewer Viewer) (access.Requester, error) {
	r := access.Requester{
		UserID: viewer.UserID,
		Email:  access.ResolveEmail(viewer.Email, viewer.SuppliedEmail),
		Role:   viewer.Role,
	}
	if !viewer.Authenticated() {
		return r, nil
	}

	membership, err := s.membershipRepo.FindByUserID(ctx, viewer.UserID)
	switch {
	case err == nil:
		r.Membership = membership
	case !errors.Is(err, repository.ErrNotFound):
		return r, fmt.Errorf("find membership: %w", err)
	}
	return r, nil
}

func (s *catalogServiceImpl) decide(ctx context.Context, r access.Requester, item *model.ContentItem) (access.Decision, error) {
	r.Unlocked = false
	if item.Gating == model.GatingEmail && r.Email != "" {
		unlocked, err := s.unlockRepo.Exists(ctx, r.Email, item.ID)
		if err != nil {
			return access.Denied, fmt.Errorf("check unlock: %w", err)
		}
		r.Unlocked = unlocked
	}
	return access.Evaluate(r, item), nil
}

func (s *catalogServiceImpl) List(ctx context.Context, viewer Viewer, kind string) ([]*dto.ContentResponse, error) {
	filter, err := contentFilter(kind)
	if err != nil {
		return nil, err
	}
	filter.PublishedOnly = viewer.Role != model.RoleAdmin

	items, err := s.contentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}

	r, err := s.requester(ctx, viewer)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.ContentResponse, 0, len(items))
	for _, item := range items {
		decision, err := s.decide(ctx, r, item)
		if err != nil {
			return nil, err
		}
		if decision == access.Denied {
			continue
		}
		out = append(out, toContentResponse(item, decision))
	}
	return out, nil
}

func (s *catalogServiceImpl) Get(ctx context.Context, viewer Viewer, slug string) (*dto.ContentResponse, error) {
	item, decision, err := s.load(ctx, viewer, slug)
	if err != nil {
		return nil, err
	}
	return toContentResponse(item, decision), nil
}

func (s *catalogServiceImpl) CurrentPlaybook(ctx context.Context, viewer Viewer) (*dto.ContentResponse, error) {
	period := model.PeriodOf(s.now())
	item, err := s.contentRepo.FindPublishedPlaybook(ctx, period)
	if err != nil {
		return nil, notFound(err, "playbook for "+period)
	}

	r, err := s.requester(ctx, viewer)
	if err != nil {
		return nil, err
	}
	decision, err := s.decide(ctx, r, item)
	if err != nil {
		return nil, err
	}
	return toContentResponse(item, decision), nil
}

// DownloadItem serves a file to a viewer the evaluator grants. Drafts and
// unknown slugs are indistinguishable to non-admins.
func (s *catalogServiceImpl) DownloadItem(ctx context.Context, viewer Viewer, slug string) (*Download, error) {
	item, decision, err := s.load(ctx, viewer, slug)
	if err != nil {
		return nil, err
	}
	if decision != access.Granted {
		return nil, apperr.Unauthorized("you do not have access to this download")
	}

	download, err := openItemFile(ctx, s.fileStore, item)
	if err != nil {
		return nil, err
	}

	logger.Get().Info("content downloaded",
		zap.String("item_id", item.ID),
		zap.String("user_id", viewer.UserID),
	)
	return download, nil
}

func (s *catalogServiceImpl) load(ctx context.Context, viewer Viewer, slug string) (*model.ContentItem, access.Decision, error) {
	item, err := s.contentRepo.FindBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return nil, access.Denied, notFound(err, "content")
	}

	r, err := s.requester(ctx, viewer)
	if err != nil {
		return nil, access.Denied, err
	}
	decision, err := s.decide(ctx, r, item)
	if err != nil {
		return nil, access.Denied, err
	}
	if decision == access.Denied {
		return nil, access.Denied, apperr.NotFound("content")
	}
	return item, decision, nil
}

// -------- admin --------

func (s *catalogServiceImpl) AdminList(ctx context.Context, kind string) ([]*dto.AdminContentResponse, error) {
	filter, err := contentFilter(kind)
	if err != nil {
		return nil, err
	}

	items, err := s.contentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}

	out := make([]*dto.AdminContentResponse, len(items))
	for i, item := range items {
		out[i] = toAdminContentResponse(item)
	}
	return out, nil
}

func (s *catalogServiceImpl) Create(ctx context.Context, input *dto.ContentInput) (*dto.AdminContentResponse, error) {
	item := &model.ContentItem{
		ID:     uuid.NewString(),
		Status: model.StatusDraft,
	}
	if err := applyContentInput(item, input); err != nil {
		return nil, err
	}

	if _, err := s.contentRepo.FindBySlug(ctx, item.Slug); err == nil {
		return nil, apperr.Conflict("slug %q is already used", item.Slug)
	}

	if err := s.contentRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}

	logger.Get().Info("content created", zap.String("item_id", item.ID), zap.String("slug", item.Slug))
	return toAdminContentResponse(item), nil
}

func (s *catalogServiceImpl) Update(ctx context.Context, id string, input *dto.ContentInput) (*dto.AdminContentResponse, error) {
	item, err := s.contentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "content")
	}
	kind := item.Kind

	if err := applyContentInput(item, input); err != nil {
		return nil, err
	}
	if item.Kind != kind {
		return nil, apperr.Validation("content kind cannot change")
	}
	if other, err := s.contentRepo.FindBySlug(ctx, item.Slug); err == nil && other.ID != item.ID {
		return nil, apperr.Conflict("slug %q is already used", item.Slug)
	}

	if err := s.contentRepo.Update(ctx, item); err != nil {
		return nil, notFound(err, "content")
	}

	return s.adminGet(ctx, id)
}

func (s *catalogServiceImpl) Publish(ctx context.Context, id string) (*dto.AdminContentResponse, error) {
	item, err := s.contentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "content")
	}
	if item.Kind == model.ContentPlaybook && item.Period == "" {
		return nil, apperr.Validation("a playbook needs a period before publishing")
	}

	publishedAt := item.PublishedAt
	if publishedAt == nil {
		now := s.now().UTC()
		publishedAt = &now
	}
	if err := s.contentRepo.SetStatus(ctx, id, model.StatusPublished, publishedAt); err != nil {
		return nil, notFound(err, "content")
	}

	logger.Get().Info("content published", zap.String("item_id", id))
	return s.adminGet(ctx, id)
}

func (s *catalogServiceImpl) Unpublish(ctx context.Context, id string) (*dto.AdminContentResponse, error) {
	item, err := s.contentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "content")
	}
	if err := s.contentRepo.SetStatus(ctx, id, model.StatusDraft, item.PublishedAt); err != nil {
		return nil, notFound(err, "content")
	}

	logger.Get().Info("content unpublished", zap.String("item_id", id))
	return s.adminGet(ctx, id)
}

func (s *catalogServiceImpl) Delete(ctx context.Context, id string) error {
	item, err := s.contentRepo.FindByID(ctx, id)
	if err != nil {
		return notFound(err, "content")
	}
	if err := s.contentRepo.Delete(ctx, id); err != nil {
		return notFound(err, "content")
	}

	if item.FileKey != "" {
		if err := s.fileStore.Delete(ctx, item.FileKey); err != nil {
			logger.Get().Warn("delete content file", zap.String("file_key", item.FileKey), zap.Error(err))
		}
	}

	logger.Get().Info("content deleted", zap.String("item_id", id))
	return nil
}

func (s *catalogServiceImpl) UploadFile(ctx context.Context, id, fileName, contentType string, size int64, r io.Reader) (*dto.AdminContentResponse, error) {
	item, err := s.contentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "content")
	}

	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, apperr.Validation("file name is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := fmt.Sprintf("%ss/%s/%s", item.Kind, item.ID, name)

	if err := s.fileStore.Put(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	if err := s.contentRepo.SetFile(ctx, id, key, name, contentType); err != nil {
		return nil, notFound(err, "content")
	}

	if item.FileKey != "" && item.FileKey != key {
		if err := s.fileStore.Delete(ctx, item.FileKey); err != nil {
			logger.Get().Warn("delete replaced file", zap.String("file_key", item.FileKey), zap.Error(err))
		}
	}

	logger.Get().Info("content file uploaded",
		zap.String("item_id", id),
		zap.String("file_key", key),
		zap.Int64("size", size),
	)
	return s.adminGet(ctx, id)
}

func (s *catalogServiceImpl) adminGet(ctx context.Context, id string) (*dto.AdminContentResponse, error) {
	item, err := s.contentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "content")
	}
	return toAdminContentResponse(item), nil
}

func contentFilter(kind string) (repository.ContentFilter, error) {
	if kind == "" {
		return repository.ContentFilter{}, nil
	}
	k := model.ContentKind(kind)
	if !k.Valid() {
		return repository.ContentFilter{}, apperr.Validation("unknown content kind %q", kind)
	}
	return repository.ContentFilter{Kind: k}, nil
}

func applyContentInput(item *model.ContentItem, input *dto.ContentInput) error {
	slug := strings.TrimSpace(input.Slug)
	if !slugPattern.MatchString(slug) {
		return apperr.Validation("slug must be lowercase words joined by dashes")
	}
	kind := model.ContentKind(input.Kind)
	if !kind.Valid() {
		return apperr.Validation("unknown content kind %q", input.Kind)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return apperr.Validation("title is required")
	}
	gating := model.GatingLevel(input.Gating)
	if input.Gating == "" {
		gating = model.GatingMember
	}
	if !gating.Valid() {
		return apperr.Validation("unknown gating level %q", input.Gating)
	}
	if input.PriceCents < 0 {
		return apperr.Validation("price cannot be negative")
	}
	if input.Period != "" && !periodPattern.MatchString(input.Period) {
		return apperr.Validation("period must look like YYYY-MM")
	}
	if kind == model.ContentPlaybook && input.Period == "" {
		return apperr.Validation("a playbook needs a period")
	}

	item.Slug = slug
	item.Kind = kind
	item.Title = title
	item.Summary = strings.TrimSpace(input.Summary)
	item.FreePreview = input.FreePreview
	item.Gating = gating
	item.PriceCents = input.PriceCents
	item.Period = input.Period
	item.VideoURL = strings.TrimSpace(input.VideoURL)
	item.Tags = datatypes.JSONSlice[string](input.Tags)
	return nil
}

func toContentResponse(item *model.ContentItem, decision access.Decision) *dto.ContentResponse {
	resp := &dto.ContentResponse{
		ID:          item.ID,
		Slug:        item.Slug,
		Kind:        string(item.Kind),
		Title:       item.Title,
		Summary:     item.Summary,
		FreePreview: item.FreePreview,
		Gating:      string(item.Gating),
		Period:      item.Period,
		Tags:        tags(item.Tags),
		PublishedAt: item.PublishedAt,
		Access:      string(decision),
	}
	if item.PriceCents > 0 {
		resp.Price = formatCents(item.PriceCents)
	}
	if decision == access.Granted {
		resp.VideoURL = item.VideoURL
		if item.FileKey != "" {
			resp.DownloadURL = "/api/content/" + item.Slug + "/download"
		}
	}
	return resp
}

func toAdminContentResponse(item *model.ContentItem) *dto.AdminContentResponse {
	return &dto.AdminContentResponse{
		ID:          item.ID,
		Slug:        item.Slug,
		Kind:        string(item.Kind),
		Title:       item.Title,
		Summary:     item.Summary,
		Status:      string(item.Status),
		FreePreview: item.FreePreview,
		Gating:      string(item.Gating),
		PriceCents:  item.PriceCents,
		Period:      item.Period,
		FileKey:     item.FileKey,
		FileName:    item.FileName,
		VideoURL:    item.VideoURL,
		Tags:        tags(item.Tags),
		PublishedAt: item.PublishedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func tags(t datatypes.JSONSlice[string]) []string {
	if t == nil {
		return []string{}
	}
	return []string(t)
}
