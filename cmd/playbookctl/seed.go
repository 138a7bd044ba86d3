package main

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"creator-playbook/internal/client"
	"creator-playbook/internal/logger"
	"creator-playbook/internal/model"
	"creator-playbook/internal/repository"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type seedFile struct {
	Content []seedItem `yaml:"content"`
}

type seedItem struct {
	ID          string   `yaml:"id"`
	Slug        string   `yaml:"slug"`
	Kind        string   `yaml:"kind"`
	Title       string   `yaml:"title"`
	Summary     string   `yaml:"summary"`
	Status      string   `yaml:"status"`
	FreePreview bool     `yaml:"free_preview"`
	Gating      string   `yaml:"gating"`
	PriceCents  int64    `yaml:"price_cents"`
	Period      string   `yaml:"period"`
	FileKey     string   `yaml:"file_key"`
	FileName    string   `yaml:"file_name"`
	ContentType string   `yaml:"content_type"`
	VideoURL    string   `yaml:"video_url"`
	Tags        []string `yaml:"tags"`
}

func newSeedCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert catalog content from a YAML file, keyed by slug",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()

			items, err := loadSeed(f, time.Now())
			if err != nil {
				return err
			}

			db, err := client.InitDBClient(&a.cfg.Database)
			if err != nil {
				return err
			}
			contentRepo := repository.NewContentRepository(db)

			for _, item := range items {
				if err := contentRepo.Upsert(cmd.Context(), item); err != nil {
					return fmt.Errorf("upsert %s: %w", item.Slug, err)
				}
				logger.Get().Info("content seeded",
					zap.String("slug", item.Slug),
					zap.String("kind", string(item.Kind)),
					zap.String("status", string(item.Status)),
				)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d items\n", len(items))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the YAML seed file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// loadSeed parses and validates a seed document. Published items get
// published_at set to now.
func loadSeed(r io.Reader, now time.Time) ([]*model.ContentItem, error) {
	var doc seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	seen := map[string]bool{}
	items := make([]*model.ContentItem, 0, len(doc.Content))
	for i, s := range doc.Content {
		if s.Slug == "" || s.Title == "" {
			return nil, fmt.Errorf("content[%d]: slug and title are required", i)
		}
		if seen[s.Slug] {
			return nil, fmt.Errorf("content[%d]: duplicate slug %q", i, s.Slug)
		}
		seen[s.Slug] = true

		kind := model.ContentKind(s.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("content[%d]: unknown kind %q", i, s.Kind)
		}

		gating := model.GatingMember
		if s.Gating != "" {
			gating = model.GatingLevel(s.Gating)
		}
		if !gating.Valid() {
			return nil, fmt.Errorf("content[%d]: unknown gating %q", i, s.Gating)
		}

		status := model.StatusDraft
		switch s.Status {
		case "", string(model.StatusDraft):
		case string(model.StatusPublished):
			status = model.StatusPublished
		default:
			return nil, fmt.Errorf("content[%d]: unknown status %q", i, s.Status)
		}

		if s.Period != "" && !periodPattern.MatchString(s.Period) {
			return nil, fmt.Errorf("content[%d]: period must be YYYY-MM", i)
		}
		if kind == model.ContentPlaybook && status == model.StatusPublished && s.Period == "" {
			return nil, fmt.Errorf("content[%d]: a published playbook needs a period", i)
		}
		if s.PriceCents < 0 {
			return nil, fmt.Errorf("content[%d]: price must not be negative", i)
		}

		id := s.ID
		if id == "" {
			id = uuid.NewString()
		}

		item := &model.ContentItem{
			ID:          id,
			Slug:        s.Slug,
			Kind:        kind,
			Title:       s.Title,
			Summary:     s.Summary,
			Status:      status,
			FreePreview: s.FreePreview,
			Gating:      gating,
			PriceCents:  s.PriceCents,
			Period:      s.Period,
			FileKey:     s.FileKey,
			FileName:    s.FileName,
			ContentType: s.ContentType,
			VideoURL:    s.VideoURL,
			Tags:        datatypes.JSONSlice[string](s.Tags),
		}
		if status == model.StatusPublished {
			published := now.UTC()
			item.PublishedAt = &published
		}
		items = append(items, item)
	}

	return items, nil
}
