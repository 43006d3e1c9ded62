package mine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/classifier"
	"github.com/dtnitsch/review-miner/pkg/cleaner"
	"github.com/dtnitsch/review-miner/pkg/dedup"
	"github.com/dtnitsch/review-miner/pkg/export"
)

var ErrInvalidInput = errors.New("invalid input file")

// Processor turns raw reviews into a processed batch: clean, dedup,
// classify. It holds no per-batch state and is shared by all workers.
type Processor struct {
	cleaner    *cleaner.Cleaner
	dedup      *dedup.Deduplicator
	classifier *classifier.Classifier
	log        logger.Logger
	now        func() time.Time
}

func NewProcessor(settings *models.Settings, log logger.Logger, opts ...cleaner.Option) *Processor {
	var categories []models.Category
	if settings.Catalog != nil {
		categories = settings.Catalog.Categories
	}
	return &Processor{
		cleaner:    cleaner.New(settings.Processing, log, opts...),
		dedup:      dedup.New(settings.Processing, log),
		classifier: classifier.New(categories, settings.Processing.ClassificationConfidenceThreshold, log),
		log:        log,
		now:        time.Now,
	}
}

// Process runs one scraped batch through every stage and stamps the
// surviving reviews as processed.
func (p *Processor) Process(appName string, in ScrapedBatch) *models.Batch {
	p.log.Info("Processing batch", "app", appName, "platform", in.Platform, "reviews", len(in.Reviews))

	cleaned := p.cleaner.CleanReviews(in.Reviews)
	deduped := p.dedup.Deduplicate(cleaned)
	classified := p.classifier.ClassifyReviews(deduped)

	cs := p.cleaner.Stats(len(in.Reviews), cleaned)
	ds := p.dedup.Stats(len(cleaned), len(deduped))
	p.log.Info("Processed batch",
		"platform", in.Platform,
		"cleaning_removal_rate", fmt.Sprintf("%.2f", cs.RemovalRate),
		"avg_length_reduction", fmt.Sprintf("%.1f", cs.AverageLengthReduction),
		"dedup_removal_rate", fmt.Sprintf("%.2f", ds.RemovalRate),
	)

	now := p.now()
	for i := range classified {
		classified[i].MarkProcessed(now)
	}

	return &models.Batch{
		Reviews:        classified,
		AppName:        appName,
		Platform:       in.Platform,
		ScrapedAt:      in.ScrapedAt,
		TotalScraped:   len(in.Reviews),
		TotalProcessed: len(classified),
		ProcessingStats: &models.ProcessingStats{
			OriginalCount:     len(in.Reviews),
			CleanedCount:      len(cleaned),
			DeduplicatedCount: len(deduped),
			ClassifiedCount:   len(classified),
			FinalCount:        len(classified),
		},
	}
}

// Input is a batch of raw reviews read from disk.
type Input struct {
	AppName   string
	Platform  string
	ScrapedAt time.Time
	Reviews   []models.RawReview
}

// inputFile matches both the exported batch layout (metadata + reviews) and
// the raw snapshot layout (app_name, platform, scraped_at, reviews).
type inputFile struct {
	Metadata  *export.BatchMetadata `json:"metadata"`
	AppName   string                `json:"app_name"`
	Platform  string                `json:"platform"`
	ScrapedAt string                `json:"scraped_at"`
	Reviews   []models.RawReview    `json:"reviews"`
}

// LoadInput reads an exported batch, a raw snapshot or a bare JSON array of
// raw reviews. Processed fields in exported batches are ignored; the
// original content is processed again.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidInput, path)
	}

	in := &Input{}
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &in.Reviews); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
		}
	case '{':
		var doc inputFile
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
		}
		in.AppName, in.Platform = doc.AppName, doc.Platform
		scrapedAt := doc.ScrapedAt
		if doc.Metadata != nil {
			in.AppName, in.Platform = doc.Metadata.AppName, doc.Metadata.Platform
			scrapedAt = doc.Metadata.ScrapedAt
		}
		if t := cleaner.NormalizeDate(scrapedAt); t != nil {
			in.ScrapedAt = *t
		}
		in.Reviews = doc.Reviews
	default:
		return nil, fmt.Errorf("%w: %s is not a JSON object or array", ErrInvalidInput, path)
	}

	// A bare array carries its identity on the reviews themselves.
	if len(in.Reviews) > 0 {
		if in.AppName == "" {
			in.AppName = in.Reviews[0].AppName
		}
		if in.Platform == "" {
			in.Platform = in.Reviews[0].Platform
		}
	}
	return in, nil
}

// Override replaces the app and platform, filling them into every review.
// Empty values keep what the file says.
func (in *Input) Override(appName, platform string) error {
	if appName != "" {
		in.AppName = appName
	}
	if platform != "" {
		in.Platform = strings.ToLower(platform)
	}
	if in.AppName == "" {
		return fmt.Errorf("%w: app name unknown, pass --app", ErrInvalidInput)
	}
	if in.Platform == "" {
		return fmt.Errorf("%w: platform unknown, pass --platform", ErrInvalidInput)
	}
	for i := range in.Reviews {
		if appName != "" || in.Reviews[i].AppName == "" {
			in.Reviews[i].AppName = in.AppName
		}
		if platform != "" || in.Reviews[i].Platform == "" {
			in.Reviews[i].Platform = in.Platform
		}
	}
	return nil
}
