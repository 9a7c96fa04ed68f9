// Package ingest runs one file through conversion, splitting, chunking,
// embedding and persistence.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docembed/internal/ai"
	"github.com/xxxsen/docembed/internal/checksum"
	"github.com/xxxsen/docembed/internal/chunker"
	"github.com/xxxsen/docembed/internal/convert"
	"github.com/xxxsen/docembed/internal/model"
	"github.com/xxxsen/docembed/internal/quota"
	"github.com/xxxsen/docembed/internal/section"
	"github.com/xxxsen/docembed/internal/tokenizer"
)

const (
	DefaultMinContentChars = 20
	metaKeyTitle           = "title"
	metaKeyContentType     = "content_type"
)

type Options struct {
	MaxChunkChars   int
	MinContentChars int
}

type Processor struct {
	store    Store
	embedder ai.IEmbedder
	tk       tokenizer.Tokenizer
	opts     Options
}

func NewProcessor(store Store, embedder ai.IEmbedder, tk tokenizer.Tokenizer, opts Options) *Processor {
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = chunker.DefaultMaxLength
	}
	if opts.MinContentChars <= 0 {
		opts.MinContentChars = DefaultMinContentChars
	}
	if tk == nil {
		tk = tokenizer.NewHeuristic(tokenizer.DefaultCharsPerToken)
	}
	return &Processor{store: store, embedder: embedder, tk: tk, opts: opts}
}

// Input is one file of a batch together with the batch wide state it is
// checked against.
type Input struct {
	SourceID  string
	ProjectID string
	File      model.FileData
	Selectors convert.Options
	Checksums *checksum.Index
	// Budget tracks this file's tokens. Nil means the team is not limited.
	Budget *quota.Budget
}

type Result struct {
	Path     string
	FileID   string
	Skipped  bool
	Sections int
	Tokens   int64
	Errors   []model.FileError
	Warnings []string
}

func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

func (r *Result) addError(err error) {
	fe := model.FileError{Path: r.Path, Message: err.Error()}
	var qe *quota.QuotaExceededError
	if errors.As(err, &qe) {
		fe.ErrorID = qe.ID()
	}
	r.Errors = append(r.Errors, fe)
}

// Process embeds and stores one file. A file whose checksum matches the
// snapshot is skipped without any call or write. When any chunk fails, the
// quota trips or persistence fails, nothing of the file stays stored.
func (p *Processor) Process(ctx context.Context, in Input) *Result {
	file := in.File
	res := &Result{Path: file.Path}
	logger := logutil.GetLogger(ctx).With(zap.String("source_id", in.SourceID), zap.String("path", file.Path))

	sum := checksum.Sum(file.Content)
	if in.Checksums.Unchanged(file.Path, sum) {
		res.Skipped = true
		logger.Debug("file unchanged, skip")
		return res
	}

	ct := convert.DetectContentType(file.Path, file.ContentType)
	markdown, err := convert.Convert(ctx, file.Content, ct, in.Selectors)
	if err != nil {
		res.addError(fmt.Errorf("convert: %w", err))
		return res
	}
	doc := section.Split(markdown)
	title := section.InferTitle(doc.Frontmatter, doc.LeadHeading, file.Name)
	meta := mergeMeta(map[string]interface{}{metaKeyTitle: title}, doc.Frontmatter, file.Metadata)
	internal := mergeMeta(file.InternalMetadata, map[string]interface{}{metaKeyContentType: string(ct)})

	budget := in.Budget
	chunks := chunker.SplitSections(doc.Sections, p.opts.MaxChunkChars)
	sections := make([]model.SectionRecord, 0, len(chunks))
	var tokens int
	for i, chunk := range chunks {
		if utf8.RuneCountInString(strings.TrimSpace(chunk.Content)) < p.opts.MinContentChars {
			continue
		}
		estimate := int64(p.tk.Count(chunk.Content))
		if budget != nil {
			if err := budget.Reserve(estimate); err != nil {
				logger.Warn("token allowance exceeded, abort file", zap.Int("chunk", i), zap.Error(err))
				res.addError(err)
				break
			}
		}
		emb, err := p.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			if budget != nil {
				_ = budget.Reconcile(estimate, 0)
			}
			logger.Warn("embed chunk failed", zap.Int("chunk", i), zap.Error(err))
			res.addError(fmt.Errorf("embed chunk %d: %w", i, err))
			continue
		}
		if budget != nil {
			if err := budget.Reconcile(estimate, int64(emb.TokenCount)); err != nil {
				logger.Warn("token allowance exceeded, abort file", zap.Int("chunk", i), zap.Error(err))
				res.addError(err)
				break
			}
		}
		logger.Debug("chunk embedded", zap.Int("chunk", i), zap.Int("tokens", emb.TokenCount))
		tokens += emb.TokenCount
		sections = append(sections, model.SectionRecord{
			ProjectID:  in.ProjectID,
			Content:    chunk.Content,
			Meta:       model.SectionMeta{LeadHeading: chunk.LeadHeading},
			FileMeta:   meta,
			Embedding:  emb.Vector,
			TokenCount: emb.TokenCount,
		})
	}

	if !res.OK() {
		p.revert(ctx, in.SourceID, file.Path)
		if budget != nil {
			budget.Rollback()
		}
		return res
	}

	record := &model.FileRecord{
		SourceID:         in.SourceID,
		ProjectID:        in.ProjectID,
		Path:             file.Path,
		Checksum:         sum,
		Meta:             meta,
		RawContent:       file.Content,
		InternalMetadata: internal,
	}
	w := &writer{store: p.store}
	warnings, err := w.write(ctx, record, sections, tokens)
	res.Warnings = append(res.Warnings, warnings...)
	if err != nil {
		logger.Error("persist file failed", zap.Error(err))
		res.addError(fmt.Errorf("persist: %w", err))
		p.revert(ctx, in.SourceID, file.Path)
		if budget != nil {
			budget.Rollback()
		}
		return res
	}
	if budget != nil {
		res.Tokens = budget.Commit()
	} else {
		res.Tokens = int64(tokens)
	}
	res.FileID = record.ID
	res.Sections = len(sections)
	logger.Info("file embedded", zap.Int("sections", res.Sections), zap.Int64("tokens", res.Tokens))
	return res
}

// revert removes whatever is stored for the path so the next run starts
// from scratch.
func (p *Processor) revert(ctx context.Context, sourceID, path string) {
	existing, err := p.store.FindFile(ctx, sourceID, path)
	if err != nil {
		if !isNotFound(err) {
			logutil.GetLogger(ctx).Error("lookup file for revert failed", zap.String("path", path), zap.Error(err))
		}
		return
	}
	if err := p.store.DeleteFile(ctx, existing.ID); err != nil {
		logutil.GetLogger(ctx).Error("revert file failed", zap.String("path", path), zap.Error(err))
	}
}

// mergeMeta merges maps left to right; later keys win.
func mergeMeta(parts ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, part := range parts {
		for k, v := range part {
			out[k] = v
		}
	}
	return out
}
