package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kanban-mcp/kanban/internal/cardfile"
	"github.com/kanban-mcp/kanban/internal/columns"
	"github.com/kanban-mcp/kanban/internal/kerr"
	"github.com/kanban-mcp/kanban/internal/pathguard"
)

// BodyPatch carries a body mutation: Replace overwrites the body
// verbatim, otherwise Text is appended with at most one connecting
// newline inserted.
type BodyPatch struct {
	Text    string
	Replace bool
}

// FrontMatterPatch merges by key into the card's front matter: a missing
// key (a nil field) leaves the existing value untouched, an explicit
// empty slice clears an array field, and a pointer to "" clears a scalar
// string field (the dispatcher maps an explicit JSON null to that).
// Array-valued keys fully replace rather than append.
type FrontMatterPatch struct {
	Title      *string
	Lane       *string
	Priority   *string
	Size       *int
	Status     *string
	Assignees  *[]string
	Labels     *[]string
	ResumeHint *string
	NextSteps  *[]string
	Blockers   *[]string
}

// UpdatePatch is update()'s full argument: front-matter merge plus an
// optional body mutation.
type UpdatePatch struct {
	FM   FrontMatterPatch
	Body *BodyPatch
}

// UpdateResult is the payload of a successful update() call.
type UpdateResult struct {
	Path     string
	Warnings []string
}

// Update merges patch.FM into the card's front matter and applies
// patch.Body, rewriting the card file atomically. A title change renames
// the file (ULID stays the same) and refreshes updated_at.
func (b *Board) Update(cardID string, patch UpdatePatch) (UpdateResult, error) {
	if patch.Body != nil && patch.Body.Text == "" && !patch.Body.Replace {
		return UpdateResult{}, kerr.Invalid("body patch text is required unless replace=true")
	}
	if patch.FM.Priority != nil && !validPriorities[*patch.FM.Priority] {
		return UpdateResult{}, kerr.Invalid("invalid priority %q", *patch.FM.Priority)
	}
	if patch.FM.Size != nil && *patch.FM.Size < 0 {
		return UpdateResult{}, kerr.Invalid("size must be non-negative")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.lookupRecord(cardID)
	if err != nil {
		return UpdateResult{}, err
	}
	srcAbs, err := b.guard.Resolve(rec.Path)
	if err != nil {
		return UpdateResult{}, err
	}
	card, err := cardfile.ReadFile(srcAbs)
	if err != nil {
		return UpdateResult{}, err
	}

	renamed := applyFrontMatterPatch(card, patch.FM)
	if patch.Body != nil {
		applyBodyPatch(card, *patch.Body)
	}

	var warnings []string
	dstAbs := srcAbs
	if renamed {
		candidate := filepath.Join(filepath.Dir(srcAbs), pathguard.CardFilename(card.ID, card.Title))
		var warning string
		dstAbs, warning = decideRenameTarget(b.cols, srcAbs, candidate)
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}

	if err := cardfile.WriteFile(srcAbs, card.Serialize(), cardfile.AtomicWriteOptions{}); err != nil {
		return UpdateResult{}, err
	}
	if !pathguard.EqualPath(srcAbs, dstAbs) {
		if err := os.Rename(srcAbs, dstAbs); err != nil {
			return UpdateResult{}, kerr.Wrap(err, "rename %q to %q", srcAbs, dstAbs)
		}
	}

	now := time.Now().UTC()
	if patch.FM.Title != nil {
		rec.Title = *patch.FM.Title
	}
	if patch.FM.Assignees != nil {
		rec.Assignees = *patch.FM.Assignees
	}
	if patch.FM.Labels != nil {
		rec.Labels = *patch.FM.Labels
	}
	rec.Lane = card.Lane
	rec.Path = b.relPathFromAbs(dstAbs)
	rec.UpdatedAt = now.Format(time.RFC3339)
	if err := b.cardIdx.Upsert(rec); err != nil {
		return UpdateResult{}, err
	}

	b.notify(cardID)
	return UpdateResult{Path: rec.Path, Warnings: warnings}, nil
}

// decideRenameTarget resolves a title-change rename against a possible
// filename collision at candidate. If candidate is free, it wins
// outright. Otherwise spec §4.7's auto_rename_on_conflict governs: when
// enabled, up to 50 numbered-suffix alternatives are tried before giving
// up; when disabled (the default), the original filename is kept and a
// warning is surfaced rather than clobbering or erroring.
func decideRenameTarget(cfg *columns.Config, current, candidate string) (target string, warning string) {
	if pathguard.EqualPath(current, candidate) {
		return current, ""
	}
	if !pathExists(candidate) {
		return candidate, ""
	}
	if !cfg.AutoRenameOnConflict {
		return current, fmt.Sprintf("rename target exists; kept original filename: %s", candidate)
	}

	suffix := strings.TrimPrefix(cfg.RenameSuffix, "-")
	if suffix == "" {
		suffix = "1"
	}
	ext := strings.TrimPrefix(filepath.Ext(candidate), ".")
	if ext == "" {
		ext = "md"
	}
	stem := strings.TrimSuffix(filepath.Base(candidate), filepath.Ext(candidate))
	dir := filepath.Dir(candidate)
	for i := 1; i <= 50; i++ {
		alt := filepath.Join(dir, fmt.Sprintf("%s-%s%d.%s", stem, suffix, i, ext))
		if !pathExists(alt) {
			return alt, fmt.Sprintf("rename conflict; auto-renamed to %s", filepath.Base(alt))
		}
	}
	return current, "rename conflict; auto-rename failed; kept original filename"
}

// pathExists reports whether p names an existing filesystem entry.
func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// applyFrontMatterPatch merges patch into card in place, reporting
// whether the title changed (and therefore the filename must change).
func applyFrontMatterPatch(card *cardfile.Card, patch FrontMatterPatch) (renamed bool) {
	if patch.Title != nil && *patch.Title != card.Title {
		card.Title = *patch.Title
		renamed = true
	}
	if patch.Lane != nil {
		card.Lane = *patch.Lane
	}
	if patch.Priority != nil {
		card.Priority = *patch.Priority
	}
	if patch.Size != nil {
		card.Size = *patch.Size
	}
	if patch.Status != nil {
		card.MarkOptionalSeen("status")
		card.Status = *patch.Status
	}
	if patch.Assignees != nil {
		card.Assignees = *patch.Assignees
	}
	if patch.Labels != nil {
		card.Labels = *patch.Labels
	}
	if patch.ResumeHint != nil {
		card.MarkOptionalSeen("resume_hint")
		card.ResumeHint = *patch.ResumeHint
	}
	if patch.NextSteps != nil {
		card.NextSteps = *patch.NextSteps
	}
	if patch.Blockers != nil {
		card.Blockers = *patch.Blockers
	}
	return renamed
}

// applyBodyPatch implements spec §4.7's body semantics: replace
// overwrites verbatim with no trailing newline forced; append inserts a
// connecting newline only if the existing body is non-empty and doesn't
// already end with one, then always appends a trailing newline.
func applyBodyPatch(card *cardfile.Card, patch BodyPatch) {
	if patch.Replace {
		card.Body = patch.Text
		return
	}
	var b strings.Builder
	b.WriteString(card.Body)
	if card.Body != "" && !strings.HasSuffix(card.Body, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(patch.Text)
	b.WriteString("\n")
	card.Body = b.String()
}
