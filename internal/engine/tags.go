package engine

import (
	"context"
	"fmt"
)

// Derived tag names.
const (
	TagUrgent = "urgent"
	TagReturn = "return"
)

// TagSync keeps a lead's derived tags in step with its active service files
// and routes stage movement through the single atomic server procedure.
type TagSync struct {
	store Store
}

// NewTagSync creates a tag synchronizer over the given store.
func NewTagSync(store Store) *TagSync {
	return &TagSync{store: store}
}

// SyncLeadTags recomputes the urgent and return tags for a lead from its
// non-archived service files, touching storage only where the desired state
// differs from the current one.
func (ts *TagSync) SyncLeadTags(ctx context.Context, leadID uint) error {
	files, err := ts.store.ActiveServiceFilesByLead(ctx, leadID)
	if err != nil {
		return fmt.Errorf("failed to load active service files: %w", err)
	}

	wantUrgent, wantReturn := false, false
	for i := range files {
		if files[i].Urgent {
			wantUrgent = true
		}
		if files[i].IsReturn {
			wantReturn = true
		}
	}

	if err := ts.applyTag(ctx, leadID, TagUrgent, wantUrgent); err != nil {
		return err
	}
	return ts.applyTag(ctx, leadID, TagReturn, wantReturn)
}

func (ts *TagSync) applyTag(ctx context.Context, leadID uint, name string, want bool) error {
	tag, err := ts.store.EnsureTag(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to resolve tag %q: %w", name, err)
	}
	has, err := ts.store.LeadHasTag(ctx, leadID, tag.ID)
	if err != nil {
		return fmt.Errorf("failed to check tag %q: %w", name, err)
	}
	if want == has {
		return nil
	}
	if want {
		if err := ts.store.AddLeadTag(ctx, leadID, tag.ID); err != nil {
			return fmt.Errorf("failed to add tag %q: %w", name, err)
		}
		return nil
	}
	if err := ts.store.RemoveLeadTag(ctx, leadID, tag.ID); err != nil {
		return fmt.Errorf("failed to remove tag %q: %w", name, err)
	}
	return nil
}

// MoveToStage performs an atomic stage transition through the server-side
// procedure, so the stage-history entry and the current-stage pointer always
// change together. Client code never does this as a manual multi-table
// update.
func (ts *TagSync) MoveToStage(ctx context.Context, itemType string, itemID, pipelineID, stageID uint, technicianID *uint) error {
	if err := ts.store.MoveItemToStage(ctx, itemType, itemID, pipelineID, stageID, technicianID); err != nil {
		return fmt.Errorf("failed to move %s %d to stage %d: %w", itemType, itemID, stageID, err)
	}
	return nil
}
