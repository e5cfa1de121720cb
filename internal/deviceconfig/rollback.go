package deviceconfig

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

// ConfigurationSnapshot represents a saved runtime configuration for rollback
type ConfigurationSnapshot struct {
	// Config is the saved runtime configuration
	Config *runtimeconfig.Shape

	// Timestamp when this snapshot was created
	Timestamp time.Time

	// Description of what operation this snapshot was taken before
	Description string
}

// RollbackManager keeps runtime configuration snapshots so an operator can
// restore an earlier state. Nothing here runs automatically on the normal
// save path.
type RollbackManager struct {
	client *Client

	// snapshots is bounded by maxSnapshots, oldest first
	snapshots []*ConfigurationSnapshot

	maxSnapshots int

	mutex sync.RWMutex
}

// NewRollbackManager creates a new rollback manager for a client
func NewRollbackManager(client *Client) *RollbackManager {
	return &RollbackManager{
		client:       client,
		snapshots:    make([]*ConfigurationSnapshot, 0, 10),
		maxSnapshots: 10,
	}
}

// SaveSnapshot reads the current runtime configuration and stores it.
func (rm *RollbackManager) SaveSnapshot(ctx context.Context, description string) error {
	config, err := rm.client.GetRuntimeConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch runtime configuration for snapshot: %w", err)
	}

	rm.AddSnapshot(config, description)
	return nil
}

// AddSnapshot stores an already known configuration.
func (rm *RollbackManager) AddSnapshot(config *runtimeconfig.Shape, description string) {
	snapshot := &ConfigurationSnapshot{
		Config:      runtimeconfig.New(config).Flatten(),
		Timestamp:   time.Now(),
		Description: description,
	}

	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	rm.snapshots = append(rm.snapshots, snapshot)
	if len(rm.snapshots) > rm.maxSnapshots {
		rm.snapshots = rm.snapshots[1:]
	}
}

// GetLatestSnapshot returns the most recent snapshot, or nil if no snapshots exist
func (rm *RollbackManager) GetLatestSnapshot() *ConfigurationSnapshot {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	if len(rm.snapshots) == 0 {
		return nil
	}

	return rm.snapshots[len(rm.snapshots)-1]
}

// GetSnapshots returns all snapshots in chronological order (oldest first)
func (rm *RollbackManager) GetSnapshots() []*ConfigurationSnapshot {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	result := make([]*ConfigurationSnapshot, len(rm.snapshots))
	copy(result, rm.snapshots)
	return result
}

// ClearSnapshots removes all saved snapshots
func (rm *RollbackManager) ClearSnapshots() {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	rm.snapshots = make([]*ConfigurationSnapshot, 0, 10)
}

// RollbackToSnapshot writes the snapshot back and verifies it.
func (rm *RollbackManager) RollbackToSnapshot(ctx context.Context, snapshot *ConfigurationSnapshot, opts *VerificationOptions) *VerificationResult {
	if snapshot == nil {
		return &VerificationResult{
			Error: fmt.Errorf("snapshot is nil"),
		}
	}

	return rm.client.UpdateAndVerify(ctx, snapshot.Config, opts)
}

// RollbackToLatest restores the most recent snapshot.
func (rm *RollbackManager) RollbackToLatest(ctx context.Context, opts *VerificationOptions) *VerificationResult {
	snapshot := rm.GetLatestSnapshot()
	if snapshot == nil {
		return &VerificationResult{
			Error: fmt.Errorf("no snapshots available for rollback"),
		}
	}

	return rm.RollbackToSnapshot(ctx, snapshot, opts)
}

// SafeUpdate snapshots the current configuration, writes update with
// verification and, only if verification fails, writes the snapshot back.
// It is an explicit operator action (the console's --safe flag).
func (rm *RollbackManager) SafeUpdate(ctx context.Context, update *runtimeconfig.Shape, opts *VerificationOptions, description string) *SafeUpdateResult {
	result := &SafeUpdateResult{
		Description: description,
	}

	if err := rm.SaveSnapshot(ctx, description); err != nil {
		result.Error = fmt.Errorf("failed to save pre-update snapshot: %w", err)
		return result
	}

	verifyResult := rm.client.UpdateAndVerify(ctx, update, opts)
	result.UpdateResult = verifyResult

	if verifyResult.Success {
		result.Success = true
		return result
	}

	result.RollbackAttempted = true
	rollbackResult := rm.RollbackToLatest(ctx, opts)
	result.RollbackResult = rollbackResult

	if rollbackResult.Success {
		result.RollbackSucceeded = true
		result.Error = fmt.Errorf("update failed (verification: %w), rolled back to previous configuration", verifyResult.Error)
	} else {
		result.Error = fmt.Errorf("update failed (verification: %w) AND rollback failed: %w", verifyResult.Error, rollbackResult.Error)
	}

	return result
}

// SafeUpdateResult contains the results of a safe update operation
type SafeUpdateResult struct {
	Success bool

	Description string

	UpdateResult *VerificationResult

	RollbackAttempted bool

	// RollbackSucceeded is only meaningful when RollbackAttempted is true
	RollbackSucceeded bool

	RollbackResult *VerificationResult

	Error error
}

// String returns a human-readable summary of the safe update result
func (r *SafeUpdateResult) String() string {
	if r.Success {
		return fmt.Sprintf("✅ Update succeeded: %s (verified in %d attempt(s))",
			r.Description, r.UpdateResult.Attempts)
	}

	if r.RollbackAttempted {
		if r.RollbackSucceeded {
			return fmt.Sprintf("⚠️  Update failed but successfully rolled back: %s\nUpdate error: %v\nRollback: successful after %d attempt(s)",
				r.Description, r.UpdateResult.Error, r.RollbackResult.Attempts)
		}
		return fmt.Sprintf("❌ Update failed and rollback failed: %s\nUpdate error: %v\nRollback error: %v",
			r.Description, r.UpdateResult.Error, r.RollbackResult.Error)
	}

	return fmt.Sprintf("❌ Update failed: %s\nError: %v",
		r.Description, r.Error)
}

// PromptBeforeDestructive returns a warning when update would reduce what
// the reader reports per tag, or an empty string when the change is benign.
func PromptBeforeDestructive(current, update *runtimeconfig.Shape) string {
	var warnings []string

	cur := runtimeconfig.New(current)
	upd := runtimeconfig.New(update)

	if v, ok := upd.Length(runtimeconfig.TagsInField); ok && v == 0 {
		warnings = append(warnings, "⚠️  tagsInField 0 disables the per-tag register block")
	}

	if current != nil {
		for _, f := range runtimeconfig.Flags() {
			if cur.Flag(f) && !upd.Flag(f) {
				warnings = append(warnings, fmt.Sprintf("⚠️  %s will no longer be included in tag reads", f.Label()))
			}
		}
		if cur.LengthOrZero(runtimeconfig.TagsInField) > upd.LengthOrZero(runtimeconfig.TagsInField) {
			warnings = append(warnings, "⚠️  Fewer tags will be reported per inventory")
		}
	}

	if len(warnings) == 0 {
		return ""
	}

	msg := "⚠️  POTENTIALLY DESTRUCTIVE CHANGES DETECTED ⚠️\n\n"
	for _, w := range warnings {
		msg += w + "\n"
	}
	msg += "\nPLC programs reading the runtime registers rely on this layout.\n"
	msg += "Use --safe to roll back automatically if verification fails.\n"

	return msg
}
