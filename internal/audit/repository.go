package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
	"github.com/openclinic-ke/gbvcare/internal/shared/metrics"
)

// Repository provides append-only audit log operations
type Repository struct {
	pool     *pgxpool.Pool
	mu       sync.Mutex
	lastHash string
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Initialize loads the chain head from the database
func (r *Repository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var hash string
	err := r.pool.QueryRow(ctx, `
		SELECT hash FROM audit_entries
		ORDER BY sequence DESC
		LIMIT 1
	`).Scan(&hash)

	if err != nil && !strings.Contains(err.Error(), "no rows") {
		return errors.Wrap(err, "failed to get last audit hash")
	}

	r.lastHash = hash
	return nil
}

// Append appends an entry to the chain (thread-safe). The entry's
// prev_hash and hash are set here so concurrent writers cannot fork
// the chain.
func (r *Repository) Append(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.PrevHash = r.lastHash
	entry.Hash = entry.computeHash()

	changesJSON, err := json.Marshal(entry.Changes)
	if err != nil {
		return errors.Wrap(err, "failed to marshal changes")
	}

	query := `
		INSERT INTO audit_entries (
			id, timestamp, hash, prev_hash,
			actor_type, actor_id, actor_ip,
			action, resource_type, resource_id, changes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		) RETURNING sequence`

	err = r.pool.QueryRow(ctx, query,
		entry.ID, entry.Timestamp, entry.Hash, entry.PrevHash,
		entry.ActorType, entry.ActorID, entry.ActorIP,
		entry.Action, entry.ResourceType, entry.ResourceID,
		changesJSON,
	).Scan(&entry.Sequence)
	if err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	r.lastHash = entry.Hash
	metrics.RecordAuditEntry()

	return nil
}

const entryColumns = `
	id, sequence, timestamp, hash, prev_hash,
	actor_type, actor_id, actor_ip,
	action, resource_type, resource_id, changes`

// List lists audit entries, newest first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.ActorID != "" {
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", argNum))
		args = append(args, filter.ActorID)
		argNum++
	}

	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action LIKE $%d", argNum))
		args = append(args, filter.Action+"%")
		argNum++
	}

	if filter.ResourceType != "" {
		conditions = append(conditions, fmt.Sprintf("resource_type = $%d", argNum))
		args = append(args, filter.ResourceType)
		argNum++
	}

	if filter.ResourceID != "" {
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", argNum))
		args = append(args, filter.ResourceID)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_entries %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count audit entries")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM audit_entries
		%s
		ORDER BY sequence DESC
		LIMIT $%d OFFSET $%d`, entryColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var changesJSON []byte

		err := rows.Scan(
			&e.ID, &e.Sequence, &e.Timestamp, &e.Hash, &e.PrevHash,
			&e.ActorType, &e.ActorID, &e.ActorIP,
			&e.Action, &e.ResourceType, &e.ResourceID, &changesJSON,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan audit entry")
		}

		if len(changesJSON) > 0 {
			if err := json.Unmarshal(changesJSON, &e.Changes); err != nil {
				e.Changes = nil
			}
		}

		entries = append(entries, e)
	}

	return entries, total, nil
}

// VerifyResult summarizes a chain verification pass
type VerifyResult struct {
	Valid      bool     `json:"valid"`
	Checked    int      `json:"checked"`
	Violations []string `json:"violations,omitempty"`
}

// VerifyChain re-hashes the most recent entries and checks their
// linkage. Content tampering and broken links both surface as
// violations.
func (r *Repository) VerifyChain(ctx context.Context, limit int) (*VerifyResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM audit_entries
		ORDER BY sequence DESC
		LIMIT $1`, entryColumns)

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var changesJSON []byte

		err := rows.Scan(
			&e.ID, &e.Sequence, &e.Timestamp, &e.Hash, &e.PrevHash,
			&e.ActorType, &e.ActorID, &e.ActorIP,
			&e.Action, &e.ResourceType, &e.ResourceID, &changesJSON,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}

		if len(changesJSON) > 0 {
			json.Unmarshal(changesJSON, &e.Changes)
		}

		entries = append(entries, e)
	}

	result := &VerifyResult{Valid: true}

	// Entries are newest first, so the previous element in the slice
	// is the next entry in time.
	var nextPrevHash string
	for i, e := range entries {
		if !e.VerifyHash() {
			result.Valid = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("content tampered: entry %s (seq %d)", e.ID, e.Sequence))
		}

		if i > 0 && nextPrevHash != "" && e.Hash != nextPrevHash {
			result.Valid = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("chain broken: entry %s (seq %d) does not match next entry's prev_hash", e.ID, e.Sequence))
		}

		nextPrevHash = e.PrevHash
		result.Checked++
	}

	return result, nil
}
