package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store defines the persistence interface for per-user device records.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
//
// All operations except UserExists and EnsureUser are scoped to a
// (user key, device id) pair; there is no way to reach another user's devices.
type Store interface {
	// UserExists reports whether the user key is known to the store.
	UserExists(ctx context.Context, userKey string) (bool, error)

	// EnsureUser creates the user row if it does not already exist.
	EnsureUser(ctx context.Context, userKey string) error

	// ListDevices retrieves all devices owned by the user.
	// An unknown user yields an empty slice, not an error.
	ListDevices(ctx context.Context, userKey string) ([]Record, error)

	// GetDevice retrieves a single device.
	// Returns ErrDeviceNotFound if absent under this user.
	GetDevice(ctx context.Context, userKey, id string) (*Record, error)

	// PatchState merges the given fields into the device's existing states
	// mapping. Fields not present in the patch keep their prior values.
	// Returns ErrDeviceNotFound if the device does not exist.
	PatchState(ctx context.Context, userKey, id string, state State) error

	// CreateDevice inserts a new device record for the user.
	// Returns ErrDeviceExists if the (user, id) pair already exists.
	CreateDevice(ctx context.Context, userKey string, record *Record) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
// The db parameter should be an open SQLite connection with the schema applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// deviceColumns is the column list shared by every device query.
const deviceColumns = `
	id, type, traits, name, default_names, nicknames,
	manufacturer, model, hw_version, sw_version,
	attributes, custom_data, states, state_updated_at,
	created_at, updated_at`

// UserExists reports whether the user key is known.
func (s *SQLiteStore) UserExists(ctx context.Context, userKey string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE key = ?", userKey,
	).Scan(&count)
	if err != nil {
		return false, storeErr("checking user exists", err)
	}
	return count > 0, nil
}

// EnsureUser creates the user row if it does not already exist.
func (s *SQLiteStore) EnsureUser(ctx context.Context, userKey string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (key) VALUES (?) ON CONFLICT(key) DO NOTHING",
		userKey,
	)
	if err != nil {
		return storeErr("ensuring user", err)
	}
	return nil
}

// ListDevices retrieves all devices owned by the user, ordered by id.
func (s *SQLiteStore) ListDevices(ctx context.Context, userKey string) ([]Record, error) {
	query := "SELECT" + deviceColumns + `
		FROM devices
		WHERE user_key = ?
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, userKey)
	if err != nil {
		return nil, storeErr("querying devices", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating devices", err)
	}

	return records, nil
}

// GetDevice retrieves a single device scoped to the user.
func (s *SQLiteStore) GetDevice(ctx context.Context, userKey, id string) (*Record, error) {
	query := "SELECT" + deviceColumns + `
		FROM devices
		WHERE user_key = ? AND id = ?`

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, userKey, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, storeErr("querying device by id", err)
	}
	return record, nil
}

// PatchState merges the given fields into the device's existing states mapping.
// json_patch(target, patch) applies patch keys to target, preserving existing
// keys not present in the patch.
func (s *SQLiteStore) PatchState(ctx context.Context, userKey, id string, state State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE devices
		SET states = json_patch(COALESCE(states, '{}'), ?),
		    state_updated_at = ?,
		    updated_at = ?
		WHERE user_key = ? AND id = ?`

	result, err := s.db.ExecContext(ctx, query, string(stateJSON), now, now, userKey, id)
	if err != nil {
		return storeErr("updating device state", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeErr("checking rows affected", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// CreateDevice inserts a new device record for the user.
func (s *SQLiteStore) CreateDevice(ctx context.Context, userKey string, record *Record) error {
	traitsJSON, err := json.Marshal(orEmptySlice(record.Traits))
	if err != nil {
		return fmt.Errorf("marshalling traits: %w", err)
	}
	defaultNamesJSON, err := json.Marshal(orEmptySlice(record.DefaultNames))
	if err != nil {
		return fmt.Errorf("marshalling default names: %w", err)
	}
	nicknamesJSON, err := json.Marshal(orEmptySlice(record.Nicknames))
	if err != nil {
		return fmt.Errorf("marshalling nicknames: %w", err)
	}
	attributesJSON, err := json.Marshal(orEmptyMap(record.Attributes))
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}
	customDataJSON, err := json.Marshal(orEmptyMap(record.CustomData))
	if err != nil {
		return fmt.Errorf("marshalling custom data: %w", err)
	}
	statesJSON, err := json.Marshal(orEmptyMap(record.States))
	if err != nil {
		return fmt.Errorf("marshalling states: %w", err)
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	query := `
		INSERT INTO devices (
			user_key, id, type, traits, name, default_names, nicknames,
			manufacturer, model, hw_version, sw_version,
			attributes, custom_data, states, state_updated_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		userKey,
		record.ID,
		record.Type,
		string(traitsJSON),
		record.Name,
		string(defaultNamesJSON),
		string(nicknamesJSON),
		nullableString(record.Manufacturer),
		nullableString(record.Model),
		nullableString(record.HWVersion),
		nullableString(record.SWVersion),
		string(attributesJSON),
		string(customDataJSON),
		string(statesJSON),
		nullableTime(record.StateUpdatedAt),
		record.CreatedAt.Format(time.RFC3339),
		record.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return storeErr("inserting device", err)
	}

	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a row or rows result into a Record.
func scanRecord(scanner rowScanner) (*Record, error) {
	var r Record
	var manufacturer, model, hwVersion, swVersion sql.NullString
	var stateUpdatedAt sql.NullString
	var traitsJSON, defaultNamesJSON, nicknamesJSON string
	var attributesJSON, customDataJSON, statesJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&r.ID,
		&r.Type,
		&traitsJSON,
		&r.Name,
		&defaultNamesJSON,
		&nicknamesJSON,
		&manufacturer,
		&model,
		&hwVersion,
		&swVersion,
		&attributesJSON,
		&customDataJSON,
		&statesJSON,
		&stateUpdatedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Manufacturer = manufacturer.String
	r.Model = model.String
	r.HWVersion = hwVersion.String
	r.SWVersion = swVersion.String

	if stateUpdatedAt.Valid {
		if t, err := time.Parse(time.RFC3339, stateUpdatedAt.String); err == nil {
			r.StateUpdatedAt = &t
		}
	}

	var parseErr error
	r.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	r.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	if err := json.Unmarshal([]byte(traitsJSON), &r.Traits); err != nil {
		return nil, fmt.Errorf("unmarshalling traits: %w", err)
	}
	if err := json.Unmarshal([]byte(defaultNamesJSON), &r.DefaultNames); err != nil {
		return nil, fmt.Errorf("unmarshalling default names: %w", err)
	}
	if err := json.Unmarshal([]byte(nicknamesJSON), &r.Nicknames); err != nil {
		return nil, fmt.Errorf("unmarshalling nicknames: %w", err)
	}
	if err := json.Unmarshal([]byte(attributesJSON), &r.Attributes); err != nil {
		return nil, fmt.Errorf("unmarshalling attributes: %w", err)
	}
	if err := json.Unmarshal([]byte(customDataJSON), &r.CustomData); err != nil {
		return nil, fmt.Errorf("unmarshalling custom data: %w", err)
	}
	if err := json.Unmarshal([]byte(statesJSON), &r.States); err != nil {
		return nil, fmt.Errorf("unmarshalling states: %w", err)
	}

	return &r, nil
}

// storeErr wraps a transport-level failure with ErrStoreUnavailable so
// callers can distinguish it from domain errors via errors.Is.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// nullableString returns a sql.NullString for optional strings.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// orEmptySlice substitutes an empty slice for nil so JSON columns never hold "null".
func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// orEmptyMap substitutes an empty map for nil so JSON columns never hold "null".
func orEmptyMap[M ~map[string]any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
