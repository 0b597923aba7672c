package backup

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	json "github.com/goccy/go-json"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/eslsoft/lexloop/internal/infrastructure/database"
)

const (
	defaultBatchSize = 512
	formatVersion    = 1
)

var errNoTablesSelected = errors.New("backup: no tables selected")

// ProgressReporter receives per-table progress callbacks during export.
type ProgressReporter interface {
	StartTable(table string, total int)
	Increment(table string, delta int)
	FinishTable(table string)
}

type noopProgress struct{}

func (noopProgress) StartTable(string, int) {}
func (noopProgress) Increment(string, int)  {}
func (noopProgress) FinishTable(string)     {}

// Service exports and imports the database as NDJSON: one meta line carrying
// the schema hash and row counts, then one line per row.
type Service struct {
	driver     string
	dsn        string
	batchSize  int
	tables     []*schema.Table
	tableIndex map[string]*schema.Table
	schemaHash string
}

type Option func(*Service)

func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// NewService constructs a backup service bound to the provided database
// driver and DSN.
func NewService(driver, dsn string, opts ...Option) (*Service, error) {
	driver = strings.TrimSpace(strings.ToLower(driver))
	if driver == "" {
		return nil, errors.New("backup: driver is required")
	}
	switch driver {
	case "postgres", "postgresql", "sqlite3", "sqlite":
	default:
		return nil, fmt.Errorf("backup: unsupported driver %q", driver)
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("backup: DSN is required")
	}

	tables, err := schema.CopyTables(database.Tables)
	if err != nil {
		return nil, fmt.Errorf("copy schema tables: %w", err)
	}
	tableIndex := make(map[string]*schema.Table, len(tables))
	for _, tbl := range tables {
		tableIndex[tbl.Name] = tbl
	}

	svc := &Service{
		driver:     driver,
		dsn:        dsn,
		batchSize:  defaultBatchSize,
		tables:     tables,
		tableIndex: tableIndex,
		schemaHash: computeSchemaHash(tables),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

type ExportOption func(*exportConfig)

type exportConfig struct {
	tables   []string
	reporter ProgressReporter
}

// WithTables restricts export to the provided table names.
func WithTables(tables []string) ExportOption {
	return func(cfg *exportConfig) {
		if len(tables) > 0 {
			cfg.tables = append([]string{}, tables...)
		}
	}
}

// WithProgressReporter registers a reporter for export progress.
func WithProgressReporter(reporter ProgressReporter) ExportOption {
	return func(cfg *exportConfig) {
		cfg.reporter = reporter
	}
}

type ImportOption func(*importConfig)

type importConfig struct {
	tables []string
}

// WithImportTables restricts import to the provided table names.
func WithImportTables(tables []string) ImportOption {
	return func(cfg *importConfig) {
		if len(tables) > 0 {
			cfg.tables = append([]string{}, tables...)
		}
	}
}

type record struct {
	Type       string         `json:"type"`
	Version    int            `json:"version,omitempty"`
	ExportedAt *time.Time     `json:"exported_at,omitempty"`
	SchemaHash string         `json:"schema_hash,omitempty"`
	Tables     []string       `json:"tables,omitempty"`
	RowCounts  map[string]int `json:"row_counts,omitempty"`
	Payload    any            `json:"payload,omitempty"`
}

type rawRecord struct {
	Type       string          `json:"type"`
	Version    int             `json:"version"`
	SchemaHash string          `json:"schema_hash"`
	Payload    json.RawMessage `json:"payload"`
}

type sequenceKey struct {
	Table  string
	Column string
}

// Export streams the selected tables as NDJSON to w.
func (s *Service) Export(ctx context.Context, w io.Writer, opts ...ExportOption) error {
	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	tables, err := s.selectTables(cfg.tables)
	if err != nil {
		return err
	}
	reporter := cfg.reporter
	if reporter == nil {
		reporter = noopProgress{}
	}

	db, err := s.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	counts := make(map[string]int, len(tables))
	for _, tbl := range tables {
		var count int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", tbl.Name)
		if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return fmt.Errorf("count table %s: %w", tbl.Name, err)
		}
		counts[tbl.Name] = count
	}

	writer := bufio.NewWriter(w)
	defer writer.Flush()

	now := time.Now().UTC()
	names := make([]string, len(tables))
	for i, tbl := range tables {
		names[i] = tbl.Name
	}
	meta := record{
		Type:       "meta",
		Version:    formatVersion,
		ExportedAt: &now,
		SchemaHash: s.schemaHash,
		Tables:     names,
		RowCounts:  counts,
	}
	if err := writeRecord(writer, meta); err != nil {
		return err
	}

	for _, tbl := range tables {
		reporter.StartTable(tbl.Name, counts[tbl.Name])
		if err := s.exportTable(ctx, db, tbl, reporter, writer); err != nil {
			return err
		}
		reporter.FinishTable(tbl.Name)
	}
	return writer.Flush()
}

// Import replays an NDJSON backup into the database inside one transaction.
// Rows upsert on the table's primary key, so importing over existing data
// replaces matching rows instead of duplicating them.
func (s *Service) Import(ctx context.Context, r io.Reader, opts ...ImportOption) error {
	cfg := importConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	tables, err := s.selectTables(cfg.tables)
	if err != nil {
		return err
	}
	tableFilter := make(map[string]*schema.Table, len(tables))
	for _, tbl := range tables {
		tableFilter[tbl.Name] = tbl
	}

	db, err := s.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	br := bufio.NewReader(r)
	var (
		metaSeen  bool
		meta      rawRecord
		sequences = make(map[sequenceKey]int64)
	)
	for {
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("read backup: %w", readErr)
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var rec rawRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			switch rec.Type {
			case "meta":
				metaSeen = true
				meta = rec
				if meta.Version != formatVersion {
					return fmt.Errorf("backup: unsupported format version %d", meta.Version)
				}
			default:
				tbl, ok := tableFilter[rec.Type]
				if !ok {
					break
				}
				if len(rec.Payload) == 0 {
					return fmt.Errorf("backup: missing payload for table %s", rec.Type)
				}
				if err := s.importRow(ctx, tx, tbl, rec.Payload, sequences); err != nil {
					return err
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	if !metaSeen {
		return errors.New("backup: missing meta record")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	committed = true

	return s.syncSequences(ctx, db, sequences)
}

func (s *Service) exportTable(ctx context.Context, db *sql.DB, table *schema.Table, reporter ProgressReporter, w io.Writer) error {
	columns := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		columns[i] = col.Name
	}
	orderBy := make([]string, len(table.PrimaryKey))
	for i, col := range table.PrimaryKey {
		orderBy[i] = col.Name
	}
	batch := s.batchSize

	for offset := 0; ; offset += batch {
		query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %d OFFSET %d",
			strings.Join(columns, ", "), table.Name, strings.Join(orderBy, ", "), batch, offset)
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("query %s: %w", table.Name, err)
		}

		count, err := s.exportRows(table, columns, rows, reporter, w)
		rows.Close()
		if err != nil {
			return err
		}
		if count < batch {
			return nil
		}
	}
}

func (s *Service) exportRows(table *schema.Table, columns []string, rows *sql.Rows, reporter ProgressReporter, w io.Writer) (int, error) {
	count := 0
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range dest {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return count, fmt.Errorf("scan %s: %w", table.Name, err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, name := range columns {
			converted, err := exportValue(table.Columns[i], values[i])
			if err != nil {
				return count, fmt.Errorf("convert %s.%s: %w", table.Name, name, err)
			}
			rowMap[name] = converted
		}
		if err := writeRecord(w, record{Type: table.Name, Payload: rowMap}); err != nil {
			return count, err
		}
		reporter.Increment(table.Name, 1)
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("iterate %s: %w", table.Name, err)
	}
	return count, nil
}

func (s *Service) importRow(ctx context.Context, tx *sql.Tx, table *schema.Table, payload json.RawMessage, sequences map[sequenceKey]int64) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode payload for %s: %w", table.Name, err)
	}

	cols := make([]string, 0, len(table.Columns))
	args := make([]any, 0, len(table.Columns))
	for _, col := range table.Columns {
		val, ok := raw[col.Name]
		if !ok {
			continue
		}
		converted, err := importValue(col, val)
		if err != nil {
			return fmt.Errorf("convert %s.%s: %w", table.Name, col.Name, err)
		}
		if converted == nil && !col.Nullable {
			return fmt.Errorf("backup: missing required value for %s.%s", table.Name, col.Name)
		}
		cols = append(cols, col.Name)
		args = append(args, converted)

		if col.Increment {
			if id, ok := converted.(int64); ok {
				key := sequenceKey{Table: table.Name, Column: col.Name}
				if id > sequences[key] {
					sequences[key] = id
				}
			}
		}
	}
	if len(cols) == 0 {
		return nil
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)%s",
		table.Name,
		strings.Join(cols, ", "),
		strings.Join(s.placeholders(len(cols)), ", "),
		upsertClause(table, cols),
	)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table.Name, err)
	}
	return nil
}

func (s *Service) selectTables(requested []string) ([]*schema.Table, error) {
	selected := s.tables
	if len(requested) > 0 {
		set := make(map[string]struct{}, len(requested))
		for _, name := range requested {
			n := strings.TrimSpace(strings.ToLower(name))
			if n == "" {
				continue
			}
			if _, ok := s.tableIndex[n]; !ok {
				return nil, fmt.Errorf("backup: unsupported table %q", name)
			}
			set[n] = struct{}{}
		}
		if len(set) == 0 {
			return nil, errNoTablesSelected
		}
		selected = make([]*schema.Table, 0, len(set))
		for _, tbl := range s.tables {
			if _, ok := set[tbl.Name]; ok {
				selected = append(selected, tbl)
			}
		}
	}

	// users before learning_records so foreign keys resolve on import.
	ordered := make([]*schema.Table, len(selected))
	copy(ordered, selected)
	sort.Slice(ordered, func(i, j int) bool {
		if fkRank(ordered[i]) != fkRank(ordered[j]) {
			return fkRank(ordered[i]) < fkRank(ordered[j])
		}
		return ordered[i].Name < ordered[j].Name
	})
	return ordered, nil
}

func fkRank(table *schema.Table) int {
	return len(table.ForeignKeys)
}

func (s *Service) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if s.driver == "sqlite3" || s.driver == "sqlite" {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}
	return db, nil
}

func (s *Service) placeholders(count int) []string {
	holders := make([]string, count)
	for i := range holders {
		if s.driver == "postgres" || s.driver == "postgresql" {
			holders[i] = fmt.Sprintf("$%d", i+1)
		} else {
			holders[i] = "?"
		}
	}
	return holders
}

// upsertClause conflicts on the primary key. Postgres and sqlite share the
// ON CONFLICT syntax apart from the excluded keyword's case.
func upsertClause(table *schema.Table, insertCols []string) string {
	conflictCols := make([]string, len(table.PrimaryKey))
	for i, col := range table.PrimaryKey {
		conflictCols[i] = col.Name
	}
	conflictSet := make(map[string]struct{}, len(conflictCols))
	for _, col := range conflictCols {
		conflictSet[col] = struct{}{}
	}

	assignments := make([]string, 0, len(insertCols))
	for _, col := range insertCols {
		if _, ok := conflictSet[col]; ok {
			continue
		}
		assignments = append(assignments, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	if len(assignments) == 0 {
		return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(conflictCols, ", "))
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(conflictCols, ", "), strings.Join(assignments, ", "))
}

// exportValue converts a database value to its JSON representation. Times
// travel as RFC 3339, JSON columns stay raw.
func exportValue(col *schema.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []byte:
		if col.Type == field.TypeJSON {
			cp := make(json.RawMessage, len(v))
			copy(cp, v)
			return cp, nil
		}
		return string(v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	}

	switch col.Type {
	case field.TypeInt32, field.TypeInt64:
		return toInt64(value)
	case field.TypeFloat64:
		return toFloat64(value)
	default:
		return value, nil
	}
}

// importValue converts a JSON value back to what the driver expects.
func importValue(col *schema.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch col.Type {
	case field.TypeInt32, field.TypeInt64:
		return toInt64(value)
	case field.TypeFloat64:
		return toFloat64(value)
	case field.TypeTime:
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("unsupported time value %T", value)
		}
		if str == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	case field.TypeJSON:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil
	default:
		return value, nil
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported int type %T", value)
	}
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported float type %T", value)
	}
}

// syncSequences advances postgres serial sequences past the highest imported
// id so subsequent inserts do not collide. Sqlite keeps its rowid counter in
// sync on its own.
func (s *Service) syncSequences(ctx context.Context, db *sql.DB, sequences map[sequenceKey]int64) error {
	if s.driver != "postgres" && s.driver != "postgresql" {
		return nil
	}
	for key, maxVal := range sequences {
		if maxVal <= 0 {
			continue
		}
		query := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%s', '%s'), GREATEST(%d, (SELECT COALESCE(MAX(%s), 0) FROM %s)))",
			key.Table, key.Column, maxVal, key.Column, key.Table)
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("sync sequence for %s.%s: %w", key.Table, key.Column, err)
		}
	}
	return nil
}

func computeSchemaHash(tables []*schema.Table) string {
	builder := &strings.Builder{}
	sorted := make([]*schema.Table, len(tables))
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, tbl := range sorted {
		builder.WriteString(tbl.Name)
		builder.WriteString("|cols:")
		for _, col := range tbl.Columns {
			fmt.Fprintf(builder, "%s:%d:%t:%t;", col.Name, col.Type, col.Nullable, col.Increment)
		}
		builder.WriteString("|pk:")
		for _, pk := range tbl.PrimaryKey {
			builder.WriteString(pk.Name)
			builder.WriteByte(',')
		}
		builder.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(builder.String()))
	return fmt.Sprintf("%x", sum)
}

func writeRecord(w io.Writer, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}
