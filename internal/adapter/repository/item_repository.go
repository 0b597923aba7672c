package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/infrastructure/database"
	"github.com/eslsoft/lexloop/internal/repository"
	"github.com/eslsoft/lexloop/pkg/filterexpr"
)

type itemRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewItemRepository returns the SQL-backed item repository.
func NewItemRepository(db *database.DB) repository.ItemRepository {
	return &itemRepository{db: db, now: time.Now}
}

func itemTable(kind entity.ItemKind) (string, error) {
	switch kind {
	case entity.ItemKindVocabulary:
		return "vocab_items", nil
	case entity.ItemKindGrammar:
		return "grammar_items", nil
	case entity.ItemKindReading:
		return "reading_items", nil
	default:
		return "", fmt.Errorf("%w: unknown item kind %q", entity.ErrInvalidInput, kind)
	}
}

// itemPayloadColumns lists the writable columns of each item table, in bind
// order. Shared columns come after the kind-specific payload.
func itemPayloadColumns(kind entity.ItemKind) []string {
	switch kind {
	case entity.ItemKindVocabulary:
		return []string{"headword", "reading", "meaning", "example", "language", "level", "audio_ref", "created_at", "updated_at"}
	case entity.ItemKindGrammar:
		return []string{"headword", "meaning", "examples", "language", "level", "audio_ref", "created_at", "updated_at"}
	default:
		return []string{"headword", "body", "meaning", "language", "level", "audio_ref", "created_at", "updated_at"}
	}
}

func itemBindValues(item *entity.Item, now time.Time) ([]any, error) {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	shared := []any{item.Language.Code(), string(item.Level), item.AudioRef, createdAt, now}

	switch item.Kind {
	case entity.ItemKindVocabulary:
		return append([]any{item.Headword, item.Reading, item.Meaning, item.Example}, shared...), nil
	case entity.ItemKindGrammar:
		examples, err := encodeExamples(item.Examples)
		if err != nil {
			return nil, err
		}
		return append([]any{item.Headword, item.Meaning, examples}, shared...), nil
	case entity.ItemKindReading:
		return append([]any{item.Headword, item.Body, item.Meaning}, shared...), nil
	default:
		return nil, fmt.Errorf("%w: unknown item kind %q", entity.ErrInvalidInput, item.Kind)
	}
}

func itemSelectColumns(kind entity.ItemKind) string {
	return "id, " + strings.Join(itemPayloadColumns(kind), ", ")
}

func scanItem(kind entity.ItemKind, row scanner) (*entity.Item, error) {
	item := &entity.Item{Kind: kind}
	var language, level string
	var updatedAt time.Time
	var err error

	switch kind {
	case entity.ItemKindVocabulary:
		err = row.Scan(&item.ID, &item.Headword, &item.Reading, &item.Meaning, &item.Example,
			&language, &level, &item.AudioRef, &item.CreatedAt, &updatedAt)
	case entity.ItemKindGrammar:
		var examples []byte
		err = row.Scan(&item.ID, &item.Headword, &item.Meaning, &examples,
			&language, &level, &item.AudioRef, &item.CreatedAt, &updatedAt)
		if err == nil {
			item.Examples, err = decodeExamples(examples)
		}
	default:
		err = row.Scan(&item.ID, &item.Headword, &item.Body, &item.Meaning,
			&language, &level, &item.AudioRef, &item.CreatedAt, &updatedAt)
	}
	if err != nil {
		return nil, err
	}

	item.Language = entity.ParseLanguage(language)
	item.Level = entity.Level(level)
	return item, nil
}

func (r *itemRepository) Create(ctx context.Context, item *entity.Item) (*entity.Item, error) {
	table, err := itemTable(item.Kind)
	if err != nil {
		return nil, err
	}
	defer r.db.Stats.Track("items.create")()

	cols := itemPayloadColumns(item.Kind)
	args, err := itemBindValues(item, r.now())
	if err != nil {
		return nil, err
	}

	created := *item
	err = withTx(ctx, r.db.DB, func(tx *sql.Tx) error {
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks(len(cols)))
		if r.db.Driver == "postgres" {
			query += " RETURNING id"
			return tx.QueryRowContext(ctx, rebind(r.db.Driver, query), args...).Scan(&created.ID)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		created.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, translateError(err, entity.ErrDuplicateItem)
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = r.now()
	}
	return &created, nil
}

func (r *itemRepository) Update(ctx context.Context, item *entity.Item) (*entity.Item, error) {
	table, err := itemTable(item.Kind)
	if err != nil {
		return nil, err
	}
	defer r.db.Stats.Track("items.update")()

	cols := itemPayloadColumns(item.Kind)
	args, err := itemBindValues(item, r.now())
	if err != nil {
		return nil, err
	}

	// created_at is immutable; drop it from the SET list together with its arg.
	sets := make([]string, 0, len(cols)-1)
	setArgs := make([]any, 0, len(args)-1)
	for i, col := range cols {
		if col == "created_at" {
			continue
		}
		sets = append(sets, col+" = ?")
		setArgs = append(setArgs, args[i])
	}
	setArgs = append(setArgs, item.ID)

	err = withTx(ctx, r.db.DB, func(tx *sql.Tx) error {
		query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
		res, err := tx.ExecContext(ctx, rebind(r.db.Driver, query), setArgs...)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return entity.ErrItemNotFound
		}
		return nil
	})
	if err != nil {
		return nil, translateError(err, entity.ErrDuplicateItem)
	}
	return r.GetByID(ctx, item.Kind, item.ID)
}

func (r *itemRepository) GetByID(ctx context.Context, kind entity.ItemKind, id int64) (*entity.Item, error) {
	table, err := itemTable(kind)
	if err != nil {
		return nil, err
	}
	defer r.db.Stats.Track("items.get")()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", itemSelectColumns(kind), table)
	item, err := scanItem(kind, r.db.QueryRowContext(ctx, rebind(r.db.Driver, query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// listItemsParams is the binding target for the list filter expression.
type listItemsParams struct {
	Language      *string
	Level         *string
	Levels        []string
	Keyword       *string
	KeywordLike   *string
	KeywordSuffix *string
	CreatedAfter  *time.Time

	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

func (p *listItemsParams) conditions() ([]string, []any) {
	var conds []string
	var args []any
	if p.Language != nil {
		conds = append(conds, "language = ?")
		args = append(args, *p.Language)
	}
	if p.Level != nil {
		conds = append(conds, "level = ?")
		args = append(args, *p.Level)
	}
	if levels := normalizeLowerStrings(p.Levels); len(levels) > 0 {
		conds = append(conds, fmt.Sprintf("level IN (%s)", marks(len(levels))))
		for _, level := range levels {
			args = append(args, level)
		}
	}
	if p.Keyword != nil {
		conds = append(conds, `headword LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(*p.Keyword)+"%")
	}
	if p.KeywordLike != nil {
		conds = append(conds, `headword LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(*p.KeywordLike)+"%")
	}
	if p.KeywordSuffix != nil {
		conds = append(conds, `headword LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(*p.KeywordSuffix))
	}
	if p.CreatedAfter != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *p.CreatedAfter)
	}
	return conds, args
}

func (r *itemRepository) List(ctx context.Context, query *repository.ListItemQuery) ([]*entity.Item, int64, error) {
	table, err := itemTable(query.Kind)
	if err != nil {
		return nil, 0, err
	}

	var params listItemsParams
	if err := filterexpr.Bind(query, &params, listItemsSchema); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}
	orderBy, err := filterexpr.OrderClause(listItemsSchema.Order,
		params.PrimaryKey, params.PrimaryDesc, params.SecondaryKey, params.SecondaryDesc)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}

	conds, args := params.conditions()
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := query.Offset()
	if offset < 0 {
		offset = 0
	}

	defer r.db.Stats.Track("items.list")()

	listQuery := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT %d OFFSET %d",
		itemSelectColumns(query.Kind), table, where, orderBy, pageSize, offset)
	rows, err := r.db.QueryContext(ctx, rebind(r.db.Driver, listQuery), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*entity.Item
	for rows.Next() {
		item, err := scanItem(query.Kind, rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate items: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, where)
	var total int64
	if err := r.db.QueryRowContext(ctx, rebind(r.db.Driver, countQuery), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}
	return items, total, nil
}

func (r *itemRepository) BatchUpsert(ctx context.Context, items []*entity.Item) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	defer r.db.Stats.Track("items.batch_upsert")()

	now := r.now()
	var written int64
	err := withTx(ctx, r.db.DB, func(tx *sql.Tx) error {
		for _, item := range items {
			table, err := itemTable(item.Kind)
			if err != nil {
				return err
			}
			cols := itemPayloadColumns(item.Kind)
			args, err := itemBindValues(item, now)
			if err != nil {
				return err
			}

			// Replace payload fields on (headword, language, level)
			// collisions; created_at of the original row survives.
			updatable := make([]string, 0, len(cols))
			for _, col := range cols {
				switch col {
				case "headword", "language", "level", "created_at":
					continue
				}
				updatable = append(updatable, fmt.Sprintf("%s = excluded.%s", col, col))
			}
			query := fmt.Sprintf(
				"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (headword, language, level) DO UPDATE SET %s",
				table, strings.Join(cols, ", "), marks(len(cols)), strings.Join(updatable, ", "))

			res, err := tx.ExecContext(ctx, rebind(r.db.Driver, query), args...)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			written += affected
		}
		return nil
	})
	if err != nil {
		return 0, translateError(err, entity.ErrDuplicateItem)
	}
	return written, nil
}

func (r *itemRepository) SampleUnmastered(ctx context.Context, query *repository.SampleQuery) ([]*entity.Item, error) {
	table, err := itemTable(query.Kind)
	if err != nil {
		return nil, err
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}
	defer r.db.Stats.Track("items.sample_unmastered")()

	sampleQuery := fmt.Sprintf(`SELECT %s FROM %s i
LEFT JOIN learning_records r ON r.item_id = i.id AND r.kind = ? AND r.user_id = ?
WHERE i.language = ? AND i.level = ? AND (r.id IS NULL OR r.mastery_level < 3)
ORDER BY RANDOM()
LIMIT %d`, prefixColumns("i", itemSelectColumns(query.Kind)), table, limit)

	rows, err := r.db.QueryContext(ctx, rebind(r.db.Driver, sampleQuery),
		query.Kind.String(), query.UserID, query.Language.Code(), string(query.Level))
	if err != nil {
		return nil, fmt.Errorf("sample items: %w", err)
	}
	defer rows.Close()

	var items []*entity.Item
	for rows.Next() {
		item, err := scanItem(query.Kind, rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) KnownHeadwords(ctx context.Context, kind entity.ItemKind, language entity.Language) (map[string]struct{}, error) {
	table, err := itemTable(kind)
	if err != nil {
		return nil, err
	}
	defer r.db.Stats.Track("items.known_headwords")()

	query := fmt.Sprintf("SELECT headword FROM %s WHERE language = ?", table)
	rows, err := r.db.QueryContext(ctx, rebind(r.db.Driver, query), language.Code())
	if err != nil {
		return nil, fmt.Errorf("known headwords: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var headword string
		if err := rows.Scan(&headword); err != nil {
			return nil, fmt.Errorf("scan headword: %w", err)
		}
		known[entity.ItemDedupKey(headword, language)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate headwords: %w", err)
	}
	return known, nil
}

func (r *itemRepository) AttachAudio(ctx context.Context, kind entity.ItemKind, id int64, audioRef string) error {
	table, err := itemTable(kind)
	if err != nil {
		return err
	}
	defer r.db.Stats.Track("items.attach_audio")()

	return withTx(ctx, r.db.DB, func(tx *sql.Tx) error {
		query := fmt.Sprintf("UPDATE %s SET audio_ref = ?, updated_at = ? WHERE id = ?", table)
		res, err := tx.ExecContext(ctx, rebind(r.db.Driver, query), audioRef, r.now(), id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return entity.ErrItemNotFound
		}
		return nil
	})
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}
