package database

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// VocabItemsColumns holds the columns for the "vocab_items" table.
	VocabItemsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "headword", Type: field.TypeString},
		{Name: "reading", Type: field.TypeString, Default: ""},
		{Name: "meaning", Type: field.TypeString, Default: ""},
		{Name: "example", Type: field.TypeString, Default: ""},
		{Name: "language", Type: field.TypeString, Default: "en"},
		{Name: "level", Type: field.TypeString},
		{Name: "audio_ref", Type: field.TypeString, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// VocabItemsTable holds the schema information for the "vocab_items" table.
	VocabItemsTable = &schema.Table{
		Name:       "vocab_items",
		Columns:    VocabItemsColumns,
		PrimaryKey: []*schema.Column{VocabItemsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "vocabitem_headword_language_level",
				Unique:  true,
				Columns: []*schema.Column{VocabItemsColumns[1], VocabItemsColumns[5], VocabItemsColumns[6]},
			},
			{
				Name:    "vocabitem_language_level",
				Unique:  false,
				Columns: []*schema.Column{VocabItemsColumns[5], VocabItemsColumns[6]},
			},
			{
				Name:    "vocabitem_headword",
				Unique:  false,
				Columns: []*schema.Column{VocabItemsColumns[1]},
			},
			{
				Name:    "vocabitem_created_at",
				Unique:  false,
				Columns: []*schema.Column{VocabItemsColumns[8]},
			},
		},
	}
	// GrammarItemsColumns holds the columns for the "grammar_items" table.
	GrammarItemsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "headword", Type: field.TypeString},
		{Name: "meaning", Type: field.TypeString, Default: ""},
		{Name: "examples", Type: field.TypeJSON},
		{Name: "language", Type: field.TypeString, Default: "en"},
		{Name: "level", Type: field.TypeString},
		{Name: "audio_ref", Type: field.TypeString, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// GrammarItemsTable holds the schema information for the "grammar_items" table.
	GrammarItemsTable = &schema.Table{
		Name:       "grammar_items",
		Columns:    GrammarItemsColumns,
		PrimaryKey: []*schema.Column{GrammarItemsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "grammaritem_headword_language_level",
				Unique:  true,
				Columns: []*schema.Column{GrammarItemsColumns[1], GrammarItemsColumns[4], GrammarItemsColumns[5]},
			},
			{
				Name:    "grammaritem_language_level",
				Unique:  false,
				Columns: []*schema.Column{GrammarItemsColumns[4], GrammarItemsColumns[5]},
			},
			{
				Name:    "grammaritem_headword",
				Unique:  false,
				Columns: []*schema.Column{GrammarItemsColumns[1]},
			},
			{
				Name:    "grammaritem_created_at",
				Unique:  false,
				Columns: []*schema.Column{GrammarItemsColumns[7]},
			},
		},
	}
	// ReadingItemsColumns holds the columns for the "reading_items" table.
	ReadingItemsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "headword", Type: field.TypeString},
		{Name: "body", Type: field.TypeString, Size: 2147483647},
		{Name: "meaning", Type: field.TypeString, Default: ""},
		{Name: "language", Type: field.TypeString, Default: "en"},
		{Name: "level", Type: field.TypeString},
		{Name: "audio_ref", Type: field.TypeString, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// ReadingItemsTable holds the schema information for the "reading_items" table.
	ReadingItemsTable = &schema.Table{
		Name:       "reading_items",
		Columns:    ReadingItemsColumns,
		PrimaryKey: []*schema.Column{ReadingItemsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "readingitem_headword_language_level",
				Unique:  true,
				Columns: []*schema.Column{ReadingItemsColumns[1], ReadingItemsColumns[4], ReadingItemsColumns[5]},
			},
			{
				Name:    "readingitem_language_level",
				Unique:  false,
				Columns: []*schema.Column{ReadingItemsColumns[4], ReadingItemsColumns[5]},
			},
			{
				Name:    "readingitem_headword",
				Unique:  false,
				Columns: []*schema.Column{ReadingItemsColumns[1]},
			},
			{
				Name:    "readingitem_created_at",
				Unique:  false,
				Columns: []*schema.Column{ReadingItemsColumns[7]},
			},
		},
	}
	// UsersColumns holds the columns for the "users" table.
	UsersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "username", Type: field.TypeString, Unique: true},
		{Name: "credential_hash", Type: field.TypeString},
		{Name: "english_level", Type: field.TypeString, Default: "cet-4"},
		{Name: "japanese_level", Type: field.TypeString, Default: "n5"},
		{Name: "daily_minutes", Type: field.TypeInt32, Default: 30},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// UsersTable holds the schema information for the "users" table.
	UsersTable = &schema.Table{
		Name:       "users",
		Columns:    UsersColumns,
		PrimaryKey: []*schema.Column{UsersColumns[0]},
	}
	// LearningRecordsColumns holds the columns for the "learning_records" table.
	LearningRecordsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "item_id", Type: field.TypeInt64},
		{Name: "kind", Type: field.TypeString},
		{Name: "learn_count", Type: field.TypeInt32, Default: 0},
		{Name: "correct_count", Type: field.TypeInt32, Default: 0},
		{Name: "consecutive_correct", Type: field.TypeInt32, Default: 0},
		{Name: "ease_factor", Type: field.TypeFloat64, Default: 2.5},
		{Name: "memory_strength", Type: field.TypeFloat64, Default: 0},
		{Name: "mastery_level", Type: field.TypeInt32, Default: 0},
		{Name: "interval_days", Type: field.TypeInt32, Default: 0},
		{Name: "last_review_at", Type: field.TypeTime, Nullable: true},
		{Name: "next_review_at", Type: field.TypeTime},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "user_id", Type: field.TypeInt64},
	}
	// LearningRecordsTable holds the schema information for the "learning_records" table.
	LearningRecordsTable = &schema.Table{
		Name:       "learning_records",
		Columns:    LearningRecordsColumns,
		PrimaryKey: []*schema.Column{LearningRecordsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "learning_records_users_records",
				Columns:    []*schema.Column{LearningRecordsColumns[14]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "learningrecord_user_id_item_id_kind",
				Unique:  true,
				Columns: []*schema.Column{LearningRecordsColumns[14], LearningRecordsColumns[1], LearningRecordsColumns[2]},
			},
			{
				Name:    "learningrecord_user_id_next_review_at",
				Unique:  false,
				Columns: []*schema.Column{LearningRecordsColumns[14], LearningRecordsColumns[11]},
			},
			{
				Name:    "learningrecord_user_id_kind",
				Unique:  false,
				Columns: []*schema.Column{LearningRecordsColumns[14], LearningRecordsColumns[2]},
			},
			{
				Name:    "learningrecord_user_id_mastery_level",
				Unique:  false,
				Columns: []*schema.Column{LearningRecordsColumns[14], LearningRecordsColumns[8]},
			},
			{
				Name:    "learningrecord_user_id_kind_mastery_level",
				Unique:  false,
				Columns: []*schema.Column{LearningRecordsColumns[14], LearningRecordsColumns[2], LearningRecordsColumns[8]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		GrammarItemsTable,
		LearningRecordsTable,
		ReadingItemsTable,
		UsersTable,
		VocabItemsTable,
	}
)

func init() {
	LearningRecordsTable.ForeignKeys[0].RefTable = UsersTable
}
