package repository

import "github.com/eslsoft/lexloop/pkg/filterexpr"

var listItemsSchema = filterexpr.ResourceSchema{
	Filter: map[string]filterexpr.FilterField{
		"language": {
			Kind: filterexpr.KindString,
			Ops:  map[filterexpr.Op]string{filterexpr.OpEQ: "Language"},
		},
		"level": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpEQ: "Level",
				filterexpr.OpIN: "Levels",
			},
		},
		"headword": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpSW: "Keyword",
				filterexpr.OpCT: "KeywordLike",
				filterexpr.OpEW: "KeywordSuffix",
			},
		},
		"created_at": {
			Kind: filterexpr.KindTimestamp,
			Ops:  map[filterexpr.Op]string{filterexpr.OpGTE: "CreatedAfter"},
		},
	},
	Order: filterexpr.OrderSchema{
		DefaultPrimary:     "created_at",
		DefaultPrimaryDesc: true,
		FallbackKey:        "id",
		FallbackDesc:       false,
		Fields: map[string]filterexpr.OrderField{
			"created_at": {Expr: "created_at"},
			"updated_at": {Expr: "updated_at"},
			"headword":   {Expr: "headword"},
			"level":      {Expr: "level"},
			"id":         {Expr: "id"},
		},
	},
}
