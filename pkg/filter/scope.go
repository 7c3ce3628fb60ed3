package filter

import (
	"strings"

	"gorm.io/gorm"
)

// Predicate is a gorm scope narrowing a query, composable with db.Scopes.
type Predicate func(db *gorm.DB) *gorm.DB

// Relation describes a to-many relationship reached from the queried table,
// as the body of a correlated subquery.
type Relation struct {
	// From is the FROM clause of the subquery, joins included.
	From string
	// Where correlates subquery rows with the outer row.
	Where string
}

// Field is a filterable column. When Relation is set, Column names a column of
// the related rows.
type Field struct {
	Name     string
	Column   string
	Relation *Relation
}

// Scope compiles the expression into a predicate over field.
func (e *Expr) Scope(field Field) Predicate {
	return func(db *gorm.DB) *gorm.DB {
		if e.Empty() {
			return db
		}
		if field.Relation != nil {
			return e.relatedScope(db, field)
		}
		if e.hasIncludes() {
			clause, args := matchClause(field.Column, e.Includes, e.IncludeGlobs)
			db = db.Where(clause, args...)
		}
		if e.hasExcludes() {
			clause, args := matchClause(field.Column, e.Excludes, e.ExcludeGlobs)
			// a NULL column cannot be excluded by name
			db = db.Where("("+field.Column+" IS NULL OR NOT "+clause+")", args...)
		}
		return db
	}
}

// relatedScope uses EXISTS for inclusion and NOT EXISTS for exclusion, so a
// row without related rows never matches an include and always passes an
// exclude.
func (e *Expr) relatedScope(db *gorm.DB, field Field) *gorm.DB {
	subquery := "SELECT 1 FROM " + field.Relation.From + " WHERE " + field.Relation.Where + " AND "
	if e.hasIncludes() {
		clause, args := matchClause(field.Column, e.Includes, e.IncludeGlobs)
		db = db.Where("EXISTS ("+subquery+clause+")", args...)
	}
	if e.hasExcludes() {
		clause, args := matchClause(field.Column, e.Excludes, e.ExcludeGlobs)
		db = db.Where("NOT EXISTS ("+subquery+clause+")", args...)
	}
	return db
}

func matchClause(column string, values, globs []string) (string, []interface{}) {
	var parts []string
	var args []interface{}
	if len(values) > 0 {
		parts = append(parts, column+" IN ?")
		args = append(args, values)
	}
	for _, g := range globs {
		parts = append(parts, column+" GLOB ?")
		args = append(args, sqliteGlob(g))
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// Scopes adapts predicates for db.Scopes.
func Scopes(preds ...Predicate) []func(*gorm.DB) *gorm.DB {
	scopes := make([]func(*gorm.DB) *gorm.DB, 0, len(preds))
	for _, p := range preds {
		scopes = append(scopes, p)
	}
	return scopes
}
