package sqlsafe

import "testing"

func TestIsQuerySafe(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"baseline select with parameter", "SELECT name FROM customers WHERE id = ?", true},
		{"lowercase select", "select * from orders", true},
		{"bare select", "SELECT", true},
		{"single trailing semicolon", "SELECT 1;", true},
		{"trailing semicolon then whitespace", "  SELECT 1;  \n", true},
		{"keyword inside identifier", "SELECT * FROM inserted_log", true},
		{"keyword prefix of column", "SELECT updated_at FROM t", true},
		{"not a select", "DROP TABLE x", false},
		{"leading with", "WITH t AS (SELECT 1) SELECT * FROM t", false},
		{"stacked update lowercase", "select * from t; update y", false},
		{"standalone delete", "SELECT * FROM t WHERE DELETE = 1", false},
		{"standalone replace mixed case", "SELECT Replace FROM t", false},
		{"replace with spaces", "SELECT a, REPLACE (a) FROM t", false},
		{"two statements", "SELECT 1; SELECT 2", false},
		{"two semicolons at end", "SELECT 1;;", false},
		{"semicolon in middle", "SELECT ';' FROM t", false},
		{"line comment", "SELECT 1 -- comment", false},
		{"block comment", "SELECT /* hi */ 1", false},
		{"unterminated block comment", "SELECT /* 1", true},
		{"select into", "SELECT * INTO newtable FROM t", false},
		{"empty", "", false},
		{"whitespace only", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsQuerySafe(tt.query); got != tt.want {
				t.Fatalf("IsQuerySafe(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestIsQuerySafeDoesNotModifyInput(t *testing.T) {
	q := "  select name from customers  "
	IsQuerySafe(q)
	if q != "  select name from customers  " {
		t.Fatalf("query was modified: %q", q)
	}
}
