package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create principal and chat pointers",
		SQL: `
			CREATE TABLE principal (
				id          INTEGER PRIMARY KEY CHECK (id = 1),
				blob        TEXT NOT NULL,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE chat_pointers (
				id          INTEGER PRIMARY KEY CHECK (id = 1),
				user_id     TEXT NOT NULL,
				session_id  TEXT NOT NULL,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
