package db

// SchemaSQL is the complete schema for fresh installs. It is the
// concatenation of every migration's statements, in order.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(). If repository code references a column
// that doesn't exist here, tests fail immediately with "no such column".
//
// When adding new columns or tables:
//  1. Add a new schema fragment below and a migration for it in migrations.go
//  2. Append the fragment to SchemaSQL
//  3. Run `make test` to verify alignment
//
// Timestamps are stored as TEXT in the fixed-width UTC layout the sqlite
// adapters write, so lexical order is chronological order.
const SchemaSQL = schemaEntities + schemaContext + schemaRuntime

// schemaEntities holds projects, work items and tasks.
const schemaEntities = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	root_path TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS work_items (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT NOT NULL,
	type TEXT NOT NULL CHECK(type IN ('feature', 'enhancement', 'bugfix', 'refactoring', 'infrastructure', 'research', 'planning')),
	status TEXT NOT NULL CHECK(status IN ('draft', 'ready', 'active', 'blocked', 'review', 'done', 'cancelled', 'archived')) DEFAULT 'draft',
	phase TEXT NOT NULL CHECK(phase IN ('D1', 'P1', 'I1', 'R1', 'O1', 'E1')) DEFAULT 'D1',
	business_context TEXT NOT NULL DEFAULT '',
	acceptance_criteria TEXT NOT NULL DEFAULT '[]',
	risks TEXT NOT NULL DEFAULT '[]',
	tests_passing INTEGER NOT NULL DEFAULT 0,
	retrospective TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_work_items_project ON work_items(project_id);
CREATE INDEX IF NOT EXISTS idx_work_items_status ON work_items(status);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	work_item_id TEXT NOT NULL,
	title TEXT NOT NULL,
	type TEXT NOT NULL CHECK(type IN ('design', 'implementation', 'testing', 'documentation', 'analysis', 'bugfix', 'refactoring', 'deployment', 'research', 'review')),
	status TEXT NOT NULL CHECK(status IN ('draft', 'ready', 'active', 'blocked', 'review', 'done', 'cancelled', 'archived')) DEFAULT 'draft',
	effort_hours REAL NOT NULL DEFAULT 0 CHECK(effort_hours >= 0),
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (work_item_id) REFERENCES work_items(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tasks_work_item ON tasks(work_item_id);
`

// schemaContext holds the inputs of context assembly.
const schemaContext = `
CREATE TABLE IF NOT EXISTS six_w_contexts (
	entity_kind TEXT NOT NULL CHECK(entity_kind IN ('project', 'work_item', 'task')),
	entity_id TEXT NOT NULL,
	context TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (entity_kind, entity_id)
);

CREATE TABLE IF NOT EXISTS code_refs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_kind TEXT NOT NULL CHECK(entity_kind IN ('project', 'work_item', 'task')),
	entity_id TEXT NOT NULL,
	path TEXT NOT NULL,
	note TEXT,
	created_at TEXT NOT NULL,
	UNIQUE (entity_kind, entity_id, path)
);

CREATE TABLE IF NOT EXISTS plugin_facts (
	project_id TEXT NOT NULL,
	technology TEXT NOT NULL,
	confidence REAL NOT NULL CHECK(confidence >= 0 AND confidence <= 1),
	description TEXT,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (project_id, technology),
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS agent_sessions (
	id TEXT PRIMARY KEY,
	work_item_id TEXT NOT NULL,
	task_id TEXT,
	role TEXT,
	summary TEXT NOT NULL,
	ended_at TEXT NOT NULL,
	FOREIGN KEY (work_item_id) REFERENCES work_items(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_agent_sessions_recent ON agent_sessions(work_item_id, ended_at);
`

// schemaRuntime holds the durable cache tier and the workflow event log.
const schemaRuntime = `
CREATE TABLE IF NOT EXISTS context_cache (
	key TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_context_cache_expires ON context_cache(expires_at);

CREATE TABLE IF NOT EXISTS workflow_events (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	entity_kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	from_status TEXT,
	to_status TEXT,
	phase TEXT,
	actor TEXT,
	detail TEXT,
	occurred_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workflow_events_entity ON workflow_events(entity_kind, entity_id);
CREATE INDEX IF NOT EXISTS idx_workflow_events_occurred ON workflow_events(occurred_at);
`

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
