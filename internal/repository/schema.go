package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaObservations = `
CREATE TABLE IF NOT EXISTS observations (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    merchant TEXT,
    category TEXT,
    timestamp TIMESTAMP NOT NULL,
    latitude REAL,
    longitude REAL,
    city TEXT,
    region TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_user ON observations(user_id);
CREATE INDEX IF NOT EXISTS idx_observations_user_time ON observations(user_id, timestamp);
`

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    analysis_id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    anomaly_score REAL NOT NULL,
    rule_score REAL NOT NULL,
    composite_score REAL NOT NULL,
    severity TEXT NOT NULL,
    alert_type TEXT NOT NULL,
    contributing_factors TEXT NOT NULL,
    fired_rules TEXT NOT NULL,
    features TEXT NOT NULL,
    explanation TEXT NOT NULL,
    recommended_actions TEXT NOT NULL,
    requires_review INTEGER NOT NULL DEFAULT 0,
    auto_block INTEGER NOT NULL DEFAULT 0,
    alert_id TEXT,
    analyzed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_tx ON assessments(transaction_id);
CREATE INDEX IF NOT EXISTS idx_assessments_user ON assessments(user_id);
CREATE INDEX IF NOT EXISTS idx_assessments_severity ON assessments(severity);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    assessment_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    severity TEXT NOT NULL,
    score REAL NOT NULL,
    explanation TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(user_id, created_at);
`

const schemaWorkflowExecutions = `
CREATE TABLE IF NOT EXISTS workflow_executions (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    state TEXT NOT NULL,
    priority TEXT NOT NULL,
    input_ref TEXT,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP,
    failed_at TIMESTAMP,
    result TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_workflow_executions_type ON workflow_executions(type);
CREATE INDEX IF NOT EXISTS idx_workflow_executions_state ON workflow_executions(state);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaObservations,
		schemaAssessments,
		schemaAlerts,
		schemaWorkflowExecutions,
	}
}
