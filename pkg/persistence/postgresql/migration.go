package postgresql

const migrationsTable = "automation_migrations"

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS automations (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL DEFAULT 'active',
				trigger JSONB NOT NULL,
				conditions JSONB NOT NULL DEFAULT '[]',
				actions JSONB NOT NULL DEFAULT '[]',
				min_interval_seconds INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_automations_status ON automations(status) WHERE deleted_at IS NULL;
			CREATE INDEX IF NOT EXISTS idx_automations_trigger_type ON automations((trigger->>'type')) WHERE deleted_at IS NULL;

			CREATE TABLE IF NOT EXISTS automation_logs (
				id VARCHAR(255) PRIMARY KEY,
				automation_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				input JSONB NOT NULL DEFAULT '{}',
				output JSONB NOT NULL DEFAULT '[]',
				error TEXT NOT NULL DEFAULT '',
				duration_ms BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_automation_logs_automation_created ON automation_logs(automation_id, created_at DESC);
		`,
	}
}
