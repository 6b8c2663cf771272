package migration

// getAllMigrations retorna todas as migrações disponíveis
func getAllMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_allocation_tables",
			Up: `
				-- Requisições de alocação
				CREATE TABLE allocation_requests (
					id UUID PRIMARY KEY,
					total_minutes INTEGER NOT NULL CHECK (total_minutes > 0),
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				-- Resultado por tarefa, na ordem de entrada
				CREATE TABLE task_allocations (
					id SERIAL PRIMARY KEY,
					request_id UUID NOT NULL REFERENCES allocation_requests(id) ON DELETE CASCADE,
					position INTEGER NOT NULL,
					task_id VARCHAR(255) NOT NULL,
					ratio DOUBLE PRECISION NOT NULL CHECK (ratio > 0),
					allocated_minutes INTEGER NOT NULL CHECK (allocated_minutes >= 0),
					min_minutes INTEGER,
					max_minutes INTEGER,
					created_at TIMESTAMP DEFAULT NOW(),
					updated_at TIMESTAMP DEFAULT NOW(),
					UNIQUE (request_id, position),
					UNIQUE (request_id, task_id)
				);
			`,
			Down: `
				DROP TABLE IF EXISTS task_allocations;
				DROP TABLE IF EXISTS allocation_requests;
			`,
		},
		{
			Version: 2,
			Name:    "create_allocation_indexes",
			Up: `
				CREATE INDEX idx_task_allocations_request_id ON task_allocations(request_id);
				CREATE INDEX idx_task_allocations_task_id ON task_allocations(task_id);
				CREATE INDEX idx_allocation_requests_created_at ON allocation_requests(created_at);
			`,
			Down: `
				DROP INDEX IF EXISTS idx_allocation_requests_created_at;
				DROP INDEX IF EXISTS idx_task_allocations_task_id;
				DROP INDEX IF EXISTS idx_task_allocations_request_id;
			`,
		},
	}
}
