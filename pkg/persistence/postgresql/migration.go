package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Flow definitions, one row per flow identity holding the current revision
			CREATE TABLE flows (
				tenant_id VARCHAR(255) NOT NULL DEFAULT '',
				namespace VARCHAR(255) NOT NULL,
				id VARCHAR(255) NOT NULL,
				revision INT NOT NULL DEFAULT 1,
				disabled BOOLEAN NOT NULL DEFAULT FALSE,
				labels JSONB,
				triggers JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (tenant_id, namespace, id)
			);

			CREATE INDEX idx_flows_tenant ON flows(tenant_id);
			CREATE INDEX idx_flows_disabled ON flows(disabled);

			-- Partially-filled multiple-condition aggregation windows
			CREATE TABLE multiple_condition_windows (
				tenant_id VARCHAR(255) NOT NULL DEFAULT '',
				namespace VARCHAR(255) NOT NULL,
				flow_id VARCHAR(255) NOT NULL,
				condition_id VARCHAR(255) NOT NULL,
				correlation_key VARCHAR(255) NOT NULL DEFAULT '',
				results JSONB NOT NULL DEFAULT '{}',
				window_start TIMESTAMP WITH TIME ZONE NOT NULL,
				window_end TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (tenant_id, namespace, flow_id, condition_id, correlation_key)
			);

			CREATE INDEX idx_windows_expiry ON multiple_condition_windows(tenant_id, window_end);
		`,
	}
}
