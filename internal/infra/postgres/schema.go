package postgres

// Schema returns the DDL for the sales tables. Column names follow the
// lower-snake storage convention.
func Schema() string {
	return `
		CREATE TABLE IF NOT EXISTS sales_data (
			transaction_id BIGINT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			product_id TEXT NOT NULL,
			quantity BIGINT NOT NULL,
			price_per_unit DOUBLE PRECISION NOT NULL,
			cost_per_unit DOUBLE PRECISION,
			total_price DOUBLE PRECISION,
			total_cost DOUBLE PRECISION,
			region TEXT NOT NULL,
			channel TEXT
		);

		CREATE INDEX IF NOT EXISTS sales_data_timestamp_idx ON sales_data (timestamp DESC);

		CREATE TABLE IF NOT EXISTS restock_ledger (
			product_id TEXT NOT NULL,
			quantity BIGINT NOT NULL CHECK (quantity > 0),
			timestamp TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS pipeline_status (
			id TEXT PRIMARY KEY,
			active BOOLEAN NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`
}
