package delivery

// schema is run once against a fresh database handle. Columns mirror
// domain.DeliveryRecord field for field; nullable timestamp columns stay
// unset until the corresponding status is first reached.
const schema = `
CREATE TABLE IF NOT EXISTS delivery_records (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	recipient     TEXT NOT NULL,
	channel       TEXT NOT NULL,
	status        TEXT NOT NULL,
	provider_id   TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	retry_count   INTEGER NOT NULL DEFAULT 0,
	max_retries   INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	sent_at       DATETIME,
	delivered_at  DATETIME,
	read_at       DATETIME
);

CREATE INDEX IF NOT EXISTS idx_delivery_records_status ON delivery_records (status);
CREATE INDEX IF NOT EXISTS idx_delivery_records_created_at ON delivery_records (created_at);
CREATE INDEX IF NOT EXISTS idx_delivery_records_recipient ON delivery_records (recipient);
`
