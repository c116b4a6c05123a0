package store

// Schema for the two report tables. InitSchema is idempotent; the run
// command only verifies presence and fails fast when the schema is absent.
const schema = `
CREATE TABLE IF NOT EXISTS ig_reports (
	id BIGSERIAL PRIMARY KEY,
	report_id TEXT NOT NULL UNIQUE,
	url TEXT NOT NULL,
	agency_id TEXT NOT NULL DEFAULT '',
	agency_name TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	report_type TEXT NOT NULL DEFAULT 'Report',
	published_date DATE NOT NULL,
	abstract TEXT NOT NULL DEFAULT '',
	document_url TEXT,
	document_text TEXT,
	document_page_count INTEGER,
	passed_keyword_filter BOOLEAN NOT NULL DEFAULT FALSE,
	passed_llm_filter BOOLEAN,
	newsworthy_score INTEGER,
	llm_filter_reason TEXT,
	dollar_amount BIGINT,
	criminal BOOLEAN NOT NULL DEFAULT FALSE,
	topics TEXT,
	summary TEXT,
	post_text TEXT,
	posted BOOLEAN NOT NULL DEFAULT FALSE,
	posted_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_ig_reports_published
	ON ig_reports (published_date DESC);
CREATE INDEX IF NOT EXISTS idx_ig_reports_stages
	ON ig_reports (passed_keyword_filter, passed_llm_filter, posted);

CREATE TABLE IF NOT EXISTS bot_posts (
	id BIGSERIAL PRIMARY KEY,
	report_id BIGINT NOT NULL REFERENCES ig_reports(id),
	post_uri TEXT NOT NULL,
	posted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
