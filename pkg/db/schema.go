package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- Runs: one row per mine/process invocation, keyed by ULID
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    command TEXT NOT NULL,
    app_name TEXT NOT NULL,
    platforms TEXT NOT NULL,          -- comma separated
    output_dir TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    success BOOLEAN DEFAULT 0,
    total_scraped INTEGER DEFAULT 0,
    total_processed INTEGER DEFAULT 0,
    execution_seconds REAL DEFAULT 0,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_app ON runs(app_name);

-- Run batches: per app/platform processing stats
CREATE TABLE IF NOT EXISTS run_batches (
    batch_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    app_name TEXT NOT NULL,
    platform TEXT NOT NULL,
    scraped_at TEXT,
    total_reviews INTEGER DEFAULT 0,
    high_quality_reviews INTEGER DEFAULT 0,
    spam_reviews INTEGER DEFAULT 0,
    duplicate_reviews INTEGER DEFAULT 0,
    average_rating REAL DEFAULT 0,
    average_sentiment REAL DEFAULT 0,

    -- Counts after each processing stage
    original_count INTEGER DEFAULT 0,
    cleaned_count INTEGER DEFAULT 0,
    deduplicated_count INTEGER DEFAULT 0,
    classified_count INTEGER DEFAULT 0,
    final_count INTEGER DEFAULT 0,

    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
    UNIQUE(run_id, app_name, platform)
);

CREATE INDEX IF NOT EXISTS idx_run_batches_run ON run_batches(run_id);

-- Reviews: processed reviews kept per run
CREATE TABLE IF NOT EXISTS reviews (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    review_id TEXT NOT NULL,
    platform TEXT NOT NULL,
    app_name TEXT NOT NULL,
    title TEXT,
    content TEXT NOT NULL,
    cleaned_content TEXT,
    rating INTEGER,
    review_date TEXT,
    helpful_count INTEGER DEFAULT 0,
    primary_category TEXT,
    classification_confidence REAL DEFAULT 0,
    sentiment TEXT,
    sentiment_score REAL DEFAULT 0,
    quality_score REAL DEFAULT 0,
    is_high_quality BOOLEAN DEFAULT 0,

    -- Keywords found as JSON array: ["price", "ads"]
    keywords TEXT,
    source_url TEXT,

    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
    UNIQUE(run_id, review_id)
);

CREATE INDEX IF NOT EXISTS idx_reviews_run ON reviews(run_id);
CREATE INDEX IF NOT EXISTS idx_reviews_category ON reviews(primary_category);
CREATE INDEX IF NOT EXISTS idx_reviews_sentiment ON reviews(sentiment);

-- Run files: every file written by a run
CREATE TABLE IF NOT EXISTS run_files (
    file_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    kind TEXT NOT NULL,               -- csv, json, report, summary, raw_snapshot, manifest
    file_path TEXT NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
    UNIQUE(run_id, file_path)
);

CREATE INDEX IF NOT EXISTS idx_run_files_run ON run_files(run_id);
`
