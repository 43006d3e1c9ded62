// Package help holds the quickstart guide printed by `review-miner quickstart`.
package help

const QuickstartYAML = `# review-miner Quick Start

platforms:
  reddit: "Posts and comments from app and category subreddits (default)"
  playstore: "Newest Google Play reviews via the store's batch API"

formats:
  csv: "One CSV per app/platform batch, split into _part_N files past max_rows_per_file"
  json: "Batch JSON with metadata; reload with 'review-miner process'"
  report: "Summary JSON, high-quality CSVs and an analysis JSON"

commands:
  list_apps: |
    review-miner apps list

  app_details: |
    review-miner apps info spotify

  find_package: |
    # Look up a package ID before adding an app to the catalog
    review-miner apps search --limit 5 music streaming

  basic_mine: |
    review-miner mine spotify

  multi_platform: |
    review-miner mine --platforms reddit,playstore --limit 200 --formats csv,json,report spotify

  reuse_scrape: |
    # Reuse raw snapshots younger than 6 hours instead of scraping again
    review-miner mine --max-age 6h spotify

  reprocess: |
    review-miner process data/exports/Spotify_reddit_20240601_120000.json
    review-miner process --app spotify --platform playstore raw_reviews.json

  run_history: |
    review-miner db runs
    review-miner db runs --app spotify --limit 5
    review-miner db run
    review-miner db reviews --category pricing --sentiment negative --limit 20

pipeline:
  - "scrape: platforms run concurrently; a failing platform is logged and skipped"
  - "clean: html unescape, unicode normalization, URL/email removal, length and language checks"
  - "dedup: exact hash, near-duplicate similarity, spam patterns, one review per user"
  - "classify: keyword scoring into ux_ui, pricing, performance, features, customer_service, content_quality"
  - "sentiment: weighted lexicon, score in [-1, 1]"

configuration:
  file: "--config review-miner.yaml or REVIEW_MINER_CONFIG"
  env:
    - "REDDIT_CLIENT_ID / REDDIT_CLIENT_SECRET enable app-only OAuth"
    - "REDDIT_USER_AGENT overrides the Reddit user agent"
    - "REVIEW_MINER_DB moves the run history database"
  dotenv: ".env in the working directory is loaded automatically"

key_files:
  - "data/raw/{app}_{platform}-{hash}.json (raw scrape snapshots)"
  - "data/processed/{app}_{platform}-{hash}.json (latest processed batch)"
  - "data/exports/ (CSV, JSON and report output)"
  - "data/review-miner.db (run history)"
  - "logs/review_mining.log (JSON logs)"

error_behavior:
  - "Unknown app: lists the available apps and exits 1"
  - "No reviews scraped on any platform: exits 1"
  - "Exit codes: 0=success, 1=failure"
`
