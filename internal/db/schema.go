package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- JOB TABLE (pipeline orchestration)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS job_type ON job TYPE string;
    DEFINE FIELD IF NOT EXISTS stage ON job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS status ON job TYPE string;
    DEFINE FIELD IF NOT EXISTS parent_job_id ON job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS metadata ON job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS progress ON job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS result ON job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS error_message ON job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS metrics ON job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS retry_count ON job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS max_retries ON job TYPE int DEFAULT 3;
    DEFINE FIELD IF NOT EXISTS created_at ON job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS started_at ON job TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS completed_at ON job TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS scheduled_for ON job TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS job_parent ON job FIELDS parent_job_id;
    DEFINE INDEX IF NOT EXISTS job_status ON job FIELDS status;
    -- Sweeper scans queued jobs by due time.
    DEFINE INDEX IF NOT EXISTS job_due ON job FIELDS status, scheduled_for;

    -- ==========================================================================
    -- ENTITY TABLE (extracted knowledge)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS type ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON entity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS embedding ON entity TYPE option<array<float>>;
    DEFINE FIELD IF NOT EXISTS source ON entity TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created ON entity TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS entity_source ON entity FIELDS source;
    DEFINE INDEX IF NOT EXISTS entity_name ON entity FIELDS name;
    DEFINE ANALYZER IF NOT EXISTS entity_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(english);
    DEFINE INDEX IF NOT EXISTS entity_name_ft ON entity FIELDS name FULLTEXT ANALYZER entity_analyzer BM25;

    -- ==========================================================================
    -- RELATIONS TABLE
    -- ==========================================================================
    -- Single table with rel_type field instead of dynamic table names
    DEFINE TABLE IF NOT EXISTS relates TYPE RELATION IN entity OUT entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS rel_type ON relates TYPE string;
    DEFINE FIELD IF NOT EXISTS source ON relates TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created ON relates TYPE datetime DEFAULT time::now();
    -- Unique constraint: sorted [in, out, rel_type] prevents duplicate edges
    DEFINE FIELD IF NOT EXISTS unique_key ON relates VALUE <string>string::concat(array::sort([<string>in, <string>out]), rel_type);
    DEFINE INDEX IF NOT EXISTS unique_relation ON relates FIELDS unique_key UNIQUE;

    -- ==========================================================================
    -- CONCEPT TABLE (generated groupings over entities)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS concept SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON concept TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON concept TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS source ON concept TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS members ON concept TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS created ON concept TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS concept_source ON concept FIELDS source;
`
