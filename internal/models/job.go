package models

import "time"

// JobType enumerates the C12 job handler types.
type JobType string

const (
	JobTypeResumeTailoring JobType = "resume_tailoring"
	JobTypeJobApplication  JobType = "job_application"
	JobTypeJobSearch       JobType = "job_search"
	JobTypeProjectAnalysis JobType = "project_analysis"
)

// JobPriority is 1 (highest) through 5 (lowest), matching the priority
// score formula in §4.13.
type JobPriority int

const (
	PriorityCritical JobPriority = 1
	PriorityHigh     JobPriority = 2
	PriorityNormal   JobPriority = 3
	PriorityLow      JobPriority = 4
	PriorityBatch    JobPriority = 5
)

// JobStatus is the lifecycle state of a JobRequest/JobResult.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
	JobStatusTimeout   JobStatus = "TIMEOUT"
)

// JobRequest is the queued unit of work, created by C13 on submission.
type JobRequest struct {
	JobID         string                 `json:"job_id"`
	UserID        string                 `json:"user_id"`
	JobType       JobType                `json:"job_type"`
	Priority      JobPriority            `json:"priority"`
	Payload       map[string]interface{} `json:"payload"`
	CreatedAt     time.Time              `json:"created_at"`
	ScheduledAt   *time.Time             `json:"scheduled_at,omitempty"`
	TimeoutSecs   int                    `json:"timeout_seconds"`
	RetryCount    int                    `json:"retry_count"`
	MaxRetries    int                    `json:"max_retries"`
}

// PriorityScore computes the sort key described in §4.13:
// priority_value * 10^6 + floor(created_at_epoch). Lower sorts first, which
// gives priority ordering with FIFO-by-epoch as the tiebreak.
func (j *JobRequest) PriorityScore() int64 {
	return int64(j.Priority)*1_000_000 + j.CreatedAt.Unix()
}

// JobResult is the terminal (or in-flight) record for a job, persisted under
// a 24h TTL.
type JobResult struct {
	JobID         string                 `json:"job_id"`
	Status        JobStatus              `json:"status"`
	Result        map[string]interface{} `json:"result,omitempty"`
	Error         string                 `json:"error,omitempty"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	ExecutionTime time.Duration          `json:"execution_time"`
}

// QuotaReservation is an in-flight claim on the Gemini per-minute budget (C2).
type QuotaReservation struct {
	ReservationID string    `json:"reservation_id"`
	UserID        string    `json:"user_id"`
	Priority      JobPriority `json:"priority"`
	ReservedAt    time.Time `json:"reserved_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// BackupType enumerates the three backup families (C3).
type BackupType string

const (
	BackupTypeDatabase BackupType = "database"
	BackupTypeFiles    BackupType = "files"
	BackupTypeLogs     BackupType = "logs"
)

// BackupStatus is the outcome of a single backup run.
type BackupStatus string

const (
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// BackupRecord is the metadata sidecar persisted per backup artifact.
type BackupRecord struct {
	BackupID        string       `json:"backup_id"`
	Type            BackupType   `json:"type"`
	Timestamp       time.Time    `json:"timestamp"`
	Filename        string       `json:"filename"`
	Directories     []string     `json:"directories,omitempty"`
	SizeBytes       int64        `json:"size_bytes"`
	SizeMB          float64      `json:"size_mb"`
	DurationSeconds float64      `json:"duration_seconds"`
	Checksum        string       `json:"checksum"`
	Compressed      bool         `json:"compressed"`
	Status          BackupStatus `json:"status"`
	Error           string       `json:"error,omitempty"`
	CloudUploaded   *bool        `json:"cloud_uploaded,omitempty"`
}

// LearnedPattern is a persisted (label, category) -> profile-field mapping
// with a confidence score updated per §4.6.
type LearnedPattern struct {
	LabelNormalized string    `json:"label_normalized"`
	FieldCategory   string    `json:"field_category"`
	ProfileField    string    `json:"profile_field"`
	Confidence      float64   `json:"confidence"`
	SuccessCount    int       `json:"success_count"`
	FailureCount    int       `json:"failure_count"`
	LastUsedAt      time.Time `json:"last_used_at"`
	UserID          string    `json:"user_id,omitempty"`
}

// Key is the natural identity of a learned pattern, used for idempotent
// upserts per §5 ("writes are idempotent given (normalized_label, category,
// profile_field, user_id)").
func (p *LearnedPattern) Key() string {
	return p.UserID + "|" + p.LabelNormalized + "|" + p.FieldCategory + "|" + p.ProfileField
}
