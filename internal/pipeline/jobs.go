package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobKind distinguishes upload ingestion from index rebuilds.
type JobKind string

const (
	KindIngest  JobKind = "ingest"
	KindReindex JobKind = "reindex"
)

// JobStatus represents the state of a background job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusIndexing   JobStatus = "indexing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// Job tracks the state of one ingest or reindex run.
type Job struct {
	mu sync.Mutex

	ID   string  `json:"job_id"`
	Kind JobKind `json:"kind"`

	DocID       string `json:"doc_id,omitempty"`
	Filename    string `json:"filename,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Role        string `json:"role,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// Progress tracks processing progress. For ingest jobs Total is 1; for
// reindex jobs it is the number of documents in the corpus.
type Progress struct {
	Total    int      `json:"total"`
	Indexed  int      `json:"indexed"`
	Failed   int      `json:"failed"`
	Attempts int      `json:"attempts"`
	Errors   []string `json:"errors"`
}

// NewIngestJob creates a queued ingest job for an uploaded file. The document
// id is assigned up front so retries rewrite the same records.
func NewIngestJob(filename, role string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Kind:      KindIngest,
		DocID:     uuid.NewString(),
		Filename:  filename,
		Role:      role,
		FileSize:  int64(len(data)),
		Status:    StatusQueued,
		Phase:     "queued",
		Progress:  Progress{Total: 1},
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// NewReindexJob creates a queued reindex job.
func NewReindexJob() *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Kind:      KindReindex,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes finished jobs idle for longer than the TTL. Running jobs
// are never evicted.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrAttempts counts one indexing attempt.
func (j *Job) IncrAttempts() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Attempts++
	j.UpdatedAt = time.Now()
}

// SetProgress records running counts.
func (j *Job) SetProgress(indexed, failed, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Indexed = indexed
	j.Progress.Failed = failed
	j.Progress.Total = total
	j.UpdatedAt = time.Now()
}

// SetFileMeta records where the original upload was stored.
func (j *Job) SetFileMeta(path, contentType string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.FilePath = path
	j.ContentType = contentType
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseFileData drops the upload bytes once they are no longer needed.
func (j *Job) releaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Kind        JobKind   `json:"kind"`
	DocID       string    `json:"doc_id,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Role        string    `json:"role,omitempty"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		Kind:        j.Kind,
		DocID:       j.DocID,
		Filename:    j.Filename,
		ContentType: j.ContentType,
		Role:        j.Role,
		Status:      j.Status,
		Phase:       j.Phase,
		Progress:    p,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}
