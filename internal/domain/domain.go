package domain

// PipelineStatus is the stage of an application in the hiring funnel.
type PipelineStatus string

const (
	StatusHRInterview   PipelineStatus = "hr_interview"
	StatusTechInterview PipelineStatus = "tech_interview"
	StatusOffer         PipelineStatus = "offer"
	StatusHired         PipelineStatus = "hired"
	StatusRejected      PipelineStatus = "rejected"
	StatusPooled        PipelineStatus = "pooled"
)

var PipelineStatuses = []PipelineStatus{
	StatusHRInterview, StatusTechInterview, StatusOffer, StatusHired, StatusRejected, StatusPooled,
}

func (s PipelineStatus) Valid() bool {
	for _, v := range PipelineStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the funnel ends at s.
func (s PipelineStatus) IsTerminal() bool {
	return s == StatusHired || s == StatusRejected
}

// IsActive reports whether the application still moves through the funnel.
// Active applications are the ones a job order cascade pools.
func (s PipelineStatus) IsActive() bool {
	return s.Valid() && !s.IsTerminal() && s != StatusPooled
}

// JobOrderStatus is the lifecycle state of a requisition.
type JobOrderStatus string

const (
	JobOrderOpen     JobOrderStatus = "open"
	JobOrderOnHold   JobOrderStatus = "on_hold"
	JobOrderPooling  JobOrderStatus = "pooling"
	JobOrderClosed   JobOrderStatus = "closed"
	JobOrderArchived JobOrderStatus = "archived"
)

var JobOrderStatuses = []JobOrderStatus{
	JobOrderOpen, JobOrderOnHold, JobOrderPooling, JobOrderClosed, JobOrderArchived,
}

func (s JobOrderStatus) Valid() bool {
	for _, v := range JobOrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsActive is false for closed and archived job orders. Notification
// actions are derived from this classification.
func (s JobOrderStatus) IsActive() bool {
	return s != JobOrderClosed && s != JobOrderArchived
}

// Disposition is the curated state of a pool record.
type Disposition string

const (
	DispositionAvailable   Disposition = "available"
	DispositionNotSuitable Disposition = "not_suitable"
	DispositionOnHold      Disposition = "on_hold"
	DispositionActivated   Disposition = "activated"
	DispositionArchived    Disposition = "archived"
)

var Dispositions = []Disposition{
	DispositionAvailable, DispositionNotSuitable, DispositionOnHold, DispositionActivated, DispositionArchived,
}

func (d Disposition) Valid() bool {
	for _, v := range Dispositions {
		if d == v {
			return true
		}
	}
	return false
}

// Settable reports whether HR curation may set d directly. Activated is
// only reachable through activation.
func (d Disposition) Settable() bool {
	return d.Valid() && d != DispositionActivated
}

type JobOrder struct {
	ID          string         `json:"id"`
	Number      string         `json:"jo_number"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Department  string         `json:"department,omitempty"`
	Level       string         `json:"level,omitempty"`
	Quantity    int            `json:"quantity"`
	HiredCount  int            `json:"hired_count"`
	Status      JobOrderStatus `json:"status" enum:"open,on_hold,pooling,closed,archived"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
	UpdatedAt   string         `json:"updated_at" format:"date-time"`
}

type Candidate struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Application struct {
	ID                string         `json:"id"`
	CandidateID       string         `json:"candidate_id"`
	JobOrderID        string         `json:"job_order_id"`
	PipelineStatus    PipelineStatus `json:"pipeline_status" enum:"hr_interview,tech_interview,offer,hired,rejected,pooled"`
	MatchScore        *float64       `json:"match_score,omitempty"`
	EmploymentType    string         `json:"employment_type,omitempty"`
	Remarks           string         `json:"remarks,omitempty"`
	AppliedDate       *string        `json:"applied_date,omitempty" format:"date-time"`
	StatusChangedDate *string        `json:"status_changed_date,omitempty" format:"date-time"`
	CreatedAt         string         `json:"created_at" format:"date-time"`
	UpdatedAt         string         `json:"updated_at" format:"date-time"`
	// DurationDays is set on transition results only; it is never stored on the application.
	DurationDays *int `json:"duration_days,omitempty"`
}

type TimelineEntry struct {
	ID            int64           `json:"id"`
	ApplicationID string          `json:"application_id"`
	CandidateID   string          `json:"candidate_id"`
	FromStatus    *PipelineStatus `json:"from_status,omitempty"`
	ToStatus      PipelineStatus  `json:"to_status"`
	ChangedDate   string          `json:"changed_date" format:"date-time"`
	DurationDays  *int            `json:"duration_days,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	ChangedBy     string          `json:"changed_by,omitempty"`
}

type PooledCandidate struct {
	ID                    string         `json:"id"`
	CandidateID           string         `json:"candidate_id"`
	CandidateName         string         `json:"candidate_name,omitempty"`
	OriginalApplicationID string         `json:"original_application_id"`
	OriginalJobOrderID    string         `json:"original_job_order_id"`
	OriginalJobTitle      string         `json:"original_job_title,omitempty"`
	PooledFromStatus      PipelineStatus `json:"pooled_from_status"`
	PoolReason            string         `json:"pool_reason,omitempty"`
	Notes                 string         `json:"notes,omitempty"`
	PooledBy              string         `json:"pooled_by"`
	PooledAt              string         `json:"pooled_at" format:"date-time"`
	Disposition           Disposition    `json:"disposition" enum:"available,not_suitable,on_hold,activated,archived"`
	DispositionChangedAt  *string        `json:"disposition_changed_at,omitempty" format:"date-time"`
	NewApplicationID      *string        `json:"new_application_id,omitempty"`
	NewJobOrderID         *string        `json:"new_job_order_id,omitempty"`
	CreatedAt             string         `json:"created_at" format:"date-time"`
	UpdatedAt             string         `json:"updated_at" format:"date-time"`
}

type Activity struct {
	ID              int64  `json:"id"`
	TS              string `json:"ts" format:"date-time"`
	ActivityType    string `json:"activity_type"`
	EntityType      string `json:"entity_type"`
	EntityID        string `json:"entity_id"`
	PerformedByName string `json:"performed_by_name"`
	Details         string `json:"details_json"`
}
