package models

import (
	"time"
)

// Item type discriminators.
const (
	ItemTypeFolder  = "folder"
	ItemTypeRequest = "request"
)

// Body modes supported by request bodies.
const (
	BodyModeNone       = "none"
	BodyModeRaw        = "raw"
	BodyModeURLEncoded = "urlencoded"
	BodyModeFormData   = "formdata"
)

// Collection is a named, versioned tree of folders and requests plus its own
// variable scope. Items form an arena: a flat ordered list with parent
// references, assembled into a tree on demand.
type Collection struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	OwnerID     string            `json:"owner_id,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	Auth        *Auth             `json:"auth,omitempty"`
	Items       []Item            `json:"items"`
	Version     int               `json:"version"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Auth describes an auth scheme attached to a collection or overridden
// per request (bearer, basic, apikey).
type Auth struct {
	Type   string            `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

// Item is a tree node, either a folder (container) or a request (leaf).
// ParentID is empty for root items. Position is dense per parent.
type Item struct {
	ID               string       `json:"id"`
	ParentID         string       `json:"parent_id,omitempty"`
	Name             string       `json:"name"`
	Description      string       `json:"description,omitempty"`
	Type             string       `json:"item_type"`
	Position         int          `json:"position"`
	PreRequestScript string       `json:"pre_request_script,omitempty"`
	TestScript       string       `json:"test_script,omitempty"`
	Request          *RequestSpec `json:"request,omitempty"`
}

// RequestSpec holds the executable part of a request item. Templated fields
// keep their {{tokens}} until a run resolves them.
type RequestSpec struct {
	Method    string   `json:"method"`
	URL       string   `json:"url"`
	Headers   []Header `json:"headers,omitempty"`
	Body      Body     `json:"body"`
	Auth      *Auth    `json:"auth,omitempty"`
	TimeoutMs int      `json:"timeout_ms,omitempty"`
}

type Header struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// Body is a tagged union over Mode: Raw carries raw mode content,
// Form carries urlencoded and formdata fields.
type Body struct {
	Mode string      `json:"mode"`
	Raw  string      `json:"raw,omitempty"`
	Form []FormField `json:"form,omitempty"`
}

type FormField struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// Environment is a reusable set of variables selectable at run time,
// independent of any collection. Only enabled variables participate in
// resolution; later duplicates override earlier ones.
type Environment struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	Variables   []Variable `json:"variables"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Variable struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Type    string `json:"type,omitempty"`
	Enabled bool   `json:"enabled"`
}

// VariableMap flattens the enabled variables in declaration order.
func (e *Environment) VariableMap() map[string]string {
	vars := make(map[string]string, len(e.Variables))
	for _, v := range e.Variables {
		if v.Enabled {
			vars[v.Key] = v.Value
		}
	}
	return vars
}

// Run states.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Per-request execution states.
const (
	ResultStatusCompleted = "completed"
	ResultStatusFailed    = "failed"
	ResultStatusSkipped   = "skipped"
)

// Run is one execution of a collection against an optional environment.
type Run struct {
	ID            string            `json:"id"`
	CollectionID  string            `json:"collection_id"`
	EnvironmentID string            `json:"environment_id,omitempty"`
	Status        string            `json:"status"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at,omitzero"`
	Results       []ExecutionResult `json:"results"`
	Counters      RunCounters       `json:"counters"`
}

type RunCounters struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ExecutionResult records one request's outcome within a run. Request holds
// the resolved snapshot actually dispatched, not the stored template.
type ExecutionResult struct {
	ItemID     string          `json:"item_id"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Request    ResolvedRequest `json:"request"`
	Response   *ResponseData   `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
	Assertions []Assertion     `json:"assertions,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// ResolvedRequest is a request with all templates substituted, ready for
// the transport.
type ResolvedRequest struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	Auth      *Auth             `json:"auth,omitempty"`
	TimeoutMs int               `json:"timeout_ms,omitempty"`
}

// ResponseData is the transport collaborator's view of an HTTP response.
type ResponseData struct {
	Status     int               `json:"status"`
	StatusText string            `json:"status_text"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
	DurationMs int64             `json:"duration_ms"`
}

type Assertion struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// CollectionVersion is an immutable snapshot of a collection, created after
// every successful mutation. Snapshot is a deep copy; history never aliases
// the live collection.
type CollectionVersion struct {
	ID           string     `json:"id"`
	CollectionID string     `json:"collection_id"`
	Sequence     int        `json:"sequence"`
	Label        string     `json:"label,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	Snapshot     Collection `json:"snapshot"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Share is an opaque capability granting scoped, optionally time/usage-limited
// access to a collection. Expired or exhausted shares validate as not-found.
type Share struct {
	Token        string     `json:"token"`
	CollectionID string     `json:"collection_id"`
	Permissions  []string   `json:"permissions"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	MaxAccess    int        `json:"max_access,omitempty"`
	AccessCount  int        `json:"access_count"`
	Revoked      bool       `json:"revoked"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ItemTreeNode is the nested shape returned by the tree endpoint.
type ItemTreeNode struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	ItemType         string         `json:"item_type"`
	Position         int            `json:"position"`
	PreRequestScript string         `json:"pre_request_script,omitempty"`
	TestScript       string         `json:"test_script,omitempty"`
	Request          *RequestSpec   `json:"request,omitempty"`
	Children         []ItemTreeNode `json:"children,omitempty"`
}

// CollectionTree pairs a collection with its assembled item tree.
type CollectionTree struct {
	Collection Collection     `json:"collection"`
	Items      []ItemTreeNode `json:"items"`
}

// ErrorResponse is the JSON error envelope for the HTTP layer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
