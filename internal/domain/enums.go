package domain

// Action is the verb part of a permission key.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Scope narrows a granted permission to the caller's own records or to any.
type Scope string

const (
	ScopeOwn Scope = "own"
	ScopeAny Scope = "any"
)

// Source names the request surface a field constraint applies to.
type Source string

const (
	SourceQuery Source = "query"
	SourceJSON  Source = "json"
)

// Effect marks a field grant as an allowance or a denial.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// SortOrder for list endpoints.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)
