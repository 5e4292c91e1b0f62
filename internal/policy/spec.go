// Package policy implements the route-level authorization model: permission
// specs declared at route registration, the per-request context record their
// checks read from, the scope and field resolvers, and the catalog
// bootstrapper that persists the declared specs.
package policy

import (
	"github.com/wardenhq/warden/internal/domain"
)

// PermissionSpec declares the permission a route requires, together with the
// request fields the permission may constrain per source.
type PermissionSpec struct {
	Resource    string
	Action      domain.Action
	Operation   string
	Description string
	Fields      map[domain.Source][]string
}

// Key is the canonical lowercase resource:action:operation identifier.
func (s PermissionSpec) Key() string {
	return domain.PermissionKey(s.Resource, s.Action, s.Operation)
}

// Input converts the spec into the catalog upsert payload.
func (s PermissionSpec) Input() domain.PermissionInput {
	in := domain.PermissionInput{
		Resource:  s.Resource,
		Action:    s.Action,
		Operation: s.Operation,
	}
	if s.Description != "" {
		desc := s.Description
		in.Description = &desc
	}
	return in
}

// FieldInputs flattens the declared field sets for catalog registration.
func (s PermissionSpec) FieldInputs() []domain.FieldInput {
	var fields []domain.FieldInput
	for _, src := range []domain.Source{domain.SourceQuery, domain.SourceJSON} {
		for _, name := range s.Fields[src] {
			fields = append(fields, domain.FieldInput{Src: src, Name: name})
		}
	}
	return fields
}
