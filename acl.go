package objectgate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// PolicyMetadataKey is the custom metadata key the policy is stored under.
const PolicyMetadataKey = "aclpolicy"

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Satisfies reports whether holding p is enough for requested.
// Write implies read.
func (p Permission) Satisfies(requested Permission) bool {
	switch p {
	case PermissionWrite:
		return requested == PermissionWrite || requested == PermissionRead
	case PermissionRead:
		return requested == PermissionRead
	default:
		return false
	}
}

type PrincipalType string

const (
	PrincipalUser  PrincipalType = "user"
	PrincipalGroup PrincipalType = "group"
)

// Principal is the authenticated actor. An empty ID is the anonymous principal.
type Principal struct {
	ID     string
	Groups []string
}

func (p Principal) IsAnonymous() bool { return p.ID == "" }

func (p Principal) inGroup(id string) bool {
	for _, g := range p.Groups {
		if g == id {
			return true
		}
	}
	return false
}

// AclRule grants one permission to one user or group.
type AclRule struct {
	PrincipalType PrincipalType `json:"principal_type" validate:"required,oneof=user group"`
	PrincipalID   string        `json:"principal_id" validate:"required"`
	Permission    Permission    `json:"permission" validate:"required,oneof=read write"`
}

// AclPolicy governs who may read or write an object. The owner always has
// read and write; there are no deny rules.
type AclPolicy struct {
	Owner      string     `json:"owner" validate:"required"`
	Visibility Visibility `json:"visibility" validate:"required,oneof=public private"`
	Rules      []AclRule  `json:"rules" validate:"dive"`
}

var validate = validator.New()

// Validate rejects policies with unknown enum values or a missing owner.
func (p AclPolicy) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	return nil
}

// WithDefaults fills in the private visibility when none was given.
func (p AclPolicy) WithDefaults() AclPolicy {
	if p.Visibility == "" {
		p.Visibility = VisibilityPrivate
	}
	if p.Rules == nil {
		p.Rules = []AclRule{}
	}
	return p
}

// EncodePolicy serializes a validated policy for storage as object metadata.
func EncodePolicy(p AclPolicy) (string, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("encode policy: %w", err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode policy: %w", err)
	}
	return string(data), nil
}

// DecodePolicy parses stored policy metadata. Unknown fields and invalid
// values are rejected, never coerced.
func DecodePolicy(s string) (*AclPolicy, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()

	var p AclPolicy
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode policy: %w: %w", ErrInvalidPolicy, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode policy: %w: trailing data", ErrInvalidPolicy)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	return &p, nil
}

// PolicyFromMetadata extracts the policy from an object's custom metadata.
// It returns nil and no error when the object has no policy yet.
func PolicyFromMetadata(metadata map[string]string) (*AclPolicy, error) {
	raw, ok := metadata[PolicyMetadataKey]
	if !ok || raw == "" {
		return nil, nil
	}
	return DecodePolicy(raw)
}

// Authorizer decides whether a principal may use a permission on an object.
type Authorizer interface {
	CanAccess(p Principal, policy *AclPolicy, requested Permission) bool
}

// PolicyEngine is the default Authorizer.
type PolicyEngine struct{}

// CanAccess evaluates, in order: public read, ownership, then the first
// matching rule. A nil policy denies everyone.
func (PolicyEngine) CanAccess(p Principal, policy *AclPolicy, requested Permission) bool {
	if policy == nil {
		return false
	}

	if requested == PermissionRead && policy.Visibility == VisibilityPublic {
		return true
	}

	if p.IsAnonymous() {
		return false
	}

	if p.ID == policy.Owner {
		return true
	}

	for _, rule := range policy.Rules {
		if !ruleMatches(rule, p) {
			continue
		}
		if rule.Permission.Satisfies(requested) {
			return true
		}
	}

	return false
}

func ruleMatches(rule AclRule, p Principal) bool {
	switch rule.PrincipalType {
	case PrincipalUser:
		return rule.PrincipalID == p.ID
	case PrincipalGroup:
		return p.inGroup(rule.PrincipalID)
	default:
		return false
	}
}
