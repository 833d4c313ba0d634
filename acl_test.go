package objectgate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/objectgate"
)

var allPermissions = []objectgate.Permission{objectgate.PermissionRead, objectgate.PermissionWrite}

func TestPolicyEngine_OwnerAlwaysAllowed(t *testing.T) {
	engine := objectgate.PolicyEngine{}
	owner := objectgate.Principal{ID: "u1"}

	policies := map[string]objectgate.AclPolicy{
		"private no rules": {Owner: "u1", Visibility: objectgate.VisibilityPrivate},
		"public no rules":  {Owner: "u1", Visibility: objectgate.VisibilityPublic},
		"private with other rules": {
			Owner:      "u1",
			Visibility: objectgate.VisibilityPrivate,
			Rules: []objectgate.AclRule{
				{PrincipalType: objectgate.PrincipalUser, PrincipalID: "u2", Permission: objectgate.PermissionRead},
			},
		},
	}

	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			for _, perm := range allPermissions {
				assert.True(t, engine.CanAccess(owner, &policy, perm), "owner %s", perm)
			}
		})
	}
}

func TestPolicyEngine_PublicIsReadOnly(t *testing.T) {
	engine := objectgate.PolicyEngine{}
	policy := &objectgate.AclPolicy{
		Owner:      "u1",
		Visibility: objectgate.VisibilityPublic,
		Rules: []objectgate.AclRule{
			{PrincipalType: objectgate.PrincipalUser, PrincipalID: "writer", Permission: objectgate.PermissionWrite},
			{PrincipalType: objectgate.PrincipalUser, PrincipalID: "reader", Permission: objectgate.PermissionRead},
		},
	}

	tests := []struct {
		name      string
		principal objectgate.Principal
		canWrite  bool
	}{
		{"anonymous", objectgate.Principal{}, false},
		{"stranger", objectgate.Principal{ID: "u9"}, false},
		{"explicit reader", objectgate.Principal{ID: "reader"}, false},
		{"explicit writer", objectgate.Principal{ID: "writer"}, true},
		{"owner", objectgate.Principal{ID: "u1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, engine.CanAccess(tt.principal, policy, objectgate.PermissionRead))
			assert.Equal(t, tt.canWrite, engine.CanAccess(tt.principal, policy, objectgate.PermissionWrite))
		})
	}
}

func TestPolicyEngine_DefaultDeny(t *testing.T) {
	engine := objectgate.PolicyEngine{}
	policy := objectgate.AclPolicy{Owner: "u1"}.WithDefaults()

	require.Equal(t, objectgate.VisibilityPrivate, policy.Visibility)
	require.Empty(t, policy.Rules)

	principals := []objectgate.Principal{
		{},
		{ID: "u2"},
		{ID: "u3", Groups: []string{"admins", "treasurers"}},
	}

	for _, p := range principals {
		for _, perm := range allPermissions {
			assert.False(t, engine.CanAccess(p, &policy, perm), "principal %q %s", p.ID, perm)
		}
	}
}

func TestPolicyEngine_UserRule(t *testing.T) {
	engine := objectgate.PolicyEngine{}
	policy := &objectgate.AclPolicy{
		Owner:      "u1",
		Visibility: objectgate.VisibilityPrivate,
		Rules: []objectgate.AclRule{
			{PrincipalType: objectgate.PrincipalUser, PrincipalID: "u2", Permission: objectgate.PermissionRead},
		},
	}

	assert.False(t, engine.CanAccess(objectgate.Principal{ID: "u2"}, policy, objectgate.PermissionWrite))
	assert.True(t, engine.CanAccess(objectgate.Principal{ID: "u2"}, policy, objectgate.PermissionRead))
	assert.False(t, engine.CanAccess(objectgate.Principal{ID: "u3"}, policy, objectgate.PermissionRead))
}

func TestPolicyEngine_GroupRule(t *testing.T) {
	engine := objectgate.PolicyEngine{}
	policy := &objectgate.AclPolicy{
		Owner:      "u1",
		Visibility: objectgate.VisibilityPrivate,
		Rules: []objectgate.AclRule{
			{PrincipalType: objectgate.PrincipalGroup, PrincipalID: "treasurers", Permission: objectgate.PermissionWrite},
		},
	}

	treasurer := objectgate.Principal{ID: "u5", Groups: []string{"members", "treasurers"}}
	member := objectgate.Principal{ID: "u6", Groups: []string{"members"}}
	// A user whose id matches the group id is not a group member.
	lookalike := objectgate.Principal{ID: "treasurers"}

	assert.True(t, engine.CanAccess(treasurer, policy, objectgate.PermissionWrite))
	assert.True(t, engine.CanAccess(treasurer, policy, objectgate.PermissionRead), "write implies read")
	assert.False(t, engine.CanAccess(member, policy, objectgate.PermissionRead))
	assert.False(t, engine.CanAccess(lookalike, policy, objectgate.PermissionRead))
}

func TestPolicyEngine_NilPolicyDenies(t *testing.T) {
	engine := objectgate.PolicyEngine{}
	for _, perm := range allPermissions {
		assert.False(t, engine.CanAccess(objectgate.Principal{ID: "u1"}, nil, perm))
	}
}

func TestPolicyCodec(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		policy := objectgate.AclPolicy{
			Owner:      "u1",
			Visibility: objectgate.VisibilityPublic,
			Rules: []objectgate.AclRule{
				{PrincipalType: objectgate.PrincipalGroup, PrincipalID: "board", Permission: objectgate.PermissionWrite},
			},
		}

		encoded, err := objectgate.EncodePolicy(policy)
		require.NoError(t, err)
		assert.JSONEq(t, `{"owner":"u1","visibility":"public","rules":[{"principal_type":"group","principal_id":"board","permission":"write"}]}`, encoded)

		decoded, err := objectgate.DecodePolicy(encoded)
		require.NoError(t, err)
		assert.Equal(t, policy, *decoded)
	})

	t.Run("encode rejects missing owner", func(t *testing.T) {
		_, err := objectgate.EncodePolicy(objectgate.AclPolicy{Visibility: objectgate.VisibilityPrivate})
		assert.ErrorIs(t, err, objectgate.ErrInvalidPolicy)
	})

	rejected := map[string]string{
		"unknown field":      `{"owner":"u1","visibility":"private","rules":[],"admin":true}`,
		"unknown visibility": `{"owner":"u1","visibility":"secret","rules":[]}`,
		"unknown permission": `{"owner":"u1","visibility":"private","rules":[{"principal_type":"user","principal_id":"u2","permission":"delete"}]}`,
		"unknown principal":  `{"owner":"u1","visibility":"private","rules":[{"principal_type":"role","principal_id":"u2","permission":"read"}]}`,
		"missing owner":      `{"visibility":"private","rules":[]}`,
		"missing principal":  `{"owner":"u1","visibility":"private","rules":[{"principal_type":"user","permission":"read"}]}`,
		"wrong type":         `{"owner":1,"visibility":"private","rules":[]}`,
		"trailing document":  `{"owner":"u1","visibility":"private","rules":[]}{}`,
		"not json":           `owner=u1`,
		"missing visibility": `{"owner":"u1","rules":[]}`,
		"unknown rule field": `{"owner":"u1","visibility":"private","rules":[{"principal_type":"user","principal_id":"u2","permission":"read","deny":true}]}`,
	}

	for name, raw := range rejected {
		t.Run("decode rejects "+name, func(t *testing.T) {
			_, err := objectgate.DecodePolicy(raw)
			assert.ErrorIs(t, err, objectgate.ErrInvalidPolicy)
		})
	}
}

func TestPolicyFromMetadata(t *testing.T) {
	policy, err := objectgate.PolicyFromMetadata(map[string]string{"other": "x"})
	assert.NoError(t, err)
	assert.Nil(t, policy)

	policy, err = objectgate.PolicyFromMetadata(nil)
	assert.NoError(t, err)
	assert.Nil(t, policy)

	policy, err = objectgate.PolicyFromMetadata(map[string]string{
		objectgate.PolicyMetadataKey: `{"owner":"u1","visibility":"private","rules":[]}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", policy.Owner)

	_, err = objectgate.PolicyFromMetadata(map[string]string{objectgate.PolicyMetadataKey: `{`})
	assert.ErrorIs(t, err, objectgate.ErrInvalidPolicy)
}

func TestPermission_Satisfies(t *testing.T) {
	assert.True(t, objectgate.PermissionWrite.Satisfies(objectgate.PermissionRead))
	assert.True(t, objectgate.PermissionWrite.Satisfies(objectgate.PermissionWrite))
	assert.True(t, objectgate.PermissionRead.Satisfies(objectgate.PermissionRead))
	assert.False(t, objectgate.PermissionRead.Satisfies(objectgate.PermissionWrite))
	assert.False(t, objectgate.Permission("admin").Satisfies(objectgate.PermissionRead))
}
