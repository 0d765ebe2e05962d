package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEntityType(t *testing.T) {
	tests := []struct {
		name       string
		entityType string
		wantErr    bool
		errMsg     string
	}{
		{
			name:       "valid - builtin type",
			entityType: "session",
			wantErr:    false,
		},
		{
			name:       "valid - with underscore and dash",
			entityType: "body_metrics-v2",
			wantErr:    false,
		},
		{
			name:       "valid - max length",
			entityType: "a" + strings.Repeat("b", MaxEntityTypeLen-1),
			wantErr:    false,
		},
		{
			name:       "invalid - empty",
			entityType: "",
			wantErr:    true,
			errMsg:     "entity type cannot be empty",
		},
		{
			name:       "invalid - too long",
			entityType: strings.Repeat("a", MaxEntityTypeLen+1),
			wantErr:    true,
			errMsg:     "must not exceed 64 characters",
		},
		{
			name:       "invalid - uppercase",
			entityType: "Session",
			wantErr:    true,
			errMsg:     "lowercase letters",
		},
		{
			name:       "invalid - starts with digit",
			entityType: "1session",
			wantErr:    true,
			errMsg:     "starting with a letter",
		},
		{
			name:       "invalid - slash",
			entityType: "session/x",
			wantErr:    true,
		},
		{
			name:       "invalid - space",
			entityType: " session",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntityType(tt.entityType)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateRecordID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
		errMsg  string
	}{
		{name: "valid - uuid", id: "7d0c5b1e-3f0a-4c56-9a43-2b9e8f7c1d20"},
		{name: "valid - date", id: "2026-05-01"},
		{name: "valid - namespaced", id: "units:weight.v1"},
		{name: "valid - max length", id: strings.Repeat("x", MaxRecordIDLen)},
		{name: "invalid - empty", id: "", wantErr: true, errMsg: "record id cannot be empty"},
		{name: "invalid - too long", id: strings.Repeat("x", MaxRecordIDLen+1), wantErr: true, errMsg: "must not exceed 128"},
		{name: "invalid - slash", id: "a/b", wantErr: true, errMsg: "can only contain"},
		{name: "invalid - space", id: "a b", wantErr: true},
		{name: "invalid - unicode", id: "тренировка", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecordID(tt.id)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("checkin", "2026-05-01"))
	assert.Error(t, ValidateKey("", "2026-05-01"))
	assert.Error(t, ValidateKey("checkin", ""))
}
