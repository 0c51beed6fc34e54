// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeyString(t *testing.T) {
	assert.Equal(t, "testKey", contextKey("testKey").String())
	assert.Equal(t, "userID", UserIDCtxKey.String())
}

func TestGetUserIDFromContext(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		wantID string
		wantOK bool
	}{
		{name: "set via WithUserID", ctx: WithUserID(context.Background(), "u-1"), wantID: "u-1", wantOK: true},
		{name: "missing", ctx: context.Background(), wantID: "", wantOK: false},
		{name: "wrong type", ctx: context.WithValue(context.Background(), UserIDCtxKey, int64(42)), wantID: "", wantOK: false},
		{name: "empty string", ctx: WithUserID(context.Background(), ""), wantID: "", wantOK: false},
		{name: "plain string key does not collide", ctx: context.WithValue(context.Background(), "userID", "u-2"), wantID: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := GetUserIDFromContext(tt.ctx)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
