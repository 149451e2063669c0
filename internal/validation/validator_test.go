// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package validation

import (
	"strings"
	"testing"
)

type postMessageRequest struct {
	SenderID string `validate:"required,max=64"`
	Text     string `validate:"required,max=2000"`
	Limit    int    `validate:"gte=1,lte=200"`
}

func TestValidateStruct_Valid(t *testing.T) {
	req := postMessageRequest{SenderID: "user-7", Text: "salut", Limit: 50}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidateStruct_MissingRequired(t *testing.T) {
	req := postMessageRequest{Limit: 50}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	if len(err.Errors()) != 2 {
		t.Errorf("expected 2 field errors, got %d", len(err.Errors()))
	}
	if !strings.Contains(err.Error(), "SenderID is required") {
		t.Errorf("missing SenderID message in %q", err.Error())
	}
	if !strings.Contains(err.Error(), "Text is required") {
		t.Errorf("missing Text message in %q", err.Error())
	}
}

func TestValidateStruct_RangeMessages(t *testing.T) {
	tests := []struct {
		name string
		req  postMessageRequest
		want string
	}{
		{
			name: "limit too small",
			req:  postMessageRequest{SenderID: "u", Text: "hi", Limit: 0},
			want: "Limit must be greater than or equal to 1",
		},
		{
			name: "limit too large",
			req:  postMessageRequest{SenderID: "u", Text: "hi", Limit: 500},
			want: "Limit must be less than or equal to 200",
		},
		{
			name: "text too long",
			req:  postMessageRequest{SenderID: "u", Text: strings.Repeat("x", 2001), Limit: 1},
			want: "Text must be at most 2000 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	req := postMessageRequest{Limit: 50}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation error")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	fields, ok := apiErr.Details["fields"].([]string)
	if !ok || len(fields) != 2 {
		t.Errorf("Details fields = %v, want 2 entries", apiErr.Details["fields"])
	}
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator returned different instances")
	}
}
