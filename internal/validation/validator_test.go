// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package validation

import (
	"strings"
	"testing"
)

type coordRequest struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

func TestValidateStructCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		req     coordRequest
		wantErr bool
	}{
		{"valid jakarta", coordRequest{-6.2, 106.8}, false},
		{"zero zero", coordRequest{0, 0}, false},
		{"lat too high", coordRequest{91, 0}, true},
		{"lat too low", coordRequest{-91, 0}, true},
		{"lng too high", coordRequest{0, 181}, true},
		{"lng too low", coordRequest{0, -181}, true},
		{"both bad", coordRequest{100, 200}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestToAPIErrorSingle(t *testing.T) {
	err := ValidateStruct(&coordRequest{Latitude: 95})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("unexpected code %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "latitude") {
		t.Errorf("message %q does not mention latitude", apiErr.Message)
	}
	if apiErr.Details["field"] != "Latitude" {
		t.Errorf("unexpected field detail: %v", apiErr.Details["field"])
	}
}

func TestToAPIErrorMultiple(t *testing.T) {
	err := ValidateStruct(&coordRequest{Latitude: 95, Longitude: 200})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(err.Errors()))
	}
	apiErr := err.ToAPIError()
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("expected fields detail for multiple errors")
	}
}
