// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package validation

import (
	"strings"
	"testing"
)

type submitRequest struct {
	UserID      string  `validate:"required,uuid"`
	ContentType string  `validate:"required,oneof=image/jpeg image/png image/webp"`
	MinScore    float64 `validate:"gte=0,lte=1"`
}

func TestValidateStruct_Valid(t *testing.T) {
	req := submitRequest{
		UserID:      "8b7d3a50-9f3e-4a2b-b646-30b40db7a7a1",
		ContentType: "image/jpeg",
		MinScore:    0.5,
	}

	if errs := ValidateStruct(&req); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	req := submitRequest{
		UserID:      "not-a-uuid",
		ContentType: "application/pdf",
		MinScore:    1.5,
	}

	errs := ValidateStruct(&req)
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if len(errs.Fields) != 3 {
		t.Fatalf("expected 3 field errors, got %d", len(errs.Fields))
	}

	msg := errs.Error()
	for _, want := range []string{"UserID", "ContentType", "MinScore"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error message %q", want, msg)
		}
	}
}

func TestValidateStruct_RequiredMessage(t *testing.T) {
	req := submitRequest{ContentType: "image/png"}

	errs := ValidateStruct(&req)
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if !strings.Contains(errs.Error(), "UserID is required") {
		t.Errorf("expected required message, got %q", errs.Error())
	}
}
