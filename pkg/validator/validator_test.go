package validator

import (
	"testing"
)

type sampleRule struct {
	Order      int    `validate:"required,min=1,max=2"`
	Message    string `validate:"required"`
	DaysOffset int    `validate:"omitempty,min=1"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(sampleRule{Order: 1, Message: "hello {guest_name}", DaysOffset: 3})
	if err != nil {
		t.Fatalf("expected valid struct, got %v", err)
	}
}

func TestValidateStructReportsFailures(t *testing.T) {
	err := ValidateStruct(sampleRule{Order: 5})
	if err == nil {
		t.Fatal("expected validation failures")
	}

	ve, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(ve) != 2 {
		t.Fatalf("expected 2 failures (order, message), got %d: %v", len(ve), ve)
	}
	if ve.Error() == "" {
		t.Fatal("expected a readable error string")
	}
}
